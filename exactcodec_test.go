package binschema

import (
	"testing"
	"unsafe"
)

type simplePoint struct {
	X int32  `schema:"0"`
	Y int32  `schema:"1"`
	Z uint64 `schema:"2"`
}

func TestExactRoundTrip_PackedStruct(t *testing.T) {
	schema, err := Compile[simplePoint]()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !schema.Root().IsRecursivelyPacked {
		t.Fatalf("expected simplePoint to be recursively packed")
	}

	in := simplePoint{X: 1, Y: -2, Z: 3}
	buf := NewBufferFromPool()
	defer buf.ReturnToPool()

	if err := NewExactWriter(schema).Write(buf, unsafe.Pointer(&in)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(buf.Bytes) != int(schema.Root().SizeBytes) {
		t.Fatalf("expected a single packed span of %d bytes, got %d", schema.Root().SizeBytes, len(buf.Bytes))
	}
	if buf.Ops != 1 {
		t.Fatalf("expected the packed bulk-copy fast path (1 op), got %d ops", buf.Ops)
	}

	var out simplePoint
	cur := NewCursor(buf.Bytes)
	if err := NewExactReader(schema).Read(cur, unsafe.Pointer(&out)); err != nil {
		t.Fatalf("read: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
	if cur.Remaining() != 0 {
		t.Fatalf("expected the stream fully consumed, %d bytes left", cur.Remaining())
	}
}

type withSliceAndString struct {
	Name   string   `schema:"0"`
	Values []int32  `schema:"1"`
	Tags   []string `schema:"2"`
}

func TestExactRoundTrip_VectorsAndStrings(t *testing.T) {
	schema, err := Compile[withSliceAndString]()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	in := withSliceAndString{
		Name:   "hello",
		Values: []int32{1, 2, 3, 4},
		Tags:   []string{"a", "bb", "ccc"},
	}
	buf := NewBufferFromPool()
	defer buf.ReturnToPool()
	if err := NewExactWriter(schema).Write(buf, unsafe.Pointer(&in)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out withSliceAndString
	cur := NewCursor(buf.Bytes)
	if err := NewExactReader(schema).Read(cur, unsafe.Pointer(&out)); err != nil {
		t.Fatalf("read: %v", err)
	}

	if out.Name != in.Name {
		t.Fatalf("Name: got %q want %q", out.Name, in.Name)
	}
	if len(out.Values) != len(in.Values) {
		t.Fatalf("Values length: got %d want %d", len(out.Values), len(in.Values))
	}
	for i := range in.Values {
		if out.Values[i] != in.Values[i] {
			t.Fatalf("Values[%d]: got %d want %d", i, out.Values[i], in.Values[i])
		}
	}
	if len(out.Tags) != len(in.Tags) {
		t.Fatalf("Tags length: got %d want %d", len(out.Tags), len(in.Tags))
	}
	for i := range in.Tags {
		if out.Tags[i] != in.Tags[i] {
			t.Fatalf("Tags[%d]: got %q want %q", i, out.Tags[i], in.Tags[i])
		}
	}
	if cur.Remaining() != 0 {
		t.Fatalf("expected the stream fully consumed, %d bytes left", cur.Remaining())
	}
}

// TestExactWrite_VectorPrefixIsByteLength checks the wire-format invariant from spec.md §6.1 scenario S3:
// the Vector prefix is the total byte length of its elements, not a count.
func TestExactWrite_VectorPrefixIsByteLength(t *testing.T) {
	type holder struct {
		V []int32 `schema:"0"`
	}
	schema, err := Compile[holder]()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	in := holder{V: []int32{1, 2, 3, 4}}
	buf := NewBufferFromPool()
	defer buf.ReturnToPool()
	if err := NewExactWriter(schema).Write(buf, unsafe.Pointer(&in)); err != nil {
		t.Fatalf("write: %v", err)
	}

	cur := NewCursor(buf.Bytes)
	prefix, ok := cur.ReadU64()
	if !ok {
		t.Fatalf("short buffer reading prefix")
	}
	if prefix != 16 {
		t.Fatalf("expected byte-length prefix 16 (4 i32s), got %d", prefix)
	}
}

type withMap struct {
	Scores map[string]int32 `schema:"0"`
}

func TestExactRoundTrip_Map(t *testing.T) {
	schema, err := Compile[withMap]()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	in := withMap{Scores: map[string]int32{"a": 1, "b": 2, "c": 3}}
	buf := NewBufferFromPool()
	defer buf.ReturnToPool()
	if err := NewExactWriter(schema).Write(buf, unsafe.Pointer(&in)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out withMap
	cur := NewCursor(buf.Bytes)
	if err := NewExactReader(schema).Read(cur, unsafe.Pointer(&out)); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(out.Scores) != len(in.Scores) {
		t.Fatalf("map length: got %d want %d", len(out.Scores), len(in.Scores))
	}
	for k, v := range in.Scores {
		if out.Scores[k] != v {
			t.Fatalf("Scores[%q]: got %d want %d", k, out.Scores[k], v)
		}
	}
}

type nested struct {
	Inner simplePoint `schema:"0"`
	Count int64       `schema:"1"`
}

func TestExactRoundTrip_NestedStructStillPacked(t *testing.T) {
	schema, err := Compile[nested]()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !schema.Root().IsRecursivelyPacked {
		t.Fatalf("expected nested (struct-of-packed-struct) to be recursively packed")
	}

	in := nested{Inner: simplePoint{X: 9, Y: 8, Z: 7}, Count: 42}
	buf := NewBufferFromPool()
	defer buf.ReturnToPool()
	if err := NewExactWriter(schema).Write(buf, unsafe.Pointer(&in)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.Ops != 1 {
		t.Fatalf("expected a single bulk-copy op for a fully packed nested struct, got %d", buf.Ops)
	}

	var out nested
	cur := NewCursor(buf.Bytes)
	if err := NewExactReader(schema).Read(cur, unsafe.Pointer(&out)); err != nil {
		t.Fatalf("read: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestExactRead_StreamExhausted(t *testing.T) {
	schema, err := Compile[simplePoint]()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	cur := NewCursor([]byte{1, 2, 3}) // far short of SizeBytes
	var out simplePoint
	if err := NewExactReader(schema).Read(cur, unsafe.Pointer(&out)); err == nil {
		t.Fatalf("expected ErrStreamExhausted, got nil")
	}
}
