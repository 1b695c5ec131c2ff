package binschema

import (
	"errors"
	"testing"
	"unsafe"
)

// personV1/personV2 model a struct gaining a field and reordering the rest -
// tag-based matching (spec.md §8 invariant 4 / scenario S5) must still land
// Name and Age correctly regardless of declaration order.
type personV1 struct {
	Name string `schema:"0"`
	Age  int32  `schema:"1"`
}

type personV2 struct {
	Age     int32  `schema:"1"`
	Email   string `schema:"2"`
	Name    string `schema:"0"`
}

func TestVersionedRead_TagMatchingAcrossReorder(t *testing.T) {
	srcSchema, err := Compile[personV1]()
	if err != nil {
		t.Fatalf("compile source: %v", err)
	}
	sinkSchema, err := Compile[personV2]()
	if err != nil {
		t.Fatalf("compile sink: %v", err)
	}

	in := personV1{Name: "ada", Age: 30}
	buf := NewBufferFromPool()
	defer buf.ReturnToPool()
	if err := NewExactWriter(srcSchema).Write(buf, unsafe.Pointer(&in)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out personV2
	cur := NewCursor(buf.Bytes)
	vr := NewVersionedReader(srcSchema, sinkSchema, Options{})
	if err := vr.Read(cur, unsafe.Pointer(&out)); err != nil {
		t.Fatalf("versioned read: %v", err)
	}
	if out.Name != "ada" || out.Age != 30 || out.Email != "" {
		t.Fatalf("got %+v", out)
	}
}

// sinkMissingMember has no member matching source tag 1 (Age) - an unmatched
// source member must be skipped under AllowDropExcessStructFields and
// rejected otherwise (spec.md §8 invariant 5).
type sinkMissingMember struct {
	Name string `schema:"0"`
}

func TestVersionedRead_DropExcessStructFields(t *testing.T) {
	srcSchema, err := Compile[personV1]()
	if err != nil {
		t.Fatalf("compile source: %v", err)
	}
	sinkSchema, err := Compile[sinkMissingMember]()
	if err != nil {
		t.Fatalf("compile sink: %v", err)
	}

	in := personV1{Name: "grace", Age: 41}
	buf := NewBufferFromPool()
	defer buf.ReturnToPool()
	if err := NewExactWriter(srcSchema).Write(buf, unsafe.Pointer(&in)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out sinkMissingMember
	cur := NewCursor(buf.Bytes)
	vr := NewVersionedReader(srcSchema, sinkSchema, Options{})
	if err := vr.Read(cur, unsafe.Pointer(&out)); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch without AllowDropExcessStructFields, got %v", err)
	}

	cur = NewCursor(buf.Bytes)
	vr = NewVersionedReader(srcSchema, sinkSchema, Options{AllowDropExcessStructFields: true})
	if err := vr.Read(cur, unsafe.Pointer(&out)); err != nil {
		t.Fatalf("versioned read with drop allowed: %v", err)
	}
	if out.Name != "grace" {
		t.Fatalf("got %+v", out)
	}
	if cur.Remaining() != 0 {
		t.Fatalf("expected the skipped member to fully consume its bytes, %d left", cur.Remaining())
	}
}

type arraySrc struct {
	V [5]int32 `schema:"0"`
}
type arraySinkSmaller struct {
	V [3]int32 `schema:"0"`
}
type arraySinkLarger struct {
	V [8]int32 `schema:"0"`
}

func TestVersionedRead_ArrayTruncation(t *testing.T) {
	srcSchema, err := Compile[arraySrc]()
	if err != nil {
		t.Fatalf("compile source: %v", err)
	}
	sinkSchema, err := Compile[arraySinkSmaller]()
	if err != nil {
		t.Fatalf("compile sink: %v", err)
	}

	in := arraySrc{V: [5]int32{1, 2, 3, 4, 5}}
	buf := NewBufferFromPool()
	defer buf.ReturnToPool()
	if err := NewExactWriter(srcSchema).Write(buf, unsafe.Pointer(&in)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out arraySinkSmaller
	cur := NewCursor(buf.Bytes)
	vr := NewVersionedReader(srcSchema, sinkSchema, Options{})
	if err := vr.Read(cur, unsafe.Pointer(&out)); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch without AllowDropExcessArrayItems, got %v", err)
	}

	cur = NewCursor(buf.Bytes)
	vr = NewVersionedReader(srcSchema, sinkSchema, Options{AllowDropExcessArrayItems: true})
	if err := vr.Read(cur, unsafe.Pointer(&out)); err != nil {
		t.Fatalf("versioned read with drop allowed: %v", err)
	}
	if out.V != [3]int32{1, 2, 3} {
		t.Fatalf("got %+v", out.V)
	}
}

func TestVersionedRead_ArrayExtension(t *testing.T) {
	srcSchema, err := Compile[arraySrc]()
	if err != nil {
		t.Fatalf("compile source: %v", err)
	}
	sinkSchema, err := Compile[arraySinkLarger]()
	if err != nil {
		t.Fatalf("compile sink: %v", err)
	}

	in := arraySrc{V: [5]int32{1, 2, 3, 4, 5}}
	buf := NewBufferFromPool()
	defer buf.ReturnToPool()
	if err := NewExactWriter(srcSchema).Write(buf, unsafe.Pointer(&in)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out arraySinkLarger
	cur := NewCursor(buf.Bytes)
	vr := NewVersionedReader(srcSchema, sinkSchema, Options{})
	if err := vr.Read(cur, unsafe.Pointer(&out)); err != nil {
		t.Fatalf("versioned read: %v", err)
	}
	want := [8]int32{1, 2, 3, 4, 5, 0, 0, 0}
	if out.V != want {
		t.Fatalf("got %+v, want %+v (trailing slots default-initialized)", out.V, want)
	}
}

type vecOfStringSrc struct {
	Names []string `schema:"0"`
}
type vecOfStringSinkSmaller struct {
	Names []string `schema:"0"`
}

// spec.md §8 scenario S4: Vec<String> where the element wire form itself
// varies in length, exercising the bounded-sub-cursor element counting.
func TestVersionedRead_VectorOfStrings(t *testing.T) {
	srcSchema, err := Compile[vecOfStringSrc]()
	if err != nil {
		t.Fatalf("compile source: %v", err)
	}
	sinkSchema, err := Compile[vecOfStringSinkSmaller]()
	if err != nil {
		t.Fatalf("compile sink: %v", err)
	}

	in := vecOfStringSrc{Names: []string{"a", "bb", "ccc", "dddd"}}
	buf := NewBufferFromPool()
	defer buf.ReturnToPool()
	if err := NewExactWriter(srcSchema).Write(buf, unsafe.Pointer(&in)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out vecOfStringSinkSmaller
	cur := NewCursor(buf.Bytes)
	vr := NewVersionedReader(srcSchema, sinkSchema, Options{})
	if err := vr.Read(cur, unsafe.Pointer(&out)); err != nil {
		t.Fatalf("versioned read: %v", err)
	}
	if len(out.Names) != len(in.Names) {
		t.Fatalf("got %d names, want %d", len(out.Names), len(in.Names))
	}
	for i := range in.Names {
		if out.Names[i] != in.Names[i] {
			t.Fatalf("Names[%d]: got %q want %q", i, out.Names[i], in.Names[i])
		}
	}
}

type numericSrc struct {
	V int32 `schema:"0"`
}
type numericSinkWiderInt struct {
	V int64 `schema:"0"`
}
type numericSinkFloat struct {
	V float32 `schema:"0"`
}

func TestVersionedRead_NumericWideningNeverGated(t *testing.T) {
	srcSchema, err := Compile[numericSrc]()
	if err != nil {
		t.Fatalf("compile source: %v", err)
	}
	sinkSchema, err := Compile[numericSinkWiderInt]()
	if err != nil {
		t.Fatalf("compile sink: %v", err)
	}

	in := numericSrc{V: -7}
	buf := NewBufferFromPool()
	defer buf.ReturnToPool()
	if err := NewExactWriter(srcSchema).Write(buf, unsafe.Pointer(&in)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out numericSinkWiderInt
	cur := NewCursor(buf.Bytes)
	vr := NewVersionedReader(srcSchema, sinkSchema, Options{}) // no truncation flag needed
	if err := vr.Read(cur, unsafe.Pointer(&out)); err != nil {
		t.Fatalf("versioned read: %v", err)
	}
	if out.V != -7 {
		t.Fatalf("got %d, want -7", out.V)
	}
}

// spec.md §8 scenario S7: float source to a non-float sink requires
// AllowFloatToIntTruncation; int source never does, even to float.
func TestVersionedRead_FloatToIntRequiresGate(t *testing.T) {
	type floatSrc struct {
		V float64 `schema:"0"`
	}
	srcSchema, err := Compile[floatSrc]()
	if err != nil {
		t.Fatalf("compile source: %v", err)
	}
	sinkSchema, err := Compile[numericSrc]()
	if err != nil {
		t.Fatalf("compile sink: %v", err)
	}

	in := floatSrc{V: 3.75}
	buf := NewBufferFromPool()
	defer buf.ReturnToPool()
	if err := NewExactWriter(srcSchema).Write(buf, unsafe.Pointer(&in)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out numericSrc
	cur := NewCursor(buf.Bytes)
	vr := NewVersionedReader(srcSchema, sinkSchema, Options{})
	if err := vr.Read(cur, unsafe.Pointer(&out)); !errors.Is(err, ErrNumericConversionRefused) {
		t.Fatalf("expected ErrNumericConversionRefused, got %v", err)
	}

	cur = NewCursor(buf.Bytes)
	vr = NewVersionedReader(srcSchema, sinkSchema, Options{AllowFloatToIntTruncation: true})
	if err := vr.Read(cur, unsafe.Pointer(&out)); err != nil {
		t.Fatalf("versioned read with truncation allowed: %v", err)
	}
	if out.V != 3 {
		t.Fatalf("got %d, want 3 (truncated)", out.V)
	}
}

func TestVersionedRead_IntToFloatNeverGated(t *testing.T) {
	srcSchema, err := Compile[numericSrc]()
	if err != nil {
		t.Fatalf("compile source: %v", err)
	}
	sinkSchema, err := Compile[numericSinkFloat]()
	if err != nil {
		t.Fatalf("compile sink: %v", err)
	}

	in := numericSrc{V: 9}
	buf := NewBufferFromPool()
	defer buf.ReturnToPool()
	if err := NewExactWriter(srcSchema).Write(buf, unsafe.Pointer(&in)); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out numericSinkFloat
	cur := NewCursor(buf.Bytes)
	vr := NewVersionedReader(srcSchema, sinkSchema, Options{})
	if err := vr.Read(cur, unsafe.Pointer(&out)); err != nil {
		t.Fatalf("versioned read: %v", err)
	}
	if out.V != 9 {
		t.Fatalf("got %v, want 9", out.V)
	}
}
