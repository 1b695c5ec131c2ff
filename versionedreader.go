package binschema

import "unsafe"

// VersionedReader decodes a stream written against a source schema into a
// value shaped by a possibly different sink schema: struct members are
// matched by declared ordinal tag rather than position, primitives convert
// across category, and arrays/vectors truncate or extend (spec.md §4.4).
// Grounded in shape on the teacher's trie-based name matching in
// decoder.go, reworked from string-tag lookup to integer member_tag lookup
// since this format's member identity is an ordinal, not a name.
type VersionedReader struct {
	source *Schema
	sink   *Schema
	opts   Options

	skipper *Skipper
}

// NewVersionedReader builds a reader that decodes bytes written with source
// into values shaped by sink, applying opts' drop/truncation policy.
func NewVersionedReader(source, sink *Schema, opts Options) *VersionedReader {
	return &VersionedReader{source: source, sink: sink, opts: opts, skipper: NewSkipper(source)}
}

// Read decodes one value of the sink's root type from cur into dst.
func (r *VersionedReader) Read(cur *Cursor, dst unsafe.Pointer) error {
	if r.source.Root().Category != CategoryStruct || r.sink.Root().Category != CategoryStruct {
		return ErrTypeMismatch
	}
	return r.readAt(cur, 0, 0, dst)
}

// readAt decodes the source value at srcIdx into the sink slot at sinkIdx,
// both resolved through LinkIndex to their composite headers as needed.
func (r *VersionedReader) readAt(cur *Cursor, srcIdx, sinkIdx int32, ptr unsafe.Pointer) error {
	srcDesc := &r.source.Types[srcIdx]

	if srcDesc.Category.IsPrimitive() {
		sinkDesc := &r.sink.Types[sinkIdx]
		if !sinkDesc.Category.IsPrimitive() {
			return ErrSchemaMismatch
		}
		raw, ok := cur.ReadPrimitive(srcDesc.Category)
		if !ok {
			return ErrStreamExhausted
		}
		if srcDesc.Category != sinkDesc.Category {
			if needsTruncationGate(srcDesc.Category, sinkDesc.Category) && !r.opts.AllowFloatToIntTruncation {
				return ErrNumericConversionRefused
			}
			raw = convertPrimitive(srcDesc.Category, raw, sinkDesc.Category)
		}
		writePrimitiveRaw(sinkDesc.Category, ptr, raw)
		return nil
	}

	srcTarget := srcIdx
	if srcDesc.LinkIndex >= 0 {
		srcTarget = srcDesc.LinkIndex
	}
	sinkDesc := &r.sink.Types[sinkIdx]
	sinkTarget := sinkIdx
	if sinkDesc.LinkIndex >= 0 {
		sinkTarget = sinkDesc.LinkIndex
	}

	switch r.source.Types[srcTarget].Category {
	case CategoryStruct:
		if r.sink.Types[sinkTarget].Category != CategoryStruct {
			return ErrSchemaMismatch
		}
		return r.readStruct(cur, srcTarget, sinkTarget, ptr)
	case CategoryArray, CategoryVector:
		sinkCat := r.sink.Types[sinkTarget].Category
		if sinkCat != CategoryArray && sinkCat != CategoryVector {
			return ErrSchemaMismatch
		}
		return r.readContainer(cur, srcTarget, sinkTarget, ptr)
	case CategoryMap:
		if r.sink.Types[sinkTarget].Category != CategoryMap {
			return ErrSchemaMismatch
		}
		return r.readMap(cur, srcTarget, sinkTarget, ptr)
	default:
		return ErrTypeMismatch
	}
}

func (r *VersionedReader) readStruct(cur *Cursor, srcIdx, sinkIdx int32, ptr unsafe.Pointer) error {
	srcHeader := &r.source.Types[srcIdx]
	for i := int32(0); i < int32(srcHeader.MemberCount); i++ {
		srcMemberIdx := srcIdx + 1 + i
		tag := r.source.Types[srcMemberIdx].MemberTag

		sinkMemberIdx := r.sink.findMemberByTag(sinkIdx, tag)
		if sinkMemberIdx < 0 {
			if !r.opts.AllowDropExcessStructFields {
				return ErrSchemaMismatch
			}
			if err := r.skipper.Skip(cur, srcMemberIdx); err != nil {
				return err
			}
			continue
		}

		sinkMemberPtr := unsafe.Add(ptr, r.sink.Types[sinkMemberIdx].OffsetBytes)
		if err := r.readAt(cur, srcMemberIdx, sinkMemberIdx, sinkMemberPtr); err != nil {
			return err
		}
	}
	return nil
}

// readContainer handles every Array/Vector source-sink pairing. The source
// side determines how many elements the stream holds (fixed Length for
// Array, a byte-length prefix for Vector); the sink side determines where
// converted elements land (a fixed slot for Array, a resized vtable span
// for Vector).
func (r *VersionedReader) readContainer(cur *Cursor, srcIdx, sinkIdx int32, ptr unsafe.Pointer) error {
	srcCat := r.source.Types[srcIdx].Category
	srcElemIdx := srcIdx + 1
	sinkElemIdx := sinkIdx + 1

	sink, err := r.newSinkContainer(sinkIdx, ptr)
	if err != nil {
		return err
	}

	bulk := r.bulkFastPathEligible(srcElemIdx, sinkElemIdx)

	if srcCat == CategoryArray {
		n := int(r.source.Types[srcIdx].Length)
		return r.readContainerElements(cur, srcElemIdx, sinkElemIdx, sink, n, bulk)
	}

	// Vector source: read the byte-length prefix, then decode within that
	// bounded region. Element count isn't known up front unless the bulk
	// fast path applies (fixed per-element wire size).
	byteLen, ok := cur.ReadU64()
	if !ok {
		return ErrStreamExhausted
	}
	if bulk {
		srcElemSize := uint64(primitiveSize(r.source.Types[srcElemIdx].Category))
		n := int(byteLen / srcElemSize)
		return r.readContainerElements(cur, srcElemIdx, sinkElemIdx, sink, n, bulk)
	}

	payload, ok := cur.ReadBytes(int(byteLen))
	if !ok {
		return ErrStreamExhausted
	}
	sub := NewCursor(payload)
	i := 0
	for sub.Remaining() > 0 {
		if err := r.readOneContainerElement(sub, srcElemIdx, sinkElemIdx, sink, i); err != nil {
			return err
		}
		i++
	}
	return sink.finish(i)
}

// bulkFastPathEligible reports whether source and sink element categories
// are identical primitives (spec.md §4.4 "Bulk fast path").
func (r *VersionedReader) bulkFastPathEligible(srcElemIdx, sinkElemIdx int32) bool {
	srcCat := r.source.Types[srcElemIdx].Category
	sinkCat := r.sink.Types[sinkElemIdx].Category
	return srcCat.IsPrimitive() && sinkCat.IsPrimitive() && srcCat == sinkCat
}

func (r *VersionedReader) readContainerElements(cur *Cursor, srcElemIdx, sinkElemIdx int32, sink *sinkContainer, n int, bulk bool) error {
	if bulk {
		elemCat := r.source.Types[srcElemIdx].Category
		elemSize := int(primitiveSize(elemCat))
		accept := n
		if sink.kind == sinkKindArray && accept > sink.arrayLen {
			accept = sink.arrayLen
		}
		span, ok := cur.ReadBytes(accept * elemSize)
		if !ok {
			return ErrStreamExhausted
		}
		for i := 0; i < accept; i++ {
			dst := sink.elementPtr(i)
			copy(unsafe.Slice((*byte)(dst), elemSize), span[i*elemSize:(i+1)*elemSize])
		}
		if n > accept {
			if !r.opts.AllowDropExcessArrayItems {
				return ErrSchemaMismatch
			}
			remaining, ok := cur.ReadBytes((n - accept) * elemSize)
			if !ok || len(remaining) != (n-accept)*elemSize {
				return ErrStreamExhausted
			}
		}
		return sink.finish(accept)
	}

	for i := 0; i < n; i++ {
		if err := r.readOneContainerElement(cur, srcElemIdx, sinkElemIdx, sink, i); err != nil {
			return err
		}
	}
	return sink.finish(n)
}

// readOneContainerElement decodes source element i, writing it into the
// sink if there is room (an Array sink has fixed capacity; a Vector sink
// always has room, each element landing in a scratch buffer from
// sink.elementPtr), and skipping it otherwise - the
// skip branch is legal only under AllowDropExcessArrayItems.
func (r *VersionedReader) readOneContainerElement(cur *Cursor, srcElemIdx, sinkElemIdx int32, sink *sinkContainer, i int) error {
	if sink.hasRoom(i) {
		dst := sink.elementPtr(i)
		return r.readAt(cur, srcElemIdx, sinkElemIdx, dst)
	}
	if !r.opts.AllowDropExcessArrayItems {
		return ErrSchemaMismatch
	}
	return r.skipper.Skip(cur, srcElemIdx)
}

func (r *VersionedReader) readMap(cur *Cursor, srcIdx, sinkIdx int32, ptr unsafe.Pointer) error {
	count, ok := cur.ReadU64()
	if !ok {
		return ErrStreamExhausted
	}
	mvt := r.sink.mapVTableFor(sinkIdx)
	if mvt == nil {
		return ErrTypeMismatch
	}
	mvt.MakeEmpty(ptr, int(count))

	srcKeyIdx, srcValIdx := srcIdx+1, r.source.Types[srcIdx].MapValueLinkIndex
	sinkKeyIdx, sinkValIdx := sinkIdx+1, r.sink.Types[sinkIdx].MapValueLinkIndex

	for i := uint64(0); i < count; i++ {
		keyScratch := r.scratchForSink(sinkKeyIdx)
		valScratch := r.scratchForSink(sinkValIdx)
		if err := r.readAt(cur, srcKeyIdx, sinkKeyIdx, keyScratch); err != nil {
			return err
		}
		if err := r.readAt(cur, srcValIdx, sinkValIdx, valScratch); err != nil {
			return err
		}
		mvt.SetEntry(ptr, keyScratch, valScratch)
	}
	return nil
}

// sinkKind distinguishes the two container shapes a versioned read can
// land elements in: a fixed-capacity Array slot versus a resizable Vector
// vtable.
type sinkKind int

const (
	sinkKindArray sinkKind = iota
	sinkKindVector
)

// sinkContainer abstracts over an Array sink (fixed capacity, elements
// addressed directly in place) and a Vector sink (unbounded, elements
// accumulated into scratch storage and committed once the final count is
// known) so readContainerElements/readOneContainerElement can share one
// code path for both (spec.md §4.4).
type sinkContainer struct {
	kind     sinkKind
	ptr      unsafe.Pointer
	elemSize uint32

	arrayLen int // sinkKindArray only

	vt        VectorVTable // sinkKindVector only
	scratches []unsafe.Pointer
}

func (r *VersionedReader) newSinkContainer(sinkIdx int32, ptr unsafe.Pointer) (*sinkContainer, error) {
	header := &r.sink.Types[sinkIdx]
	elemIdx := sinkIdx + 1
	elemSize := r.sink.Types[elemIdx].SizeBytes
	if elemSize == 0 {
		elemSize = 1
	}

	if header.Category == CategoryArray {
		return &sinkContainer{kind: sinkKindArray, ptr: ptr, elemSize: elemSize, arrayLen: int(header.Length)}, nil
	}

	vt := r.sink.vtableFor(sinkIdx)
	if vt == nil {
		return nil, ErrTypeMismatch
	}
	return &sinkContainer{kind: sinkKindVector, ptr: ptr, elemSize: elemSize, vt: vt}, nil
}

// hasRoom reports whether index i can be written directly: always true for
// a Vector sink, bounded by capacity for an Array sink.
func (s *sinkContainer) hasRoom(i int) bool {
	if s.kind == sinkKindArray {
		return i < s.arrayLen
	}
	return true
}

// elementPtr returns the address element i should be decoded into. For an
// Array sink that's the real destination memory; for a Vector sink it's a
// fresh scratch buffer, committed into the vtable's storage by finish.
func (s *sinkContainer) elementPtr(i int) unsafe.Pointer {
	if s.kind == sinkKindArray {
		return unsafe.Add(s.ptr, uintptr(i)*uintptr(s.elemSize))
	}
	buf := make([]byte, s.elemSize)
	p := unsafe.Pointer(&buf[0])
	s.scratches = append(s.scratches, p)
	return p
}

// finish commits n decoded elements. An Array sink has nothing left to do
// (elements already landed in place, and any slots beyond n keep their
// zero value). A Vector sink resizes its backing storage to exactly n
// elements and copies the accumulated scratch buffers in.
func (s *sinkContainer) finish(n int) error {
	if s.kind == sinkKindArray {
		return nil
	}
	if !s.vt.ResizeUninitialized(s.ptr, uint64(n)*uint64(s.elemSize), true) {
		return ErrContainerResizeFailed
	}
	for i := 0; i < n && i < len(s.scratches); i++ {
		dst := s.vt.ElementAddr(s.ptr, i)
		copy(unsafe.Slice((*byte)(dst), s.elemSize), unsafe.Slice((*byte)(s.scratches[i]), s.elemSize))
	}
	return nil
}

// scratchForSink allocates zeroed, addressable memory sized for the sink
// value described at idx (see ExactReader.scratchFor; the map entry path
// needs a landing pad before SetEntry since Go maps aren't addressable).
func (r *VersionedReader) scratchForSink(idx int32) unsafe.Pointer {
	d := &r.sink.Types[idx]
	target := idx
	if d.LinkIndex >= 0 {
		target = d.LinkIndex
	}
	size := r.sink.Types[target].SizeBytes
	if d.Category.IsPrimitive() {
		size = d.SizeBytes
	}
	if size == 0 {
		size = 1
	}
	buf := make([]byte, size)
	return unsafe.Pointer(&buf[0])
}
