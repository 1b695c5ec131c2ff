package binschema

import (
	"unsafe"
)

// ExactReader decodes a stream produced by an ExactWriter against the same
// Schema: no tag matching, no numeric conversion, no member-count mismatch
// is tolerated - any shortfall is ErrStreamExhausted. Grounded on the
// teacher's straight-line Unmarshal in decoder.go, re-dispatched over the
// schema table instead of a generated instruction list.
type ExactReader struct {
	schema *Schema
}

func NewExactReader(schema *Schema) *ExactReader {
	return &ExactReader{schema: schema}
}

// Read decodes one value of the schema's root type from cur into dst (a
// pointer to the schema's root Go type).
func (r *ExactReader) Read(cur *Cursor, dst unsafe.Pointer) error {
	return r.readAt(cur, 0, dst)
}

func (r *ExactReader) readAt(cur *Cursor, idx int32, ptr unsafe.Pointer) error {
	d := &r.schema.Types[idx]
	if d.Category.IsPrimitive() {
		raw, ok := cur.ReadPrimitive(d.Category)
		if !ok {
			return ErrStreamExhausted
		}
		writePrimitiveRaw(d.Category, ptr, raw)
		return nil
	}

	target := idx
	if d.LinkIndex >= 0 {
		target = d.LinkIndex
	}
	switch r.schema.Types[target].Category {
	case CategoryStruct:
		return r.readStruct(cur, target, ptr)
	case CategoryArray:
		return r.readArray(cur, target, ptr)
	case CategoryVector:
		return r.readVector(cur, target, ptr)
	case CategoryMap:
		return r.readMap(cur, target, ptr)
	default:
		return ErrTypeMismatch
	}
}

func (r *ExactReader) readStruct(cur *Cursor, idx int32, ptr unsafe.Pointer) error {
	header := &r.schema.Types[idx]
	if header.IsRecursivelyPacked {
		p, ok := cur.ReadBytes(int(header.SizeBytes))
		if !ok {
			return ErrStreamExhausted
		}
		chunkedCopy(unsafe.Slice((*byte)(ptr), header.SizeBytes), p)
		return nil
	}
	for i := int32(0); i < int32(header.MemberCount); i++ {
		memberIdx := idx + 1 + i
		memberPtr := unsafe.Add(ptr, r.schema.Types[memberIdx].OffsetBytes)
		if err := r.readAt(cur, memberIdx, memberPtr); err != nil {
			return err
		}
	}
	return nil
}

func (r *ExactReader) readArray(cur *Cursor, idx int32, ptr unsafe.Pointer) error {
	header := &r.schema.Types[idx]
	if header.IsRecursivelyPacked {
		p, ok := cur.ReadBytes(int(header.SizeBytes))
		if !ok {
			return ErrStreamExhausted
		}
		chunkedCopy(unsafe.Slice((*byte)(ptr), header.SizeBytes), p)
		return nil
	}
	elemIdx := idx + 1
	elemSize := r.schema.Types[elemIdx].SizeBytes
	for i := uint32(0); i < header.Length; i++ {
		elemPtr := unsafe.Add(ptr, uintptr(i*elemSize))
		if err := r.readAt(cur, elemIdx, elemPtr); err != nil {
			return err
		}
	}
	return nil
}

func (r *ExactReader) readVector(cur *Cursor, idx int32, ptr unsafe.Pointer) error {
	vt := r.schema.vtableFor(idx)
	if vt == nil {
		return ErrTypeMismatch
	}
	byteLen, ok := cur.ReadU64()
	if !ok {
		return ErrStreamExhausted
	}

	elemIdx := idx + 1
	elemSize := uint64(vt.ElementSize())

	if r.elementIsBulkReadable(elemIdx) {
		if !vt.ResizeUninitialized(ptr, byteLen, true) {
			return ErrContainerResizeFailed
		}
		span := vt.SegmentSpan(ptr)
		p, ok := cur.ReadBytes(len(span))
		if !ok {
			return ErrStreamExhausted
		}
		chunkedCopy(span, p)
		return nil
	}

	// Variable-length elements (nested Vector/Map/string): the byte-length
	// prefix alone doesn't say how many elements there are, so decode into
	// scratch storage until that many bytes have been consumed, then size
	// the destination once and copy each decoded element in.
	payload, ok := cur.ReadBytes(int(byteLen))
	if !ok {
		return ErrStreamExhausted
	}
	sub := NewCursor(payload)

	var scratches []unsafe.Pointer
	for sub.Remaining() > 0 {
		s := r.scratchFor(elemIdx)
		if err := r.readAt(sub, elemIdx, s); err != nil {
			return err
		}
		scratches = append(scratches, s)
	}

	if !vt.ResizeUninitialized(ptr, uint64(len(scratches))*elemSize, true) {
		return ErrContainerResizeFailed
	}
	for i, s := range scratches {
		dst := vt.ElementAddr(ptr, i)
		copy(unsafe.Slice((*byte)(dst), elemSize), unsafe.Slice((*byte)(s), elemSize))
	}
	return nil
}

func (r *ExactReader) readMap(cur *Cursor, idx int32, ptr unsafe.Pointer) error {
	mvt := r.schema.mapVTableFor(idx)
	if mvt == nil {
		return ErrTypeMismatch
	}
	count, ok := cur.ReadU64()
	if !ok {
		return ErrStreamExhausted
	}
	mvt.MakeEmpty(ptr, int(count))

	keyIdx, valIdx := idx+1, r.schema.Types[idx].MapValueLinkIndex
	for i := uint64(0); i < count; i++ {
		keyScratch, valScratch := r.scratchFor(keyIdx), r.scratchFor(valIdx)
		if err := r.readAt(cur, keyIdx, keyScratch); err != nil {
			return err
		}
		if err := r.readAt(cur, valIdx, valScratch); err != nil {
			return err
		}
		mvt.SetEntry(ptr, keyScratch, valScratch)
	}
	return nil
}

// elementIsBulkReadable mirrors ExactWriter.elementIsBulkWriteable.
func (r *ExactReader) elementIsBulkReadable(idx int32) bool {
	d := &r.schema.Types[idx]
	if d.Category.IsPrimitive() {
		return true
	}
	target := idx
	if d.LinkIndex >= 0 {
		target = d.LinkIndex
	}
	return r.schema.Types[target].IsRecursivelyPacked
}

// scratchFor allocates zeroed, addressable memory sized for the value
// described at idx, used as a temporary landing pad for a map key or value
// before SetEntry copies it into the map (Go maps, unlike slices, expose no
// addressable in-place element storage).
func (r *ExactReader) scratchFor(idx int32) unsafe.Pointer {
	d := &r.schema.Types[idx]
	target := idx
	if d.LinkIndex >= 0 {
		target = d.LinkIndex
	}
	size := r.schema.Types[target].SizeBytes
	if d.Category.IsPrimitive() {
		size = d.SizeBytes
	}
	if size == 0 {
		size = 1
	}
	buf := make([]byte, size)
	return unsafe.Pointer(&buf[0])
}
