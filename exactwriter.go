package binschema

import "unsafe"

// ExactWriter encodes values against their own compiled schema: no tags are
// written, no member may be skipped, and recursively-packed structs/arrays
// are copied in one operation rather than being walked field by field
// (spec.md §5, §3.4). Grounded on the teacher's instruction-dispatch
// Marshal in encoder.go, reworked from a precompiled instruction list into
// direct schema-table dispatch since the wire shape here is schema-driven
// rather than name-tagged.
type ExactWriter struct {
	schema *Schema
}

// NewExactWriter binds a writer to schema. Safe for concurrent use: it holds
// no per-call state beyond the immutable schema.
func NewExactWriter(schema *Schema) *ExactWriter {
	return &ExactWriter{schema: schema}
}

// Write appends value (a pointer to the schema's root Go type) to buf.
func (w *ExactWriter) Write(buf *Buffer, value unsafe.Pointer) error {
	return w.writeAt(buf, 0, value)
}

// writeAt writes the value described by the descriptor at idx, resolving
// through LinkIndex to the composite's header when idx names a struct
// member or array/vector/map element slot rather than a header itself.
func (w *ExactWriter) writeAt(buf *Buffer, idx int32, ptr unsafe.Pointer) error {
	d := &w.schema.Types[idx]
	if d.Category.IsPrimitive() {
		buf.AppendPrimitive(d.Category, readPrimitiveRaw(d.Category, ptr))
		return nil
	}

	target := idx
	if d.LinkIndex >= 0 {
		target = d.LinkIndex
	}
	switch w.schema.Types[target].Category {
	case CategoryStruct:
		return w.writeStruct(buf, target, ptr)
	case CategoryArray:
		return w.writeArray(buf, target, ptr)
	case CategoryVector:
		return w.writeVector(buf, target, ptr)
	case CategoryMap:
		return w.writeMap(buf, target, ptr)
	default:
		return ErrTypeMismatch
	}
}

func (w *ExactWriter) writeStruct(buf *Buffer, idx int32, ptr unsafe.Pointer) error {
	header := &w.schema.Types[idx]
	if header.IsRecursivelyPacked {
		buf.AppendBytes(unsafe.Slice((*byte)(ptr), header.SizeBytes))
		return nil
	}
	for i := int32(0); i < int32(header.MemberCount); i++ {
		memberIdx := idx + 1 + i
		memberPtr := unsafe.Add(ptr, w.schema.Types[memberIdx].OffsetBytes)
		if err := w.writeAt(buf, memberIdx, memberPtr); err != nil {
			return err
		}
	}
	return nil
}

func (w *ExactWriter) writeArray(buf *Buffer, idx int32, ptr unsafe.Pointer) error {
	header := &w.schema.Types[idx]
	if header.IsRecursivelyPacked {
		buf.AppendBytes(unsafe.Slice((*byte)(ptr), header.SizeBytes))
		return nil
	}
	elemIdx := idx + 1
	elemSize := w.schema.Types[elemIdx].SizeBytes
	for i := uint32(0); i < header.Length; i++ {
		elemPtr := unsafe.Add(ptr, uintptr(i*elemSize))
		if err := w.writeAt(buf, elemIdx, elemPtr); err != nil {
			return err
		}
	}
	return nil
}

func (w *ExactWriter) writeVector(buf *Buffer, idx int32, ptr unsafe.Pointer) error {
	vt := w.schema.vtableFor(idx)
	if vt == nil {
		return ErrTypeMismatch
	}
	n := vt.Len(ptr)
	elemIdx := idx + 1

	// spec.md §6.1: the prefix is the total BYTE length of the concatenated
	// element wire forms, not the element count. For bulk-writeable
	// elements (primitive or recursively packed) that's simply n*elemSize,
	// known up front. For elements whose own wire form varies in length
	// (nested Vector/Map/string), the total is only known after encoding
	// them, so they're written into a scratch buffer first.
	if w.elementIsBulkWriteable(elemIdx) {
		buf.AppendU64(uint64(n) * uint64(vt.ElementSize()))
		buf.AppendBytes(vt.SegmentSpan(ptr))
		return nil
	}

	scratch := NewBufferFromPool()
	defer scratch.ReturnToPool()
	for i := 0; i < n; i++ {
		if err := w.writeAt(scratch, elemIdx, vt.ElementAddr(ptr, i)); err != nil {
			return err
		}
	}
	buf.AppendU64(uint64(len(scratch.Bytes)))
	buf.AppendBytes(scratch.Bytes)
	return nil
}

func (w *ExactWriter) writeMap(buf *Buffer, idx int32, ptr unsafe.Pointer) error {
	mvt := w.schema.mapVTableFor(idx)
	if mvt == nil {
		return ErrTypeMismatch
	}
	buf.AppendU64(uint64(mvt.Len(ptr)))

	keyIdx, valIdx := idx+1, w.schema.Types[idx].MapValueLinkIndex
	var err error
	mvt.Iterate(ptr, func(keyPtr, valPtr unsafe.Pointer) {
		if err != nil {
			return
		}
		if werr := w.writeAt(buf, keyIdx, keyPtr); werr != nil {
			err = werr
			return
		}
		if werr := w.writeAt(buf, valIdx, valPtr); werr != nil {
			err = werr
		}
	})
	return err
}

// elementIsBulkWriteable reports whether the element/key/value descriptor at
// idx can be copied as a contiguous byte span rather than walked one at a
// time - true for primitives and for recursively-packed composites.
func (w *ExactWriter) elementIsBulkWriteable(idx int32) bool {
	d := &w.schema.Types[idx]
	if d.Category.IsPrimitive() {
		return true
	}
	target := idx
	if d.LinkIndex >= 0 {
		target = d.LinkIndex
	}
	return w.schema.Types[target].IsRecursivelyPacked
}
