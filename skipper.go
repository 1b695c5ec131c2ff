package binschema

// Skipper advances a stream past one complete value described by a source
// schema, writing nothing anywhere - used by VersionedReader to discard
// source struct members the sink doesn't declare and source array/vector
// elements beyond the sink's capacity (spec.md §4.5). Grounded directly on
// SerializationBinarySkipper.h's skip/skipStruct/skipVectorOrArray, extended
// here for Map.
type Skipper struct {
	source *Schema
}

func NewSkipper(source *Schema) *Skipper {
	return &Skipper{source: source}
}

// Skip discards the value described by the descriptor at idx.
func (s *Skipper) Skip(cur *Cursor, idx int32) error {
	d := &s.source.Types[idx]
	if d.Category.IsPrimitive() {
		if !cur.Skip(int(d.SizeBytes)) {
			return ErrStreamExhausted
		}
		return nil
	}

	target := idx
	if d.LinkIndex >= 0 {
		target = d.LinkIndex
	}
	switch s.source.Types[target].Category {
	case CategoryStruct:
		return s.skipStruct(cur, target)
	case CategoryArray:
		return s.skipArray(cur, target)
	case CategoryVector:
		return s.skipVector(cur, target)
	case CategoryMap:
		return s.skipMap(cur, target)
	default:
		return ErrTypeMismatch
	}
}

func (s *Skipper) skipStruct(cur *Cursor, idx int32) error {
	header := &s.source.Types[idx]
	if header.IsRecursivelyPacked {
		if !cur.Skip(int(header.SizeBytes)) {
			return ErrStreamExhausted
		}
		return nil
	}
	for i := int32(0); i < int32(header.MemberCount); i++ {
		if err := s.Skip(cur, idx+1+i); err != nil {
			return err
		}
	}
	return nil
}

func (s *Skipper) skipArray(cur *Cursor, idx int32) error {
	header := &s.source.Types[idx]
	if header.IsRecursivelyPacked {
		if !cur.Skip(int(header.SizeBytes)) {
			return ErrStreamExhausted
		}
		return nil
	}
	elemIdx := idx + 1
	for i := uint32(0); i < header.Length; i++ {
		if err := s.Skip(cur, elemIdx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Skipper) skipVector(cur *Cursor, idx int32) error {
	byteLen, ok := cur.ReadU64()
	if !ok {
		return ErrStreamExhausted
	}
	elemIdx := idx + 1
	if s.isBulkSkippable(elemIdx) {
		if !cur.Skip(int(byteLen)) {
			return ErrStreamExhausted
		}
		return nil
	}

	// Variable-length elements: the byte length alone doesn't say how many
	// there are, so walk them one at a time within a bounded sub-view until
	// that many bytes have been consumed.
	payload, ok := cur.ReadBytes(int(byteLen))
	if !ok {
		return ErrStreamExhausted
	}
	sub := NewCursor(payload)
	for sub.Remaining() > 0 {
		if err := s.Skip(sub, elemIdx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Skipper) skipMap(cur *Cursor, idx int32) error {
	count, ok := cur.ReadU64()
	if !ok {
		return ErrStreamExhausted
	}
	keyIdx, valIdx := idx+1, s.source.Types[idx].MapValueLinkIndex
	for i := uint64(0); i < count; i++ {
		if err := s.Skip(cur, keyIdx); err != nil {
			return err
		}
		if err := s.Skip(cur, valIdx); err != nil {
			return err
		}
	}
	return nil
}

// isBulkSkippable mirrors the exact read/write paths' bulk-copy gate:
// primitive or recursively packed elements have a fixed per-element wire
// size, so the whole vector payload can be discarded in one operation.
func (s *Skipper) isBulkSkippable(idx int32) bool {
	d := &s.source.Types[idx]
	if d.Category.IsPrimitive() {
		return true
	}
	target := idx
	if d.LinkIndex >= 0 {
		target = d.LinkIndex
	}
	return s.source.Types[target].IsRecursivelyPacked
}
