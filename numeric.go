package binschema

import "math"

// numericKind lists the Go kinds a TypeCategory primitive can decode to;
// conversions between any two are always legal Go conversions, so a single
// generic encodeRaw covers every sink category without a 10x10 case table.
type numericKind interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

func encodeRaw[T numericKind](sinkCat TypeCategory, v T) uint64 {
	switch sinkCat {
	case CategoryU8:
		return uint64(uint8(v))
	case CategoryU16:
		return uint64(uint16(v))
	case CategoryU32:
		return uint64(uint32(v))
	case CategoryU64:
		return uint64(v)
	case CategoryI8:
		return uint64(uint8(int8(v)))
	case CategoryI16:
		return uint64(uint16(int16(v)))
	case CategoryI32:
		return uint64(uint32(int32(v)))
	case CategoryI64:
		return uint64(int64(v))
	case CategoryF32:
		return uint64(math.Float32bits(float32(v)))
	case CategoryF64:
		return math.Float64bits(float64(v))
	default:
		panic("binschema: encodeRaw called with non-primitive sink category")
	}
}

// convertPrimitive casts the source value (raw, tagged srcCat) to sinkCat,
// reproducing the same result a direct numeric cast from the source Go type
// to the sink Go type would (spec.md §8 invariant 7).
func convertPrimitive(srcCat TypeCategory, raw uint64, sinkCat TypeCategory) uint64 {
	switch srcCat {
	case CategoryU8:
		return encodeRaw(sinkCat, uint8(raw))
	case CategoryU16:
		return encodeRaw(sinkCat, uint16(raw))
	case CategoryU32:
		return encodeRaw(sinkCat, uint32(raw))
	case CategoryU64:
		return encodeRaw(sinkCat, raw)
	case CategoryI8:
		return encodeRaw(sinkCat, int8(raw))
	case CategoryI16:
		return encodeRaw(sinkCat, int16(raw))
	case CategoryI32:
		return encodeRaw(sinkCat, int32(raw))
	case CategoryI64:
		return encodeRaw(sinkCat, int64(raw))
	case CategoryF32:
		return encodeRaw(sinkCat, math.Float32frombits(uint32(raw)))
	case CategoryF64:
		return encodeRaw(sinkCat, math.Float64frombits(raw))
	default:
		panic("binschema: convertPrimitive called with non-primitive source category")
	}
}

// needsTruncationGate reports whether converting srcCat -> sinkCat requires
// Options.AllowFloatToIntTruncation (spec.md §3.5, §7): float source to
// integer sink, or a change of float width in either direction. Integer to
// integer (any width/signedness) and integer to float are never gated.
func needsTruncationGate(srcCat, sinkCat TypeCategory) bool {
	srcFloat := srcCat == CategoryF32 || srcCat == CategoryF64
	sinkFloat := sinkCat == CategoryF32 || sinkCat == CategoryF64
	if srcFloat && !sinkFloat {
		return true
	}
	if srcFloat && sinkFloat && srcCat != sinkCat {
		return true
	}
	return false
}
