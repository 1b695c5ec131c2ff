package binschema

import "unsafe"

// readPrimitiveRaw loads the bytes at ptr that hold a value of category cat,
// widened into a uint64 bit pattern. The caller is responsible for knowing
// cat and reinterpreting the bits accordingly (signed ints and floats are
// carried through unchanged, never numerically converted here).
func readPrimitiveRaw(cat TypeCategory, ptr unsafe.Pointer) uint64 {
	switch cat {
	case CategoryU8, CategoryI8:
		return uint64(*(*uint8)(ptr))
	case CategoryU16, CategoryI16:
		return uint64(*(*uint16)(ptr))
	case CategoryU32, CategoryI32, CategoryF32:
		return uint64(*(*uint32)(ptr))
	case CategoryU64, CategoryI64, CategoryF64:
		return *(*uint64)(ptr)
	default:
		panic("binschema: readPrimitiveRaw called with non-primitive category")
	}
}

// writePrimitiveRaw stores a raw bit pattern into the in-memory field at ptr
// sized per cat - the inverse of readPrimitiveRaw.
func writePrimitiveRaw(cat TypeCategory, ptr unsafe.Pointer, raw uint64) {
	switch cat {
	case CategoryU8, CategoryI8:
		*(*uint8)(ptr) = uint8(raw)
	case CategoryU16, CategoryI16:
		*(*uint16)(ptr) = uint16(raw)
	case CategoryU32, CategoryI32, CategoryF32:
		*(*uint32)(ptr) = uint32(raw)
	case CategoryU64, CategoryI64, CategoryF64:
		*(*uint64)(ptr) = raw
	default:
		panic("binschema: writePrimitiveRaw called with non-primitive category")
	}
}
