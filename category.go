// Package binschema implements a reflection-driven binary schema codec:
// a flat descriptor table is built once per type at first use, and that
// table drives exact (same-schema) and versioned (cross-schema) encoding
// of Go struct values to and from a compact, non-self-describing byte
// stream.
package binschema

import (
	"fmt"
	"reflect"
	"time"
)

// TypeCategory tags every descriptor in a Schema's flat table.
type TypeCategory uint8

const (
	CategoryInvalid TypeCategory = iota
	CategoryStruct
	CategoryArray
	CategoryVector
	CategoryMap // supplemental: see SPEC_FULL.md §3
	CategoryU8
	CategoryU16
	CategoryU32
	CategoryU64
	CategoryI8
	CategoryI16
	CategoryI32
	CategoryI64
	CategoryF32
	CategoryF64
)

func (c TypeCategory) String() string {
	switch c {
	case CategoryInvalid:
		return "Invalid"
	case CategoryStruct:
		return "Struct"
	case CategoryArray:
		return "Array"
	case CategoryVector:
		return "Vector"
	case CategoryMap:
		return "Map"
	case CategoryU8:
		return "U8"
	case CategoryU16:
		return "U16"
	case CategoryU32:
		return "U32"
	case CategoryU64:
		return "U64"
	case CategoryI8:
		return "I8"
	case CategoryI16:
		return "I16"
	case CategoryI32:
		return "I32"
	case CategoryI64:
		return "I64"
	case CategoryF32:
		return "F32"
	case CategoryF64:
		return "F64"
	default:
		return fmt.Sprintf("TypeCategory(%d)", uint8(c))
	}
}

// IsPrimitive reports whether c is one of the ten fixed-width numeric categories.
func (c TypeCategory) IsPrimitive() bool {
	return c >= CategoryU8 && c <= CategoryF64
}

// IsContainer reports whether c owns a dynamically resized payload (Vector or Map).
func (c TypeCategory) IsContainer() bool {
	return c == CategoryVector || c == CategoryMap
}

var timeType = reflect.TypeOf(time.Time{})

// reflectKindToCategory maps a Go reflect.Kind to the matching primitive TypeCategory.
// Panics for kinds with no primitive counterpart - callers are expected to have
// already dispatched Struct/Slice/Map/Array/Pointer to their own handling.
func reflectKindToCategory(k reflect.Kind) TypeCategory {
	switch k {
	case reflect.Uint8:
		return CategoryU8
	case reflect.Uint16:
		return CategoryU16
	case reflect.Uint32:
		return CategoryU32
	case reflect.Uint64:
		return CategoryU64
	case reflect.Int8:
		return CategoryI8
	case reflect.Int16:
		return CategoryI16
	case reflect.Int32:
		return CategoryI32
	case reflect.Int64:
		return CategoryI64
	case reflect.Float32:
		return CategoryF32
	case reflect.Float64:
		return CategoryF64
	default:
		panic(fmt.Sprintf("binschema: %v has no primitive TypeCategory", k))
	}
}

// primitiveSize returns the in-memory size in bytes of a primitive category.
func primitiveSize(c TypeCategory) uint32 {
	switch c {
	case CategoryU8, CategoryI8:
		return 1
	case CategoryU16, CategoryI16:
		return 2
	case CategoryU32, CategoryI32, CategoryF32:
		return 4
	case CategoryU64, CategoryI64, CategoryF64:
		return 8
	default:
		panic(fmt.Sprintf("binschema: %v is not primitive", c))
	}
}
