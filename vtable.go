package binschema

import (
	"reflect"
	"unsafe"
)

// VectorVTable is the resize/span contract a dynamic container type (a Go
// slice, in this implementation) must provide to the exact and versioned
// read/write paths (spec.md §3.3). One instance is emitted per distinct
// container type referenced by a Schema, mirroring the function-pointer
// vtables the C++ original keys by schema link index (see DESIGN.md).
type VectorVTable interface {
	// LinkIndex is the descriptor index this vtable is bound to.
	LinkIndex() int32

	// ElementSize is the in-memory size of one element.
	ElementSize() uint32

	// Resize grows or shrinks the container addressed by object to hold
	// exactly sizeBytes/ElementSize() elements, constructing new elements
	// as needed. dropExcess controls truncation for fixed-capacity sinks;
	// the slice-backed implementation here has no fixed capacity ceiling,
	// so dropExcess is accepted for interface parity and ignored.
	Resize(object unsafe.Pointer, sizeBytes uint64, dropExcess bool) bool

	// ResizeUninitialized is like Resize but may skip zeroing - legal only
	// when the caller immediately overwrites every byte (the exact reader's
	// packed bulk-copy path).
	ResizeUninitialized(object unsafe.Pointer, sizeBytes uint64, dropExcess bool) bool

	// SegmentSpan returns the current contents as a contiguous byte view,
	// valid only when the element type is primitive or recursively packed.
	SegmentSpan(object unsafe.Pointer) []byte

	// Len reports the current element count.
	Len(object unsafe.Pointer) int

	// ElementAddr returns a pointer to element i, for element-wise descent
	// when the element type is not recursively packed.
	ElementAddr(object unsafe.Pointer, i int) unsafe.Pointer
}

// sliceVTable implements VectorVTable for a Go slice field of a fixed
// element type, resolved once at schema-compile time from reflect.Type.
type sliceVTable struct {
	linkIndex int32
	elemType  reflect.Type
	elemSize  uint32
}

func newSliceVTable(linkIndex int32, elemType reflect.Type) *sliceVTable {
	return &sliceVTable{linkIndex: linkIndex, elemType: elemType, elemSize: uint32(elemType.Size())}
}

func (v *sliceVTable) LinkIndex() int32    { return v.linkIndex }
func (v *sliceVTable) ElementSize() uint32 { return v.elemSize }

// sliceValue recovers a reflect.Value addressing the *[]T field at object.
func (v *sliceVTable) sliceValue(object unsafe.Pointer) reflect.Value {
	return reflect.NewAt(reflect.SliceOf(v.elemType), object).Elem()
}

func (v *sliceVTable) resize(object unsafe.Pointer, sizeBytes uint64, zero bool) bool {
	if v.elemSize == 0 {
		return sizeBytes == 0
	}
	if sizeBytes%uint64(v.elemSize) != 0 {
		return false
	}
	n := int(sizeBytes / uint64(v.elemSize))

	sv := v.sliceValue(object)
	if n <= sv.Cap() {
		oldLen := sv.Len()
		sv.SetLen(n)
		if zero && n > oldLen {
			z := reflect.Zero(v.elemType)
			for i := oldLen; i < n; i++ {
				sv.Index(i).Set(z)
			}
		}
		return true
	}

	fresh := reflect.MakeSlice(reflect.SliceOf(v.elemType), n, n)
	sv.Set(fresh)
	return true
}

func (v *sliceVTable) Resize(object unsafe.Pointer, sizeBytes uint64, dropExcess bool) bool {
	return v.resize(object, sizeBytes, true)
}

func (v *sliceVTable) ResizeUninitialized(object unsafe.Pointer, sizeBytes uint64, dropExcess bool) bool {
	return v.resize(object, sizeBytes, false)
}

func (v *sliceVTable) Len(object unsafe.Pointer) int {
	return v.sliceValue(object).Len()
}

func (v *sliceVTable) SegmentSpan(object unsafe.Pointer) []byte {
	sv := v.sliceValue(object)
	n := sv.Len()
	if n == 0 {
		return nil
	}
	data := sv.Index(0).Addr().UnsafePointer()
	return unsafe.Slice((*byte)(data), n*int(v.elemSize))
}

func (v *sliceVTable) ElementAddr(object unsafe.Pointer, i int) unsafe.Pointer {
	return v.sliceValue(object).Index(i).Addr().UnsafePointer()
}

// MapVTable is the supplemental container contract for CategoryMap (SPEC_FULL.md
// §3). Maps are never contiguous in memory, so they get their own small
// interface rather than forcing a byte-span shape onto them.
type MapVTable interface {
	LinkIndex() int32
	Len(object unsafe.Pointer) int
	// Iterate calls fn once per entry with addressable pointers to a key and
	// value of the map's key/value types.
	Iterate(object unsafe.Pointer, fn func(keyPtr, valPtr unsafe.Pointer))
	// MakeEmpty replaces the map at object with a fresh map of the given
	// capacity hint, discarding any existing contents.
	MakeEmpty(object unsafe.Pointer, sizeHint int)
	// SetEntry inserts/overwrites one entry using the pointed-to key/value.
	SetEntry(object unsafe.Pointer, keyPtr, valPtr unsafe.Pointer)
}

type mapVTable struct {
	linkIndex int32
	keyType   reflect.Type
	valType   reflect.Type
}

func newMapVTable(linkIndex int32, keyType, valType reflect.Type) *mapVTable {
	return &mapVTable{linkIndex: linkIndex, keyType: keyType, valType: valType}
}

func (v *mapVTable) LinkIndex() int32 { return v.linkIndex }

func (v *mapVTable) mapValue(object unsafe.Pointer) reflect.Value {
	return reflect.NewAt(reflect.MapOf(v.keyType, v.valType), object).Elem()
}

func (v *mapVTable) Len(object unsafe.Pointer) int {
	mv := v.mapValue(object)
	if mv.IsNil() {
		return 0
	}
	return mv.Len()
}

func (v *mapVTable) Iterate(object unsafe.Pointer, fn func(keyPtr, valPtr unsafe.Pointer)) {
	mv := v.mapValue(object)
	if mv.IsNil() {
		return
	}
	iter := mv.MapRange()
	for iter.Next() {
		k := reflect.New(v.keyType)
		k.Elem().Set(iter.Key())
		val := reflect.New(v.valType)
		val.Elem().Set(iter.Value())
		fn(k.UnsafePointer(), val.UnsafePointer())
	}
}

func (v *mapVTable) MakeEmpty(object unsafe.Pointer, sizeHint int) {
	fresh := reflect.MakeMapWithSize(reflect.MapOf(v.keyType, v.valType), sizeHint)
	v.mapValue(object).Set(fresh)
}

func (v *mapVTable) SetEntry(object unsafe.Pointer, keyPtr, valPtr unsafe.Pointer) {
	mv := v.mapValue(object)
	key := reflect.NewAt(v.keyType, keyPtr).Elem()
	val := reflect.NewAt(v.valType, valPtr).Elem()
	mv.SetMapIndex(key, val)
}

// stringVTable implements VectorVTable for a Go string field, modeled on the
// wire as a Vector of U8 (see compiler.go's buildString). Go strings are
// immutable, so Resize builds a fresh zeroed backing []byte and commits it
// via SetString rather than mutating in place. SegmentSpan and ElementAddr
// alias the string's bytes; the read paths write through them only right
// after Resize/ResizeUninitialized, while that fresh buffer is not yet
// shared with any other string.
type stringVTable struct {
	linkIndex int32
}

func newStringVTable(linkIndex int32) *stringVTable {
	return &stringVTable{linkIndex: linkIndex}
}

func (v *stringVTable) LinkIndex() int32    { return v.linkIndex }
func (v *stringVTable) ElementSize() uint32 { return 1 }

func (v *stringVTable) stringValue(object unsafe.Pointer) reflect.Value {
	return reflect.NewAt(reflect.TypeOf(""), object).Elem()
}

func (v *stringVTable) Resize(object unsafe.Pointer, sizeBytes uint64, dropExcess bool) bool {
	scratch := make([]byte, sizeBytes)
	v.stringValue(object).SetString(unsafe.String(unsafe.SliceData(scratch), len(scratch)))
	return true
}

func (v *stringVTable) ResizeUninitialized(object unsafe.Pointer, sizeBytes uint64, dropExcess bool) bool {
	return v.Resize(object, sizeBytes, dropExcess)
}

func (v *stringVTable) Len(object unsafe.Pointer) int {
	return v.stringValue(object).Len()
}

func (v *stringVTable) SegmentSpan(object unsafe.Pointer) []byte {
	s := v.stringValue(object).String()
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func (v *stringVTable) ElementAddr(object unsafe.Pointer, i int) unsafe.Pointer {
	// The exact read/write paths use SegmentSpan for strings; the versioned
	// reader's Vector sink (sinkContainer.finish) calls ElementAddr once per
	// byte after resizing, to copy each decoded byte in.
	s := v.stringValue(object).String()
	return unsafe.Pointer(unsafe.StringData(s[i:]))
}

// setStringField commits a []byte directly into a string field. The read
// paths do not call it; they fill strings through Resize and SegmentSpan
// or ElementAddr.
func setStringField(object unsafe.Pointer, data []byte) {
	reflect.NewAt(reflect.TypeOf(""), object).Elem().SetString(string(data))
}
