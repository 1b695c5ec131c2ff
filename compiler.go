package binschema

import (
	"fmt"
	"hash/crc32"
	"reflect"
	"unsafe"
)

// defaultTagName is the struct tag key read by Compile; use CompileUsingTag
// for framework integration under a different tag name (mirrors the
// teacher's "glint"-tag / usingTagName convention).
const defaultTagName = "schema"

// Compiler builds a Schema for a Go struct type by walking it with
// reflection (spec.md §4.1, Design Notes option (c): "register types at
// startup via an init function" - here, at first use, memoized by SchemaOf).
type Compiler struct {
	cfg     CompilerConfig
	tagName string
}

// NewCompiler builds a Compiler bound to cfg's depth/type-count limits and
// default Options.
func NewCompiler(cfg CompilerConfig) *Compiler {
	return &Compiler{cfg: cfg, tagName: defaultTagName}
}

// UsingTag returns a copy of c that reads a different struct tag key.
func (c *Compiler) UsingTag(tagName string) *Compiler {
	cp := *c
	cp.tagName = tagName
	return &cp
}

// Compile walks t (which must be, or point to, a struct) and returns its
// flat descriptor table. Fails (spec.md §7 ErrTypeMismatch) if t's
// underlying kind is not Struct; fails with ErrSchemaTooDeep/ErrSchemaTooLarge
// if the configured Compiler limits are exceeded - both are compile-time-only
// failures, never raised mid read/write.
func (c *Compiler) Compile(t reflect.Type) (*Schema, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, ErrTypeMismatch
	}

	b := &schemaBuilder{
		cfg:      c.cfg,
		tagName:  c.tagName,
		seen:     make(map[reflect.Type]int32),
		maxDepth: c.cfg.maxDepth(),
		maxTypes: c.cfg.maxTypeCount(),
	}

	rootIdx, err := b.buildType(t, 0)
	if err != nil {
		return nil, err
	}
	if rootIdx != 0 {
		// buildType always places the first-ever type at index 0 for a
		// fresh builder; this would only trip if that invariant regresses.
		return nil, fmt.Errorf("binschema: internal error: root type not at index 0")
	}

	memo := make(map[int32]bool, len(b.types))
	b.markRecursivelyPacked(0, memo)

	schema := &Schema{
		Types:      b.types,
		Names:      b.names,
		VTables:    b.vtables,
		MapVTables: b.mapVtables,
		GoType:     t,
	}
	schema.Hash = hashTypes(schema.Types)
	return schema, nil
}

// Compile is a convenience wrapper that compiles T's schema using a Compiler
// built from DefaultCompilerConfig.
func Compile[T any]() (*Schema, error) {
	var zero T
	return NewCompiler(DefaultCompilerConfig).Compile(reflect.TypeOf(zero))
}

type schemaBuilder struct {
	cfg     CompilerConfig
	tagName string

	types      []TypeInfo
	names      []string
	vtables    []VectorVTable
	mapVtables []MapVTable

	seen map[reflect.Type]int32 // Go type identity -> header index, for dedup (spec.md §4.1)

	maxDepth int
	maxTypes int
}

// reserve appends n placeholder descriptors and returns the index of the first.
func (b *schemaBuilder) reserve(n int) int32 {
	idx := int32(len(b.types))
	for i := 0; i < n; i++ {
		b.types = append(b.types, TypeInfo{LinkIndex: -1, MapValueLinkIndex: -1})
		b.names = append(b.names, "")
	}
	return idx
}

// buildType returns the header index describing t, building it (and its
// children) the first time t is seen and returning the memoized index
// thereafter (spec.md §4.1 dedup-by-type-identity).
func (b *schemaBuilder) buildType(t reflect.Type, depth int) (int32, error) {
	if b.maxDepth > 0 && depth > b.maxDepth {
		return 0, ErrSchemaTooDeep
	}
	if idx, ok := b.seen[t]; ok {
		return idx, nil
	}
	if b.maxTypes > 0 && len(b.types) >= b.maxTypes {
		return 0, ErrSchemaTooLarge
	}

	switch t.Kind() {
	case reflect.Struct:
		if t == timeType {
			return b.buildTimeType(t)
		}
		return b.buildStruct(t, depth)
	case reflect.Array:
		return b.buildArray(t, depth)
	case reflect.Slice:
		return b.buildSlice(t, depth)
	case reflect.String:
		return b.buildString(t)
	case reflect.Map:
		return b.buildMap(t, depth)
	default:
		return 0, fmt.Errorf("binschema: unsupported kind %v for type %v", t.Kind(), t)
	}
}

// buildTimeType describes time.Time as a fixed 16-byte struct of two I64
// members at offsets 0 and 8 (named "seconds" and "nanoseconds") instead of
// walking its unexported fields. The header is not marked packed. The codecs
// copy those 16 bytes of time.Time's in-memory representation as they are;
// no conversion to or from Unix seconds/nanoseconds is performed, and the
// remaining bytes of the value (its location) are neither written nor read.
func (b *schemaBuilder) buildTimeType(t reflect.Type) (int32, error) {
	idx := b.reserve(3)
	b.seen[t] = idx
	b.types[idx] = TypeInfo{Category: CategoryStruct, SizeBytes: 16, MemberCount: 2, LinkIndex: -1, MapValueLinkIndex: -1}
	b.types[idx+1] = TypeInfo{Category: CategoryI64, SizeBytes: 8, OffsetBytes: 0, MemberTag: 0, LinkIndex: -1, MapValueLinkIndex: -1}
	b.types[idx+2] = TypeInfo{Category: CategoryI64, SizeBytes: 8, OffsetBytes: 8, MemberTag: 1, LinkIndex: -1, MapValueLinkIndex: -1}
	b.names[idx+1], b.names[idx+2] = "seconds", "nanoseconds"
	return idx, nil
}

func (b *schemaBuilder) buildStruct(t reflect.Type, depth int) (int32, error) {
	type pendingField struct {
		memberIdx int32
		fieldType reflect.Type
	}

	// collect tagged fields first so MemberCount/placeholders can be reserved up front
	type taggedField struct {
		field reflect.StructField
		tag   int32
		opts  tagOptions
	}
	var fields []taggedField
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tagStr, ok := f.Tag.Lookup(b.tagName)
		if !ok {
			continue
		}
		ordinal, opts, ok := parseSchemaTag(tagStr)
		if !ok {
			continue
		}
		fields = append(fields, taggedField{field: f, tag: ordinal, opts: opts})
	}

	seenTags := make(map[int32]bool, len(fields))
	for _, f := range fields {
		if seenTags[f.tag] {
			return 0, fmt.Errorf("%w: %v.%s reuses tag %d", ErrDuplicateMemberTag, t, f.field.Name, f.tag)
		}
		seenTags[f.tag] = true
	}

	headerIdx := b.reserve(1 + len(fields))
	b.seen[t] = headerIdx // register before recursing: safe even though cycles are excluded

	sumMemberSizes := uint32(0)
	var pending []pendingField

	for i, f := range fields {
		memberIdx := headerIdx + 1 + int32(i)
		b.names[memberIdx] = f.field.Name

		ft := f.field.Type
		var cat TypeCategory
		var size uint32
		switch ft.Kind() {
		case reflect.Struct, reflect.Array, reflect.Slice, reflect.String, reflect.Map:
			switch ft.Kind() {
			case reflect.Struct:
				cat = CategoryStruct
			case reflect.Array:
				cat = CategoryArray
			case reflect.Slice:
				cat = CategoryVector
			case reflect.String:
				cat = CategoryVector
			case reflect.Map:
				cat = CategoryMap
			}
			size = uint32(ft.Size())
			pending = append(pending, pendingField{memberIdx: memberIdx, fieldType: ft})
		default:
			cat = reflectKindToCategory(ft.Kind())
			size = primitiveSize(cat)
		}

		sumMemberSizes += size
		b.types[memberIdx] = TypeInfo{
			Category:    cat,
			SizeBytes:   size,
			OffsetBytes: uint32(f.field.Offset),
			MemberTag:   f.tag,
			LinkIndex:   -1,
			MapValueLinkIndex: -1,
		}
	}

	b.types[headerIdx] = TypeInfo{
		Category:    CategoryStruct,
		SizeBytes:   uint32(t.Size()),
		MemberCount: uint16(len(fields)),
		IsPacked:    sumMemberSizes == uint32(t.Size()),
		LinkIndex:   -1,
		MapValueLinkIndex: -1,
	}

	for _, p := range pending {
		childIdx, err := b.buildType(p.fieldType, depth+1)
		if err != nil {
			return 0, err
		}
		b.types[p.memberIdx].LinkIndex = childIdx
	}

	return headerIdx, nil
}

func (b *schemaBuilder) buildArray(t reflect.Type, depth int) (int32, error) {
	idx := b.reserve(2)
	b.seen[t] = idx

	elemType := t.Elem()
	n := uint32(t.Len())

	b.types[idx] = TypeInfo{
		Category:  CategoryArray,
		SizeBytes: uint32(t.Size()),
		Length:    n,
		LinkIndex: -1,
		MapValueLinkIndex: -1,
	}

	elemIdx := idx + 1
	if err := b.buildElementSlot(elemIdx, elemType, depth); err != nil {
		return 0, err
	}
	return idx, nil
}

func (b *schemaBuilder) buildSlice(t reflect.Type, depth int) (int32, error) {
	elemType := t.Elem()

	idx := b.reserve(2)
	b.seen[t] = idx

	b.types[idx] = TypeInfo{
		Category:  CategoryVector,
		SizeBytes: uint32(unsafe.Sizeof([]byte(nil))),
		LinkIndex: -1,
		MapValueLinkIndex: -1,
	}

	elemIdx := idx + 1
	if err := b.buildElementSlot(elemIdx, elemType, depth); err != nil {
		return 0, err
	}

	b.vtables = append(b.vtables, newSliceVTable(idx, elemType))
	return idx, nil
}

// buildString represents a Go string as a Vector of U8 (spec.md has no
// dedicated String category; see SPEC_FULL.md §3 / DESIGN.md).
func (b *schemaBuilder) buildString(t reflect.Type) (int32, error) {
	idx := b.reserve(2)
	b.seen[t] = idx

	b.types[idx] = TypeInfo{
		Category:  CategoryVector,
		SizeBytes: uint32(unsafe.Sizeof("")),
		LinkIndex: -1,
		MapValueLinkIndex: -1,
	}
	b.types[idx+1] = TypeInfo{Category: CategoryU8, SizeBytes: 1, LinkIndex: -1, MapValueLinkIndex: -1}

	b.vtables = append(b.vtables, newStringVTable(idx))
	return idx, nil
}

func (b *schemaBuilder) buildMap(t reflect.Type, depth int) (int32, error) {
	keyType, valType := t.Key(), t.Elem()

	idx := b.reserve(3)
	b.seen[t] = idx

	b.types[idx] = TypeInfo{
		Category:  CategoryMap,
		SizeBytes: uint32(t.Size()),
		LinkIndex: -1,
		MapValueLinkIndex: idx + 2,
	}

	if err := b.buildElementSlot(idx+1, keyType, depth); err != nil {
		return 0, err
	}
	if err := b.buildElementSlot(idx+2, valType, depth); err != nil {
		return 0, err
	}

	b.mapVtables = append(b.mapVtables, newMapVTable(idx, keyType, valType))
	return idx, nil
}

// buildElementSlot fills in the descriptor at slotIdx (already reserved) for
// an Array/Vector element or Map key/value type, recursing for complex types.
func (b *schemaBuilder) buildElementSlot(slotIdx int32, elemType reflect.Type, depth int) error {
	switch elemType.Kind() {
	case reflect.Struct, reflect.Array, reflect.Slice, reflect.String, reflect.Map:
		var cat TypeCategory
		switch elemType.Kind() {
		case reflect.Struct:
			cat = CategoryStruct
		case reflect.Array:
			cat = CategoryArray
		case reflect.Slice:
			cat = CategoryVector
		case reflect.String:
			cat = CategoryVector
		case reflect.Map:
			cat = CategoryMap
		}
		b.types[slotIdx] = TypeInfo{Category: cat, SizeBytes: uint32(elemType.Size()), LinkIndex: -1, MapValueLinkIndex: -1}
		childIdx, err := b.buildType(elemType, depth+1)
		if err != nil {
			return err
		}
		b.types[slotIdx].LinkIndex = childIdx
		return nil
	default:
		cat := reflectKindToCategory(elemType.Kind())
		b.types[slotIdx] = TypeInfo{Category: cat, SizeBytes: primitiveSize(cat), LinkIndex: -1, MapValueLinkIndex: -1}
		return nil
	}
}

// markRecursivelyPacked computes IsRecursivelyPacked bottom-up (spec.md §3.2,
// grounded on ReflectionFlatSchemaCompiler.h's markPackedStructs), memoized
// per descriptor index since dedup means the same index can be reached from
// multiple parents.
func (b *schemaBuilder) markRecursivelyPacked(idx int32, memo map[int32]bool) bool {
	if v, ok := memo[idx]; ok {
		return v
	}
	// guard against revisiting while computing (defensive; cycles are
	// excluded by spec.md's data model, but this avoids infinite recursion
	// if that invariant is ever violated upstream).
	memo[idx] = false

	t := &b.types[idx]
	var packed bool
	switch t.Category {
	case CategoryStruct:
		packed = t.IsPacked
		for i := int32(0); i < int32(t.MemberCount); i++ {
			member := &b.types[idx+1+i]
			childPacked := true
			if member.Category.IsPrimitive() {
				childPacked = true
			} else {
				childPacked = b.markRecursivelyPacked(b.types[idx+1+i].LinkIndex, memo)
			}
			if !childPacked {
				packed = false
			}
		}
	case CategoryArray:
		elemIdx := idx + 1
		elem := &b.types[elemIdx]
		if elem.Category.IsPrimitive() {
			packed = true
		} else {
			packed = b.markRecursivelyPacked(elem.LinkIndex, memo)
		}
	default:
		// Vector and Map always break recursive packing (spec.md §3.2); primitives are packed by definition.
		packed = t.Category.IsPrimitive()
	}

	t.IsRecursivelyPacked = packed
	memo[idx] = packed
	return packed
}

// hashTypes produces a stable CRC32 over a schema's descriptor table, used
// for schema-trust negotiation between encoder and decoder (grounded on the
// teacher's crc32 schema hash in encoder.go).
func hashTypes(types []TypeInfo) uint32 {
	buf := make([]byte, 0, len(types)*24)
	for _, t := range types {
		buf = appendUint32(buf, uint32(t.Category))
		buf = appendUint32(buf, t.SizeBytes)
		buf = appendUint32(buf, t.OffsetBytes)
		buf = appendUint32(buf, uint32(t.MemberTag))
		buf = appendUint32(buf, t.Length)
		buf = appendUint32(buf, uint32(t.MemberCount))
		buf = appendUint32(buf, uint32(t.LinkIndex))
		buf = appendUint32(buf, uint32(t.MapValueLinkIndex))
	}
	return crc32.ChecksumIEEE(buf)
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
