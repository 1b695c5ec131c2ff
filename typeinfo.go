package binschema

import (
	"reflect"

	"golang.org/x/mod/semver"
)

// TypeInfo is one descriptor in a Schema's flat table (spec.md §3.2).
//
// Which fields are meaningful depends on Category:
//   - Struct header: MemberCount, IsPacked, IsRecursivelyPacked
//   - Struct member: OffsetBytes, MemberTag
//   - Array header: Length (element count); element descriptor at i+1
//   - Vector/Map header: element (or key) descriptor at i+1
//
// The C++ original packs this into 8 bytes via a union; Go has no portable
// union, so this descriptor is wider in memory. That costs nothing at the
// wire level - TypeInfo never appears in the wire format, only in the
// process-lifetime schema table - so the 8-byte constraint is treated as an
// implementation detail of the source language, not a requirement.
type TypeInfo struct {
	Category  TypeCategory
	SizeBytes uint32 // size of this value's in-memory representation

	OffsetBytes uint32 // struct member only: byte offset within parent
	MemberTag   int32  // struct member only: user-declared ordinal; 0 otherwise

	Length uint32 // array header only: element count

	MemberCount         uint16 // struct header only
	IsPacked            bool   // struct header only
	IsRecursivelyPacked bool   // any category: see spec.md §3.2

	// LinkIndex points at the sub-schema of the element/field type:
	//   - struct member or Array/Vector/Map element (or key/value) slot whose
	//     type is Struct/Array/Vector/Map -> that type's header index
	// -1 on primitives and on every header; a header's element (or key, for
	// Map) descriptor is always found at i+1 instead.
	LinkIndex int32

	// MapValueLinkIndex is the supplemental second link used only by Map
	// headers: the value type's descriptor index (the key type uses the
	// i+1 slot). See SPEC_FULL.md §3.
	MapValueLinkIndex int32
}

// Schema is the immutable, process-lifetime output of the Compiler for one
// top-level type (spec.md §2, §3.2, §5). Construct via Compile or Compiler.Compile.
type Schema struct {
	Types      []TypeInfo
	Names      []string // parallel to Types; struct member / map key-value debug names, "" otherwise
	VTables    []VectorVTable
	MapVTables []MapVTable
	GoType     reflect.Type

	Hash    uint32 // CRC32 over a stable encoding of Types, for schema-trust negotiation
	Version string // optional semver-ish tag set by the caller, compared via semver.Compare
}

// Root returns the header descriptor for the schema's top-level type, always index 0.
func (s *Schema) Root() *TypeInfo { return &s.Types[0] }

// vtableFor returns the container vtable bound to the descriptor at idx, or nil.
func (s *Schema) vtableFor(idx int32) VectorVTable {
	for i := range s.VTables {
		if s.VTables[i].LinkIndex() == idx {
			return s.VTables[i]
		}
	}
	return nil
}

// mapVTableFor returns the map vtable bound to the descriptor at idx, or nil.
func (s *Schema) mapVTableFor(idx int32) MapVTable {
	for i := range s.MapVTables {
		if s.MapVTables[i].LinkIndex() == idx {
			return s.MapVTables[i]
		}
	}
	return nil
}

// elementIndex returns the descriptor index of the element (or, for struct
// members pointing at a sub-schema, the field) type linked from idx.
func (s *Schema) elementIndex(idx int32) int32 {
	t := &s.Types[idx]
	if t.LinkIndex >= 0 {
		return t.LinkIndex
	}
	return idx + 1
}

// findMemberByTag scans the direct members of the struct header at idx for one
// whose MemberTag equals tag, returning its descriptor index or -1.
func (s *Schema) findMemberByTag(idx int32, tag int32) int32 {
	header := &s.Types[idx]
	for i := int32(0); i < int32(header.MemberCount); i++ {
		memberIdx := idx + 1 + i
		if s.Types[memberIdx].MemberTag == tag {
			return memberIdx
		}
	}
	return -1
}

// CompareSchemaVersions orders two schemas by their optional Version tag
// using semver rules, for diagnostics only - tag-based member matching
// (spec.md §4.4), not version comparison, decides what a VersionedReader
// actually accepts. ok is false if either Version is empty or not valid
// semver, in which case cmp is meaningless.
func CompareSchemaVersions(a, b *Schema) (cmp int, ok bool) {
	if !semver.IsValid(a.Version) || !semver.IsValid(b.Version) {
		return 0, false
	}
	return semver.Compare(a.Version, b.Version), true
}

// resolvedIndex follows a struct-member's LinkIndex to the descriptor that
// actually describes its type (Struct/Array/Vector/Map header), or returns
// idx unchanged for primitives.
func (s *Schema) resolvedIndex(idx int32) int32 {
	if s.Types[idx].LinkIndex >= 0 {
		return s.Types[idx].LinkIndex
	}
	return idx
}
