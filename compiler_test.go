package binschema

import (
	"errors"
	"reflect"
	"testing"
)

type dupTagStruct struct {
	A int32 `schema:"0"`
	B int32 `schema:"0"`
}

func TestCompile_DuplicateMemberTagRejected(t *testing.T) {
	if _, err := Compile[dupTagStruct](); !errors.Is(err, ErrDuplicateMemberTag) {
		t.Fatalf("expected ErrDuplicateMemberTag, got %v", err)
	}
}

type notAStruct struct{}

func TestCompile_NonStructRootRejected(t *testing.T) {
	c := NewCompiler(DefaultCompilerConfig)
	if _, err := c.Compile(reflect.TypeOf(int32(0))); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch for a non-struct root, got %v", err)
	}
}

// sameTypeTwice shares one field type across two members; the compiler must
// dedup by reflect.Type identity rather than emitting the descriptor twice
// (spec.md §4.1).
type sharedChild struct {
	A int32 `schema:"0"`
}
type sameTypeTwice struct {
	First  sharedChild `schema:"0"`
	Second sharedChild `schema:"1"`
}

func TestCompile_DedupByTypeIdentity(t *testing.T) {
	schema, err := Compile[sameTypeTwice]()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	root := schema.Root()
	firstLink := schema.Types[1].LinkIndex
	secondLink := schema.Types[2].LinkIndex
	if firstLink != secondLink {
		t.Fatalf("expected both sharedChild members to point at the same descriptor, got %d and %d", firstLink, secondLink)
	}
	if root.MemberCount != 2 {
		t.Fatalf("expected 2 members, got %d", root.MemberCount)
	}
}

type mixedPackStruct struct {
	A int32    `schema:"0"`
	B []int32  `schema:"1"`
	C int32    `schema:"2"`
}

func TestCompile_VectorBreaksRecursivePacking(t *testing.T) {
	schema, err := Compile[mixedPackStruct]()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if schema.Root().IsRecursivelyPacked {
		t.Fatalf("a struct containing a Vector member must never be recursively packed")
	}
}

func TestCompile_SchemaWithinDepthLimitAccepted(t *testing.T) {
	type inner struct {
		V int32 `schema:"0"`
	}
	cfg := DefaultCompilerConfig
	cfg.MaxSchemaDepth = "1"
	c := NewCompiler(cfg)
	if _, err := c.Compile(reflect.TypeOf(inner{})); err != nil {
		t.Fatalf("a depth-1 struct of primitives should compile under MaxSchemaDepth=1: %v", err)
	}
}
