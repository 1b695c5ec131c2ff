package binschema

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// The code in this file is not written with the same strict performance
// concerns as the rest of the package. It exists for tooling purposes -
// inspecting a compiled Schema from a REPL, a test failure, or a small CLI -
// and mirrors the teacher's printer.go in that respect, reworked from a
// self-describing wire walker into a descriptor-table walker since this
// format carries no schema on the wire.

// Print writes a human-readable tree of schema's descriptor table to stdout.
func Print(schema *Schema) {
	Fprint(os.Stdout, schema)
}

// Fprint writes a human-readable tree of schema's descriptor table to w.
func Fprint(w io.Writer, schema *Schema) {
	fmt.Fprintf(w, "schema %s (hash %08x, %d types)\n", schema.GoType, schema.Hash, len(schema.Types))
	printDescriptor(w, schema, 0, "", 0, make(map[int32]bool))
}

// printDescriptor writes one line for the descriptor at idx plus its
// children, guarding against re-printing a type already expanded elsewhere
// in the tree (dedup by Go type identity can make the same header index
// reachable from multiple parents).
func printDescriptor(w io.Writer, schema *Schema, idx int32, name string, depth int, seen map[int32]bool) {
	indent := strings.Repeat("  ", depth)
	d := &schema.Types[idx]

	label := name
	if label == "" {
		label = "<root>"
	}

	if d.Category.IsPrimitive() {
		fmt.Fprintf(w, "%s%s: %s\n", indent, label, d.Category)
		return
	}

	target := idx
	if d.LinkIndex >= 0 {
		target = d.LinkIndex
	}
	header := &schema.Types[target]

	switch header.Category {
	case CategoryStruct:
		fmt.Fprintf(w, "%s%s: struct (%d bytes, packed=%v, recursively_packed=%v)\n",
			indent, label, header.SizeBytes, header.IsPacked, header.IsRecursivelyPacked)
		if seen[target] {
			fmt.Fprintf(w, "%s  ...\n", indent)
			return
		}
		seen[target] = true
		for i := int32(0); i < int32(header.MemberCount); i++ {
			memberIdx := target + 1 + i
			memberName := schema.Names[memberIdx]
			if memberName == "" {
				memberName = fmt.Sprintf("field%d", i)
			}
			tagged := fmt.Sprintf("%s[tag=%d]", memberName, schema.Types[memberIdx].MemberTag)
			printDescriptor(w, schema, memberIdx, tagged, depth+1, seen)
		}

	case CategoryArray:
		fmt.Fprintf(w, "%s%s: array[%d] (recursively_packed=%v)\n", indent, label, header.Length, header.IsRecursivelyPacked)
		printDescriptor(w, schema, target+1, "elem", depth+1, seen)

	case CategoryVector:
		kind := "vector"
		if isStringVector(schema, target) {
			kind = "string"
		}
		fmt.Fprintf(w, "%s%s: %s\n", indent, label, kind)
		if kind != "string" {
			printDescriptor(w, schema, target+1, "elem", depth+1, seen)
		}

	case CategoryMap:
		fmt.Fprintf(w, "%s%s: map\n", indent, label)
		printDescriptor(w, schema, target+1, "key", depth+1, seen)
		printDescriptor(w, schema, header.MapValueLinkIndex, "value", depth+1, seen)

	default:
		fmt.Fprintf(w, "%s%s: <invalid>\n", indent, label)
	}
}

// isStringVector reports whether the Vector header at idx is backed by a
// stringVTable rather than a sliceVTable - printed distinctly since its
// single CategoryU8 element slot is an implementation detail, not something
// a reader of the tree needs to see.
func isStringVector(schema *Schema, idx int32) bool {
	vt := schema.vtableFor(idx)
	if vt == nil {
		return false
	}
	_, ok := vt.(*stringVTable)
	return ok
}
