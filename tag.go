package binschema

import (
	"strconv"
	"strings"
)

// tagOptions represents the comma-separated options following the ordinal
// tag in a struct field's `schema` tag. Empty if no options are present.
//
// lifted from the stdlib encoding/json convention, as the teacher does.
type tagOptions string

// parseSchemaTag splits a struct tag of the form "<ordinal>,<opt>,<opt>"
// into its ordinal (a small non-negative integer, unique per struct but not
// necessarily contiguous or zero-based per spec.md §4.1) and its options.
// ok is false if tag is empty or the ordinal fails to parse.
func parseSchemaTag(tag string) (ordinal int32, opts tagOptions, ok bool) {
	if tag == "" {
		return 0, "", false
	}

	name := tag
	if idx := strings.Index(tag, ","); idx != -1 {
		name, opts = tag[:idx], tagOptions(tag[idx+1:])
	}

	v, err := strconv.ParseInt(name, 10, 32)
	if err != nil {
		return 0, "", false
	}

	return int32(v), opts, true
}

// Contains reports whether a comma-separated option list contains optionName.
func (o tagOptions) Contains(optionName string) bool {
	if len(o) == 0 {
		return false
	}
	s := string(o)
	for s != "" {
		var next string
		if i := strings.Index(s, ","); i >= 0 {
			s, next = s[:i], s[i+1:]
		}
		if s == optionName {
			return true
		}
		s = next
	}
	return false
}
