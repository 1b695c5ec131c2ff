package binschema

import "errors"

// Error kinds surfaced by the core (spec.md §7). All propagate immediately;
// none are retried or recovered internally.
var (
	// ErrStreamExhausted: a read ran past the end of the input.
	ErrStreamExhausted = errors.New("binschema: stream exhausted")

	// ErrStreamWriteFailed: an append failed (fixed-capacity sink full).
	ErrStreamWriteFailed = errors.New("binschema: stream write failed")

	// ErrSchemaMismatch: a versioned read saw a category pairing it refuses,
	// or an unmatched source member with allow_drop_excess_struct_members unset.
	ErrSchemaMismatch = errors.New("binschema: schema mismatch")

	// ErrNumericConversionRefused: a float<->int or float-width change was
	// requested with AllowFloatToIntTruncation disabled.
	ErrNumericConversionRefused = errors.New("binschema: numeric conversion refused")

	// ErrContainerResizeFailed: a sink vtable's Resize/ResizeUninitialized returned false.
	ErrContainerResizeFailed = errors.New("binschema: container resize failed")

	// ErrTypeMismatch: the top-level type is not a struct.
	ErrTypeMismatch = errors.New("binschema: top-level type must be a struct")

	// ErrSchemaTooDeep / ErrSchemaTooLarge: the compiler's configured limits
	// (spec.md §4.1 "failure modes") were exceeded. Always raised at
	// schema-compile time, never mid-read/write.
	ErrSchemaTooDeep  = errors.New("binschema: schema exceeds configured depth limit")
	ErrSchemaTooLarge = errors.New("binschema: schema exceeds configured type-count limit")

	// ErrDuplicateMemberTag: two fields of the same struct declared the same
	// ordinal tag (spec.md §9 "open question", resolved here as a compile failure).
	ErrDuplicateMemberTag = errors.New("binschema: duplicate member tag in struct")
)
