package binschema

import (
	"fmt"
	"reflect"
	"sync"

	"golang.org/x/sync/singleflight"
)

// registry memoizes compiled schemas process-wide, keyed by reflect.Type,
// mirroring the teacher's package-level Encoder[T]/Decoder[T] wrapper cache
// in glint.go. A singleflight.Group collapses concurrent first-compiles of
// the same type into a single Compiler.Compile call.
type registry struct {
	mu      sync.RWMutex
	schemas map[reflect.Type]*Schema

	group singleflight.Group
	cfg   CompilerConfig
}

var defaultRegistry = newRegistry(DefaultCompilerConfig)

func newRegistry(cfg CompilerConfig) *registry {
	return &registry{schemas: make(map[reflect.Type]*Schema), cfg: cfg}
}

func (r *registry) schemaFor(t reflect.Type) (*Schema, error) {
	r.mu.RLock()
	s, ok := r.schemas[t]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	// t.String() is not unique (two local types named "inner" print the
	// same), so the singleflight key is the type descriptor's address.
	v, err, _ := r.group.Do(fmt.Sprintf("%p", t), func() (interface{}, error) {
		r.mu.RLock()
		s, ok := r.schemas[t]
		r.mu.RUnlock()
		if ok {
			return s, nil
		}

		compiled, err := NewCompiler(r.cfg).Compile(t)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.schemas[t] = compiled
		r.mu.Unlock()
		return compiled, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Schema), nil
}

// SchemaOf returns T's compiled schema, compiling and caching it on first use.
// Concurrent first calls for the same T share one compilation.
func SchemaOf[T any]() (*Schema, error) {
	var zero T
	return defaultRegistry.schemaFor(reflect.TypeOf(zero))
}

// MustSchemaOf is SchemaOf but panics on failure - for package-level var
// initialization where a bad schema is a programming error, not a runtime
// condition (mirrors the teacher's MustCompile-style helpers in glint.go).
func MustSchemaOf[T any]() *Schema {
	s, err := SchemaOf[T]()
	if err != nil {
		panic(err)
	}
	return s
}

// Reset clears the process-wide schema cache, so the next SchemaOf call for
// any type compiles it again (always under DefaultCompilerConfig).
func Reset() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.schemas = make(map[reflect.Type]*Schema)
}
