package binschema

import (
	"sync"
	"testing"
)

type registryProbeType struct {
	A int32 `schema:"0"`
}

func TestSchemaOf_MemoizesAndIsConcurrencySafe(t *testing.T) {
	Reset()

	var wg sync.WaitGroup
	schemas := make([]*Schema, 16)
	for i := range schemas {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := SchemaOf[registryProbeType]()
			if err != nil {
				t.Errorf("SchemaOf: %v", err)
				return
			}
			schemas[i] = s
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(schemas); i++ {
		if schemas[i] != schemas[0] {
			t.Fatalf("expected every concurrent SchemaOf call to return the same cached *Schema")
		}
	}
}

func TestMustSchemaOf_PanicsOnNonStruct(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected MustSchemaOf to panic for a non-struct type")
		}
	}()
	MustSchemaOf[int32]()
}
