package metadata

import (
	"sync"
	"testing"
)

func TestTypeSystemPrimitiveAccessors(t *testing.T) {
	ts := NewTypeSystem(&Root{})

	if got := ts.Int32(); got == nil || got.Name != "Int32" || got.Elem != ElementI4 {
		t.Errorf("Int32() = %+v, want {Int32 ElementI4}", got)
	}
	if got := ts.String(); got == nil || got.Name != "String" {
		t.Errorf("String() = %+v, want Name=String", got)
	}
	if got := ts.Primitive(ElementClass); got != nil {
		t.Errorf("Primitive(ElementClass) = %+v, want nil (not a primitive)", got)
	}
}

func TestTypeSystemConcurrentFirstTouch(t *testing.T) {
	ts := NewTypeSystem(&Root{})

	var wg sync.WaitGroup
	results := make([]*Primitive, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = ts.Int32()
		}(i)
	}
	wg.Wait()

	for i, p := range results {
		if p == nil || p.Elem != ElementI4 {
			t.Fatalf("goroutine %d saw %+v, want a populated Int32 primitive", i, p)
		}
	}
}
