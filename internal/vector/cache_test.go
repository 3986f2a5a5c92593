package vector

import (
	"fmt"
	"reflect"
	"testing"
)

func TestQueryCacheHitReturnsEqualVector(t *testing.T) {
	c := newQueryCache(10)

	stored := []float32{0.1, -0.2, 0.3}
	c.put("what is go", stored)

	got, ok := c.get("what is go")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !reflect.DeepEqual(got, stored) {
		t.Errorf("cached vector = %v, want %v", got, stored)
	}

	// The returned slice is a copy; mutating it must not poison the
	// cache.
	got[0] = 99
	again, _ := c.get("what is go")
	if again[0] != 0.1 {
		t.Error("cache entry was mutated through a returned slice")
	}
}

func TestQueryCacheMiss(t *testing.T) {
	c := newQueryCache(10)
	if _, ok := c.get("never stored"); ok {
		t.Error("unexpected hit for absent key")
	}
}

func TestQueryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := newQueryCache(3)

	for i := 0; i < 3; i++ {
		c.put(fmt.Sprintf("q%d", i), []float32{float32(i)})
	}

	// Touch q0 so q1 becomes the eviction victim.
	if _, ok := c.get("q0"); !ok {
		t.Fatal("q0 should be cached")
	}
	c.put("q3", []float32{3})

	if _, ok := c.get("q1"); ok {
		t.Error("q1 should have been evicted")
	}
	for _, key := range []string{"q0", "q2", "q3"} {
		if _, ok := c.get(key); !ok {
			t.Errorf("%s should still be cached", key)
		}
	}
	if got := c.len(); got != 3 {
		t.Errorf("cache len = %d, want 3", got)
	}
}

func TestQueryCacheUpdateExistingKey(t *testing.T) {
	c := newQueryCache(2)

	c.put("q", []float32{1})
	c.put("q", []float32{2})

	got, ok := c.get("q")
	if !ok || got[0] != 2 {
		t.Errorf("get after update = %v, %v; want [2], true", got, ok)
	}
	if c.len() != 1 {
		t.Errorf("cache len = %d, want 1", c.len())
	}
}

func TestQueryCacheInvalidCapacity(t *testing.T) {
	c := newQueryCache(0)
	if c.capacity != DefaultCacheSize {
		t.Errorf("capacity = %d, want %d", c.capacity, DefaultCacheSize)
	}
}
