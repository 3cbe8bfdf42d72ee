package embedding

import (
	"fmt"
	"sync"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected c to be present")
	}
	if c.Len() != 2 {
		t.Errorf("Len: got %d", c.Len())
	}
}

// Get reorders the recency list, so concurrent hits exercise the lock.
// Run with -race.
func TestEmbeddingCache_ConcurrentAccess(t *testing.T) {
	c := NewEmbeddingCache(16)
	for i := 0; i < 8; i++ {
		c.Set(fmt.Sprintf("k%d", i), []float32{float32(i)})
	}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				key := fmt.Sprintf("k%d", (g+i)%8)
				if v, ok := c.Get(key); !ok || len(v) != 1 {
					t.Errorf("Get(%s): got %v, %v", key, v, ok)
					return
				}
				if i%100 == 0 {
					c.Set(fmt.Sprintf("extra%d-%d", g, i), []float32{1})
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 16 {
		t.Errorf("capacity exceeded: %d", c.Len())
	}
}

func TestCacheKey_Normalization(t *testing.T) {
	a := CacheKey("Young  Professional,\tDubai")
	b := CacheKey("young professional, dubai")
	if a != b {
		t.Error("keys should match after whitespace/case normalization")
	}
	if CacheKey("electronics") == CacheKey("clothing") {
		t.Error("distinct profiles should not collide")
	}
}
