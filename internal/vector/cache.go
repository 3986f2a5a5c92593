package vector

import (
	"container/list"
	"sync"
)

// DefaultCacheSize is the default capacity of the query-embedding
// cache.
const DefaultCacheSize = 100

// queryCache is a bounded LRU cache of query embeddings keyed by raw
// query text. Hits return the exact vector stored for that text, so
// repeated queries are byte-identical to a fresh computation.
// Safe for concurrent use.
type queryCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recent
	entries  map[string]*list.Element
}

type cacheEntry struct {
	key    string
	vector []float32
}

func newQueryCache(capacity int) *queryCache {
	if capacity < 1 {
		capacity = DefaultCacheSize
	}
	return &queryCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
	}
}

// get returns a copy of the cached vector for key, if present. Copying
// keeps cached vectors immutable regardless of what callers do with the
// result.
func (c *queryCache) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)

	stored := el.Value.(*cacheEntry).vector
	out := make([]float32, len(stored))
	copy(out, stored)
	return out, true
}

// put stores vector under key, evicting the least recently used entry
// on overflow.
func (c *queryCache) put(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		el.Value.(*cacheEntry).vector = vector
		return
	}

	el := c.order.PushFront(&cacheEntry{key: key, vector: vector})
	c.entries[key] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *queryCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
