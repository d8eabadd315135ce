package embedding

import (
	"container/list"
	"sync"
)

// Cache is an LRU cache of embeddings keyed by text. It keeps repeated
// ingestion of identical content and repeated queries from hitting the
// provider again.
type Cache struct {
	capacity int
	entries  map[string]*list.Element
	order    *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key    string
	vector []float32
}

// NewCache creates an LRU cache holding up to capacity embeddings.
func NewCache(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached vector for key, marking it most recently used.
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).vector, true
}

// Set stores the vector for key, evicting the least recently used entry when
// the cache is full.
func (c *Cache) Set(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*cacheEntry).vector = vector
		return
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, vector: vector})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len returns the number of cached embeddings.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
