package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Cache is the key-value capability injected into callers that need one.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Put(ctx context.Context, key string, value V)
	Delete(ctx context.Context, key string)
}

// entry is a single cached value.
type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// LRU is a Least Recently Used cache whose entries also expire after a TTL.
// A zero TTL disables expiry.
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	items    map[string]*list.Element
	lruList  *list.List

	// Statistics
	hits      int64
	misses    int64
	evictions int64
	expired   int64
}

// NewLRU creates a cache holding at most capacity entries for ttl each.
func NewLRU[V any](capacity int, ttl time.Duration) *LRU[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRU[V]{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[string]*list.Element),
		lruList:  list.New(),
	}
}

// WithClock replaces the time source. Used by tests.
func (c *LRU[V]) WithClock(now func() time.Time) *LRU[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// Get retrieves a live entry and marks it most recently used.
func (c *LRU[V]) Get(ctx context.Context, key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, exists := c.items[key]
	if !exists {
		c.misses++
		return zero, false
	}

	item := elem.Value.(*entry[V])
	if c.isExpired(item) {
		c.removeElement(elem)
		c.expired++
		c.misses++
		return zero, false
	}

	c.lruList.MoveToFront(elem)
	c.hits++
	return item.value, true
}

// Put adds or replaces an entry and resets its expiry.
func (c *LRU[V]) Put(ctx context.Context, key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.expiry()

	if elem, exists := c.items[key]; exists {
		c.lruList.MoveToFront(elem)
		item := elem.Value.(*entry[V])
		item.value = value
		item.expiresAt = expiresAt
		return
	}

	elem := c.lruList.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem

	if c.lruList.Len() > c.capacity {
		c.evictOldest()
	}
}

// Delete removes an entry if present.
func (c *LRU[V]) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

// Purge drops every expired entry and returns how many were removed.
func (c *LRU[V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.lruList.Back(); elem != nil; {
		prev := elem.Prev()
		if c.isExpired(elem.Value.(*entry[V])) {
			c.removeElement(elem)
			removed++
		}
		elem = prev
	}
	c.expired += int64(removed)
	return removed
}

func (c *LRU[V]) expiry() time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(c.ttl)
}

func (c *LRU[V]) isExpired(item *entry[V]) bool {
	return !item.expiresAt.IsZero() && !c.now().Before(item.expiresAt)
}

func (c *LRU[V]) removeElement(elem *list.Element) {
	c.lruList.Remove(elem)
	delete(c.items, elem.Value.(*entry[V]).key)
}

// evictOldest removes the least recently used item
func (c *LRU[V]) evictOldest() {
	elem := c.lruList.Back()
	if elem == nil {
		return
	}
	c.removeElement(elem)
	c.evictions++
}

// CacheStats holds cache statistics
type CacheStats struct {
	Items     int
	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64
	Capacity  int
}

// HitRate calculates the cache hit rate
func (s *CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats returns current cache statistics
func (c *LRU[V]) Stats() *CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return &CacheStats{
		Items:     c.lruList.Len(),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Expired:   c.expired,
		Capacity:  c.capacity,
	}
}

// Clear removes all items from the cache
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lruList = list.New()
	c.hits = 0
	c.misses = 0
	c.evictions = 0
	c.expired = 0
}

// Janitor purges expired entries every interval until ctx is done.
func (c *LRU[V]) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Purge()
		}
	}
}
