package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ResultCache is a size-bounded LRU with TTL used to memoize explanations:
// re-explaining the same instance with the same options and seed is pure
// recomputation, so the explain service serves repeats from here.
type ResultCache[K comparable, V any] struct {
	mu     sync.Mutex
	cache  *lru.Cache[K, *ttlEntry[V]]
	ttl    time.Duration
	hits   uint64
	misses uint64
}

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// New creates a cache holding at most size entries, each valid for ttl
// (0 = no expiry).
func New[K comparable, V any](size int, ttl time.Duration) (*ResultCache[K, V], error) {
	inner, err := lru.New[K, *ttlEntry[V]](size)
	if err != nil {
		return nil, err
	}
	return &ResultCache[K, V]{cache: inner, ttl: ttl}, nil
}

// Get returns the cached value if present and unexpired.
func (c *ResultCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.cache.Get(key)
	if !ok {
		c.misses++
		return zero, false
	}
	if c.ttl > 0 && time.Now().After(e.expiresAt) {
		c.cache.Remove(key)
		c.misses++
		return zero, false
	}
	c.hits++
	return e.value, true
}

// Set stores a value, evicting the least recently used entry when full.
func (c *ResultCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Add(key, &ttlEntry[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Len returns the current number of entries (expired ones included until
// touched).
func (c *ResultCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// Stats returns hit/miss counters.
func (c *ResultCache[K, V]) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Purge drops all entries.
func (c *ResultCache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}
