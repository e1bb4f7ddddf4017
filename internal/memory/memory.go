// Package memory provides the bounded in-process cache scorers keep their
// remote lookups in.
package memory

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultCapacity is the cache size scorers use when none is configured.
const DefaultCapacity = 10

// Cache is a fixed-capacity map that evicts the earliest inserted entry once
// full. Reads never change an entry's position and re-inserting an existing
// key keeps the original value and position.
type Cache[K comparable, V any] struct {
	mu  sync.Mutex
	lru *simplelru.LRU[K, V]
}

// NewCache creates a cache holding at most capacity entries. A capacity
// below one falls back to DefaultCapacity.
func NewCache[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	// NewLRU only fails for a non-positive size.
	lru, _ := simplelru.NewLRU[K, V](capacity, nil)
	return &Cache[K, V]{lru: lru}
}

// Get returns the cached value for key.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Peek(key)
}

// Add stores value under key unless key is already present. It reports
// whether the value was stored.
func (c *Cache[K, V]) Add(key K, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru.Contains(key) {
		return false
	}
	c.lru.Add(key, value)
	return true
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Keys returns the cached keys from oldest to newest.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}

// GetOrLoad returns the cached value for key, calling load and caching its
// result on a miss. The lock is not held while load runs, so concurrent
// misses for the same key may each call load; the first result stored wins.
func (c *Cache[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Add(key, v)
	return v, nil
}
