// Package cache provides a thread-safe, size-bounded cache whose entries
// expire individually.
package cache

import (
	"sync"
	"time"
)

// now is injectable for testing.
var now = time.Now

type entry[V any] struct {
	value   V
	expires time.Time
}

// TTLCache is a thread-safe cache with per-entry expiration. When full,
// Set evicts the entry closest to expiry.
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	data    map[K]entry[V]
	ttl     time.Duration
	maxSize int
}

// New creates a cache whose entries live for ttl. A maxSize of zero or
// less means 128.
func New[K comparable, V any](ttl time.Duration, maxSize int) *TTLCache[K, V] {
	if maxSize <= 0 {
		maxSize = 128
	}
	return &TTLCache[K, V]{
		data:    make(map[K]entry[V]),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get returns the value for key if it is present and not expired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.data[key]
	if !ok || !now().Before(e.expires) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for the cache's TTL.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := now()
	if _, ok := c.data[key]; !ok && len(c.data) >= c.maxSize {
		c.evictLocked(t)
	}
	c.data[key] = entry[V]{value: value, expires: t.Add(c.ttl)}
}

// evictLocked drops expired entries, or the one closest to expiry when
// none has expired. MUST be called with the write lock held.
func (c *TTLCache[K, V]) evictLocked(t time.Time) {
	var oldest K
	var oldestAt time.Time
	first := true
	for k, e := range c.data {
		if !t.Before(e.expires) {
			delete(c.data, k)
			continue
		}
		if first || e.expires.Before(oldestAt) {
			oldest, oldestAt, first = k, e.expires, false
		}
	}
	if len(c.data) >= c.maxSize && !first {
		delete(c.data, oldest)
	}
}

// Delete removes key.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Invalidate clears all cached data.
func (c *TTLCache[K, V]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[K]entry[V])
}

// Len returns the number of stored entries, expired or not.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
