package cache

import (
	"sync"
	"time"
)

// Cache is a read-through TTL cache for small hot-path lookups such as
// per-application stage policies. Entries expire lazily on read.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
	Flush()
}

type entry[V any] struct {
	value    V
	deadline time.Time
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.deadline.IsZero() && now.After(e.deadline)
}

// TTLCache is an in-memory Cache with per-entry TTLs. A zero TTL means the
// entry never expires.
type TTLCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
}

func NewTTLCache[K comparable, V any]() *TTLCache[K, V] {
	return &TTLCache[K, V]{entries: make(map[K]entry[V])}
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if e.expired(time.Now()) {
		c.Delete(key)
		return zero, false
	}
	return e.value, true
}

func (c *TTLCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if c == nil {
		return
	}
	var deadline time.Time
	if ttl > 0 {
		deadline = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, deadline: deadline}
	c.mu.Unlock()
}

func (c *TTLCache[K, V]) Delete(key K) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Flush drops every entry. Tests use it to force a reload after writing
// directly to the database.
func (c *TTLCache[K, V]) Flush() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[K]entry[V])
	c.mu.Unlock()
}

// NoopCache misses every read and drops every write. It stands in where
// caching would hide writes, such as single-transaction tests.
type NoopCache[K comparable, V any] struct{}

func (NoopCache[K, V]) Get(key K) (V, bool) {
	var zero V
	return zero, false
}

func (NoopCache[K, V]) Set(key K, value V, ttl time.Duration) {}

func (NoopCache[K, V]) Delete(key K) {}

func (NoopCache[K, V]) Flush() {}
