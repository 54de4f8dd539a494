package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

const defaultCleanupInterval = 30 * time.Second

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e *ttlEntry[V]) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// TTLCache is a read-mostly cache keyed by string with per-entry expiry.
// Reads never block writers; expired entries are dropped lazily and by a sweeper.
type TTLCache[V any] struct {
	entries sync.Map // map[string]*ttlEntry[V]
	ttl     time.Duration
	now     func() time.Time

	stopCh    chan struct{}
	closeOnce sync.Once

	hits   int64
	misses int64
}

// CacheStats are hit/miss counters for monitoring
type CacheStats struct {
	Hits   int64
	Misses int64
	Size   int
}

// NewTTLCache creates a cache whose entries live for ttl
func NewTTLCache[V any](ttl time.Duration) *TTLCache[V] {
	c := &TTLCache[V]{
		ttl:    ttl,
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	go c.cleanupLoop(defaultCleanupInterval)
	return c
}

// Get returns the cached value and true on a fresh hit
func (c *TTLCache[V]) Get(key string) (V, bool) {
	if v, ok := c.entries.Load(key); ok {
		e := v.(*ttlEntry[V])
		if !e.isExpired(c.now()) {
			atomic.AddInt64(&c.hits, 1)
			return e.value, true
		}
		c.entries.CompareAndDelete(key, v)
	}
	atomic.AddInt64(&c.misses, 1)
	var zero V
	return zero, false
}

// Set stores value under key for the cache TTL
func (c *TTLCache[V]) Set(key string, value V) {
	c.entries.Store(key, &ttlEntry[V]{value: value, expiresAt: c.now().Add(c.ttl)})
}

// Delete drops key
func (c *TTLCache[V]) Delete(key string) {
	c.entries.Delete(key)
}

// Clear drops every entry
func (c *TTLCache[V]) Clear() {
	c.entries.Range(func(k, _ any) bool {
		c.entries.Delete(k)
		return true
	})
}

// Stats returns the hit/miss counters and current entry count
func (c *TTLCache[V]) Stats() CacheStats {
	size := 0
	c.entries.Range(func(_, _ any) bool {
		size++
		return true
	})
	return CacheStats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
		Size:   size,
	}
}

// Close stops the sweeper. Safe to call multiple times.
func (c *TTLCache[V]) Close() {
	c.closeOnce.Do(func() { close(c.stopCh) })
}

func (c *TTLCache[V]) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			now := c.now()
			c.entries.Range(func(k, v any) bool {
				if v.(*ttlEntry[V]).isExpired(now) {
					c.entries.CompareAndDelete(k, v)
				}
				return true
			})
		}
	}
}
