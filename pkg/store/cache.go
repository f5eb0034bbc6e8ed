package store

import (
	"sync"
	"time"
)

// DefaultTTL is the validity window for cached gateway entities.
const DefaultTTL = 10 * time.Minute

// Well-known cache slots.
const (
	KeyMembers = "members"
	KeyLabels  = "labels"
)

type cacheEntry struct {
	value interface{}
	time  time.Time
}

// Cache is a process-wide, time-bounded key/value cache for
// externally-fetched entities. Freshness is always checked on read; the
// periodic sweep is advisory housekeeping only.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, time: c.now()}
}

// Fresh reports whether key exists and was written within the TTL.
func (c *Cache) Fresh(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return false
	}
	return c.now().Sub(e.time) < c.ttl
}

// Sweep removes entries older than the TTL. Reads can race the sweep, so
// callers must still check Fresh before trusting a Get.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	now := c.now()
	for key, e := range c.entries {
		if now.Sub(e.time) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
