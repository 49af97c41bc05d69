package clickup

import (
	"sync"
	"time"
)

// ttlCache is a small in-memory TTL cache for structure queries (team,
// spaces, list discovery). Task and time-entry payloads are never cached.
type ttlCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
	now  func() time.Time
}

type cacheEntry struct {
	val     any
	expires time.Time
}

func newTTLCache() *ttlCache {
	return &ttlCache{data: make(map[string]cacheEntry), now: time.Now}
}

func (c *ttlCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expires) {
		delete(c.data, key)
		return nil, false
	}
	return e.val, true
}

func (c *ttlCache) set(key string, val any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cacheEntry{val: val, expires: c.now().Add(ttl)}
}

func (c *ttlCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]cacheEntry)
}
