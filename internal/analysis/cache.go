package analysis

import (
	"sync"
	"time"
)

// Cache is an in-process TTL cache for reports. It fronts the store so
// repeated lookups of a hot token skip the database entirely.
type Cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	report    *Report
	expiresAt time.Time
}

// NewCache creates a report cache with the given entry lifetime.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached report for a token, if present and unexpired.
func (c *Cache) Get(chain, address string) (*Report, bool) {
	c.mu.RLock()
	entry, ok := c.entries[chain+":"+address]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.report, true
}

// Set stores a report, resetting its lifetime.
func (c *Cache) Set(chain, address string, report *Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[chain+":"+address] = cacheEntry{
		report:    report,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Invalidate drops a token's entry.
func (c *Cache) Invalidate(chain, address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, chain+":"+address)
}

// Sweep removes expired entries. Called periodically by the server.
func (c *Cache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of live entries, expired included until swept.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
