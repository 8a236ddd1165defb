package flightcache

import (
	"sync"
	"time"

	"github.com/j-veylop/flightwatch/internal/models"
)

// Cache stores flights by identifier with a per-entry TTL.
type Cache interface {
	Get(ident string) (*models.Flight, bool)
	Set(ident string, f *models.Flight, ttl time.Duration)
	Delete(ident string)
	Len() int
	// Prune drops expired entries and returns how many were removed.
	Prune() int
}

type cacheEntry struct {
	expiresAt time.Time
	flight    *models.Flight
}

func (e cacheEntry) valid(now time.Time) bool {
	return now.Before(e.expiresAt)
}

// MemoryCache is an in-process Cache. Expired entries are dropped lazily on
// read and by Prune.
type MemoryCache struct {
	entries map[string]cacheEntry
	now     func() time.Time
	mu      sync.RWMutex
}

// NewMemoryCache creates an empty cache. A nil clock uses time.Now.
func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		now:     now,
	}
}

// Get returns the cached flight if present and unexpired.
func (c *MemoryCache) Get(ident string) (*models.Flight, bool) {
	c.mu.RLock()
	e, ok := c.entries[ident]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if !e.valid(c.now()) {
		c.mu.Lock()
		if cur, ok := c.entries[ident]; ok && !cur.valid(c.now()) {
			delete(c.entries, ident)
		}
		c.mu.Unlock()
		return nil, false
	}

	return e.flight, true
}

// Set stores f until ttl elapses. A non-positive ttl stores nothing.
func (c *MemoryCache) Set(ident string, f *models.Flight, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ident] = cacheEntry{flight: f, expiresAt: c.now().Add(ttl)}
}

// Delete removes ident.
func (c *MemoryCache) Delete(ident string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, ident)
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Prune drops every expired entry and returns how many were removed.
func (c *MemoryCache) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if !e.valid(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
