package cache

import (
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is the in-process layer. Entries are copied in and out, so a
// caller mutating a returned slice never corrupts what later readers see.
type MemoryCache struct {
	entries *gocache.Cache
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// NewMemoryCache creates a memory cache whose entries expire after ttl
// unless Set is given its own; expired entries are swept every sweep
func NewMemoryCache(ttl, sweep time.Duration) *MemoryCache {
	return &MemoryCache{entries: gocache.New(ttl, sweep)}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	val, found := c.entries.Get(key)
	if !found {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return clone(val.([]byte)), true
}

// Set stores value; ttl 0 means the cache default
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.entries.Set(key, clone(value), ttl)
	return nil
}

func (c *MemoryCache) Delete(key string) error {
	c.entries.Delete(key)
	return nil
}

// Len returns the number of entries, expired ones included until swept
func (c *MemoryCache) Len() int {
	return c.entries.ItemCount()
}

// Counters returns how many lookups hit and missed
func (c *MemoryCache) Counters() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *MemoryCache) Clear() error {
	c.entries.Flush()
	return nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
