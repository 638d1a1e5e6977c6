package cache

import (
	"fmt"
	"time"
)

// Layer names where a cached entry was found
type Layer string

const (
	LayerNone   Layer = ""
	LayerMemory Layer = "memory"
	LayerDisk   Layer = "disk"
)

// memorySweep is how often expired memory entries are dropped
const memorySweep = 10 * time.Minute

// LayeredCache puts a memory layer in front of a disk layer. Disk hits are
// promoted to memory, so a restarted process warms up from disk.
type LayeredCache struct {
	memory *MemoryCache
	disk   *DiskCache
}

// NewLayeredCache creates a memory layer with memoryTTL over a disk layer
// in diskDir with diskTTL, optionally xz compressed
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration, compress bool) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, memorySweep),
		disk:   NewDiskCache(diskDir, diskTTL, compress),
	}
}

// Lookup returns the entry for key and the layer that held it
func (c *LayeredCache) Lookup(key string) ([]byte, Layer) {
	if val, found := c.memory.Get(key); found {
		return val, LayerMemory
	}
	val, found := c.disk.Get(key)
	if !found {
		return nil, LayerNone
	}
	_ = c.memory.Set(key, val, 0)
	return val, LayerDisk
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	val, layer := c.Lookup(key)
	return val, layer != LayerNone
}

// Set writes both layers. The memory layer keeps the entry even when the
// disk write fails; the error still reports the failure.
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	_ = c.memory.Set(key, value, ttl)
	if err := c.disk.Set(key, value, ttl); err != nil {
		return fmt.Errorf("disk cache: %w", err)
	}
	return nil
}

func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	return c.disk.Delete(key)
}

func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	return c.disk.Clear()
}
