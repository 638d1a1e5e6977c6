package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// DiskCache implements persistent disk-based caching. Entries may be
// stored xz-compressed; both forms are read back.
type DiskCache struct {
	dir      string
	ttl      time.Duration
	compress bool
}

// NewDiskCache creates a new disk cache
func NewDiskCache(dir string, ttl time.Duration, compress bool) *DiskCache {
	return &DiskCache{
		dir:      dir,
		ttl:      ttl,
		compress: compress,
	}
}

type cacheEntry struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Get retrieves a value from the disk cache
func (c *DiskCache) Get(key string) ([]byte, bool) {
	for _, path := range []string{c.path(key, c.compress), c.path(key, !c.compress)} {
		data, err := c.read(path)
		if err != nil {
			continue
		}

		var entry cacheEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}

		// Check expiration
		if time.Now().After(entry.ExpiresAt) {
			_ = os.Remove(path)
			return nil, false
		}
		return entry.Data, true
	}
	return nil, false
}

func (c *DiskCache) read(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".xz") {
		return raw, nil
	}
	r, err := xz.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open xz: %w", err)
	}
	return io.ReadAll(r)
}

// Set stores a value in the disk cache
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}

	entry := cacheEntry{
		Data:      value,
		ExpiresAt: time.Now().Add(ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	if c.compress {
		var buf bytes.Buffer
		w, err := xz.NewWriter(&buf)
		if err != nil {
			return fmt.Errorf("create xz writer: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("compress entry: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("compress entry: %w", err)
		}
		data = buf.Bytes()
	}

	// Ensure directory exists
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	if err := os.WriteFile(c.path(key, c.compress), data, 0644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	// Drop a stale copy in the other form so Get never sees it
	_ = os.Remove(c.path(key, !c.compress))

	return nil
}

// Delete removes a value from the disk cache
func (c *DiskCache) Delete(key string) error {
	errPlain := os.Remove(c.path(key, false))
	errXZ := os.Remove(c.path(key, true))
	if errPlain != nil && errXZ != nil {
		return errPlain
	}
	return nil
}

// Clear removes all cached files
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// path generates the file path for a cache key. Colons are not portable
// in file names.
func (c *DiskCache) path(key string, compressed bool) string {
	name := strings.ReplaceAll(key, ":", "_") + ".cache"
	if compressed {
		name += ".xz"
	}
	return filepath.Join(c.dir, name)
}
