package cache

import (
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/zeebo/blake3"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey derives a cache key from the parts that determine a render.
// Parts are length-prefixed so that ("ab", "c") and ("a", "bc") differ.
func CacheKey(parts ...[]byte) string {
	h := blake3.New()
	var size [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(size[:], uint64(len(p)))
		_, _ = h.Write(size[:])
		_, _ = h.Write(p)
	}
	return "annofrag:v1:" + hex.EncodeToString(h.Sum(nil))
}
