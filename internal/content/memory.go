package content

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache keeps recently read blobs in memory.
// Blobs never change once written, so entries only expire by TTL.
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates a new memory cache
func NewMemoryCache(defaultTTL time.Duration, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get retrieves a blob from the cache
func (c *MemoryCache) Get(digest string) (string, bool) {
	if val, found := c.cache.Get(digest); found {
		return val.(string), true
	}
	return "", false
}

// Set stores a blob in the cache with the default TTL
func (c *MemoryCache) Set(digest string, text string) {
	c.cache.SetDefault(digest, text)
}
