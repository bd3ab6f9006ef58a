package content

import "time"

// CachedStore reads through an in-memory cache in front of a DiskStore
type CachedStore struct {
	memory *MemoryCache
	disk   *DiskStore
}

// NewCachedStore creates a store that caches blobs in memory for ttl
func NewCachedStore(disk *DiskStore, ttl time.Duration) *CachedStore {
	return &CachedStore{
		memory: NewMemoryCache(ttl, 10*time.Minute),
		disk:   disk,
	}
}

// Put writes to disk and primes the cache
func (s *CachedStore) Put(text string) (string, error) {
	digest, err := s.disk.Put(text)
	if err != nil {
		return "", err
	}
	s.memory.Set(digest, Normalize(text))
	return digest, nil
}

// Get checks memory first, then disk
func (s *CachedStore) Get(digest string) (string, error) {
	if text, found := s.memory.Get(digest); found {
		return text, nil
	}

	text, err := s.disk.Get(digest)
	if err != nil {
		return "", err
	}

	// Promote to memory cache
	s.memory.Set(digest, text)
	return text, nil
}
