package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is the in-process fallback tier. Expired entries are swept
// lazily on every read and on key listing, never by a background janitor.
type MemoryStore struct {
	cache *gocache.Cache
}

// NewMemoryStore creates a new memory store with the given default TTL.
func NewMemoryStore(defaultTTL time.Duration) *MemoryStore {
	// Cleanup interval 0 disables the janitor goroutine; expiry is enforced
	// on access and by the explicit sweeps below.
	return &MemoryStore{
		cache: gocache.New(defaultTTL, 0),
	}
}

// Get retrieves a value from the store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.cache.DeleteExpired()
	val, found := s.cache.Get(key)
	if !found {
		return nil, ErrNotFound
	}
	return val.([]byte), nil
}

// Set stores a value with the given TTL.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	s.cache.Set(key, value, ttl)
	return nil
}

// Delete removes a value from the store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// Keys returns all live keys starting with prefix.
func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.cache.DeleteExpired()
	items := s.cache.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
