package cache

import (
	"context"
	"encoding/base64"
	"errors"
	"time"
)

// ErrNotFound is returned by a Store when a key is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

// keyPrefix namespaces all cache keys in shared stores.
const keyPrefix = "cache:"

// Store is the interface implemented by each cache tier.
type Store interface {
	// Get returns the raw value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl. A non-positive ttl falls back to
	// the store's default expiry behavior.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns all live keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// AnalysisKey derives the content-addressed cache key for an input text.
// The encoding is reversible and byte-exact: identical text always maps to
// the identical key, and any difference in the text (including whitespace)
// produces a different key. There is no fuzzy or semantic matching.
func AnalysisKey(text string) string {
	return base64.StdEncoding.EncodeToString([]byte(text))
}
