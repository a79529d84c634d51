package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultTTL applies when a write carries no explicit TTL.
const DefaultTTL = 24 * time.Hour

// Config controls entry freshness for typed reads and writes.
type Config struct {
	TTL                  time.Duration // Time the entry is considered fresh
	StaleWhileRevalidate time.Duration // Additional time a stale entry may be served while recomputing
}

// Stats is the operational snapshot exposed by the service.
type Stats struct {
	TotalKeys      int     `json:"totalKeys"`
	HitRate        float64 `json:"hitRate"`
	PrimaryEnabled bool    `json:"primaryEnabled"`
}

// Entry wraps a typed payload with its write timestamps. Freshness is always
// judged from UpdatedAt; revalidation replaces the entry wholesale.
type Entry[T any] struct {
	Data      T         `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Service is the tiered cache: an optional primary store (Redis) with an
// in-process fallback. The service is the sole writer to both tiers. All
// store failures are recovered locally and never surface to callers.
type Service struct {
	primary  Store // nil when the primary tier is disabled by configuration
	fallback Store
	log      *log.Logger

	totalRequests atomic.Uint64
	cacheHits     atomic.Uint64
	cacheErrors   atomic.Uint64
}

// NewService creates a cache service. A nil primary disables the primary tier
// and sends all traffic to the in-process fallback.
func NewService(primary Store, logger *log.Logger) *Service {
	return &Service{
		primary:  primary,
		fallback: NewMemoryStore(DefaultTTL),
		log:      logger,
	}
}

// Get returns the raw entry bytes for key. Primary and fallback hits both
// count as hits; a primary error counts as an error and falls through to the
// fallback (a fallback miss after a primary error is not double-counted).
func (s *Service) Get(ctx context.Context, key string) ([]byte, bool) {
	s.totalRequests.Add(1)
	pk := keyPrefix + key

	if s.primary != nil {
		val, err := s.primary.Get(ctx, pk)
		switch {
		case err == nil:
			s.cacheHits.Add(1)
			return val, true
		case err == ErrNotFound:
			// Fall through to the fallback tier.
		default:
			s.cacheErrors.Add(1)
			s.log.Error("primary cache get failed", "key", key, "error", err)
		}
	}

	val, err := s.fallback.Get(ctx, pk)
	if err != nil {
		return nil, false
	}
	s.cacheHits.Add(1)
	return val, true
}

// Set writes the raw entry bytes for key to exactly one tier: the primary
// when available, the fallback on primary failure or when the primary is
// disabled. Writing to one tier only keeps fallback contents from masking
// primary health.
func (s *Service) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	pk := keyPrefix + key

	if s.primary != nil {
		err := s.primary.Set(ctx, pk, value, ttl)
		if err == nil {
			return nil
		}
		s.cacheErrors.Add(1)
		s.log.Error("primary cache set failed", "key", key, "error", err)
	}
	return s.fallback.Set(ctx, pk, value, ttl)
}

// Delete removes key from both tiers: best-effort on the primary (errors
// logged and swallowed), unconditional on the fallback.
func (s *Service) Delete(ctx context.Context, key string) {
	pk := keyPrefix + key

	if s.primary != nil {
		if err := s.primary.Delete(ctx, pk); err != nil {
			s.cacheErrors.Add(1)
			s.log.Error("primary cache delete failed", "key", key, "error", err)
		}
	}
	_ = s.fallback.Delete(ctx, pk)
}

// Stats reports the key count of the active tier and the lifetime hit rate.
// The key count is a snapshot, not transactionally consistent with writes.
func (s *Service) Stats(ctx context.Context) Stats {
	total := s.totalRequests.Load()
	var hitRate float64
	if total > 0 {
		hitRate = float64(s.cacheHits.Load()) / float64(total)
	}

	var keys []string
	var err error
	if s.primary != nil {
		keys, err = s.primary.Keys(ctx, keyPrefix)
	} else {
		keys, err = s.fallback.Keys(ctx, keyPrefix)
	}
	if err != nil {
		s.log.Error("cache key listing failed", "error", err)
	}

	return Stats{
		TotalKeys:      len(keys),
		HitRate:        hitRate,
		PrimaryEnabled: s.primary != nil,
	}
}

// Get reads a typed entry from the service. Absence, expiry, and undecodable
// entries all read as a miss.
func Get[T any](ctx context.Context, s *Service, key string) (T, bool) {
	var zero T
	raw, ok := s.Get(ctx, key)
	if !ok {
		return zero, false
	}
	var entry Entry[T]
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.log.Error("cache entry decode failed", "key", key, "error", err)
		return zero, false
	}
	return entry.Data, true
}

// Set writes a typed entry. The physical store TTL covers the full stale
// window (TTL + StaleWhileRevalidate) so stale entries survive long enough
// to be served while revalidating; logical freshness is judged from the
// entry's UpdatedAt.
func Set[T any](ctx context.Context, s *Service, key string, value T, cfg Config) error {
	now := time.Now().UTC()
	raw, err := json.Marshal(Entry[T]{Data: value, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		return err
	}
	return s.Set(ctx, key, raw, storeTTL(cfg))
}

// GetOrSet implements the read-through path. A fresh entry is returned as-is.
// A stale entry inside the stale-while-revalidate window is returned
// immediately while a background recomputation replaces it; revalidation
// failures are logged, never propagated. Otherwise the value is computed
// synchronously, stored, and returned. Concurrent calls for the same uncached
// key each invoke factory; the last writer's value stands.
func GetOrSet[T any](ctx context.Context, s *Service, key string, cfg Config, factory func(context.Context) (T, error)) (T, error) {
	raw, ok := s.Get(ctx, key)
	if ok {
		var entry Entry[T]
		if err := json.Unmarshal(raw, &entry); err != nil {
			s.log.Error("cache entry decode failed", "key", key, "error", err)
		} else {
			age := time.Since(entry.UpdatedAt)
			switch {
			case cfg.TTL <= 0 || age < cfg.TTL:
				return entry.Data, nil
			case cfg.StaleWhileRevalidate > 0 && age < cfg.TTL+cfg.StaleWhileRevalidate:
				go revalidate(context.WithoutCancel(ctx), s, key, cfg, factory)
				return entry.Data, nil
			}
		}
	}

	value, err := factory(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := Set(ctx, s, key, value, cfg); err != nil {
		s.log.Error("cache store after compute failed", "key", key, "error", err)
	}
	return value, nil
}

// revalidate recomputes a stale entry in the background.
func revalidate[T any](ctx context.Context, s *Service, key string, cfg Config, factory func(context.Context) (T, error)) {
	value, err := factory(ctx)
	if err != nil {
		s.log.Error("cache revalidation failed", "key", key, "error", err)
		return
	}
	if err := Set(ctx, s, key, value, cfg); err != nil {
		s.log.Error("cache revalidation store failed", "key", key, "error", err)
	}
}

// storeTTL maps a freshness config onto the physical store TTL.
func storeTTL(cfg Config) time.Duration {
	if cfg.TTL <= 0 {
		return DefaultTTL
	}
	return cfg.TTL + cfg.StaleWhileRevalidate
}
