// Package ratelimit implements fixed-window admission control per client
// identity. The counter resets at fixed wall-clock intervals rather than a
// rolling interval, so a client can see up to 2N requests across a window
// boundary; this is an accepted approximation.
package ratelimit

import (
	"sync"
	"time"
)

// Decision reports the outcome of an admission check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// bucket tracks one identity's count within its active window.
type bucket struct {
	count   int
	resetAt time.Time
}

// Limiter is a fixed-window rate limiter. Identities are entirely
// independent; contention is confined to the shared bucket map.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
	now     func() time.Time
}

// NewLimiter creates a limiter admitting limit requests per window for each
// identity.
func NewLimiter(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Admit checks whether a request from identity is allowed. The first request
// within an absent or expired window opens a new window; requests beyond the
// capacity are rejected without extending the window. Dead buckets are swept
// on every call so they cannot accumulate unboundedly.
func (l *Limiter) Admit(identity string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, b := range l.buckets {
		if !b.resetAt.After(now) {
			delete(l.buckets, key)
		}
	}

	b, ok := l.buckets[identity]
	if !ok {
		b = &bucket{count: 1, resetAt: now.Add(l.window)}
		l.buckets[identity] = b
		return Decision{
			Allowed:   true,
			Limit:     l.limit,
			Remaining: l.limit - 1,
			ResetAt:   b.resetAt,
		}
	}

	if b.count >= l.limit {
		return Decision{
			Allowed:   false,
			Limit:     l.limit,
			Remaining: 0,
			ResetAt:   b.resetAt,
		}
	}

	b.count++
	return Decision{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - b.count,
		ResetAt:   b.resetAt,
	}
}

// Size returns the number of live buckets. Used by tests.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
