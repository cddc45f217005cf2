package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a request exceeds the rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// Rate limit buckets.
const (
	BucketAuth     = "auth"
	BucketMutation = "mutation"
)

// RateLimitConfig holds per-minute limits for the HTTP surface.
type RateLimitConfig struct {
	// AuthPerMin caps authentication attempts. Defaults to 60.
	AuthPerMin int `yaml:"auth_per_min"`

	// MutationsPerMin caps writes (save, delete, clear, ingest). Defaults to 120.
	MutationsPerMin int `yaml:"mutations_per_min"`
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	if c.AuthPerMin <= 0 {
		c.AuthPerMin = 60
	}
	if c.MutationsPerMin <= 0 {
		c.MutationsPerMin = 120
	}
	return c
}

// RateLimiter implements sliding window rate limiting.
// Each bucket tracks timestamps of recent events within its window.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	window time.Duration
	limit  int
	events []time.Time
}

// NewRateLimiter creates a rate limiter. Zero-value fields in cfg are
// replaced with defaults.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	cfg = cfg.withDefaults()
	return &RateLimiter{
		now: time.Now,
		buckets: map[string]*bucket{
			BucketAuth:     {window: time.Minute, limit: cfg.AuthPerMin},
			BucketMutation: {window: time.Minute, limit: cfg.MutationsPerMin},
		},
	}
}

// Allow records one event of the given kind. It returns ErrRateLimited
// when the bucket is full. Unknown kinds and a nil limiter are unlimited.
func (rl *RateLimiter) Allow(kind string) error {
	if rl == nil {
		return nil
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[kind]
	if !ok {
		return nil
	}

	now := rl.now()
	b.evict(now)

	if len(b.events) >= b.limit {
		return ErrRateLimited
	}
	b.events = append(b.events, now)
	return nil
}

// evict removes events outside the sliding window.
func (b *bucket) evict(now time.Time) {
	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.events) && b.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.events = b.events[i:]
	}
}
