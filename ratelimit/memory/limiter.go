package memorylimiter

import (
	"fmt"
	"sync"
	"time"
)

// Limit defines window and max count for a bucket.
type Limit struct {
	Limit  int
	Window time.Duration
}

// Limiter is an in-memory sliding-window rate limiter guarding the connector
// operation endpoints. It is intended as a single-node fallback when Redis is
// unavailable.
type Limiter struct {
	mu      sync.Mutex
	limits  map[string]Limit
	buckets map[string][]time.Time
	now     func() time.Time
}

// New constructs a new in-memory limiter with the provided per-bucket limits.
// A "default" entry applies to buckets without their own limit.
func New(limits map[string]Limit) *Limiter {
	if limits == nil {
		limits = map[string]Limit{}
	}
	return &Limiter{
		limits:  limits,
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

func (l *Limiter) limitFor(bucket string) Limit {
	if v, ok := l.limits[bucket]; ok {
		return v
	}
	if v, ok := l.limits["default"]; ok {
		return v
	}
	// Connector operations are periodic batch work; sixty invocations per
	// minute per caller is generous.
	return Limit{Limit: 60, Window: time.Minute}
}

// AllowNamed implements the adapter's RateLimiter interface using a sliding
// window over the configured duration. Expired entries are pruned on each
// call and empty buckets removed to avoid unbounded growth.
func (l *Limiter) AllowNamed(bucket, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	if bucket == "" || key == "" {
		return false, fmt.Errorf("bucket and key required")
	}

	lim := l.limitFor(bucket)
	now := l.now()
	cutoff := now.Add(-lim.Window)
	bucketKey := key + ":" + bucket

	l.mu.Lock()
	defer l.mu.Unlock()

	ts := l.buckets[bucketKey]
	keep := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}

	if len(keep) >= lim.Limit {
		l.buckets[bucketKey] = keep
		return false, nil
	}

	l.buckets[bucketKey] = append(keep, now)
	return true, nil
}
