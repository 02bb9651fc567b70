package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket allows bursts up to its capacity while holding the average
// rate at refillRate tokens per second. Fractional tokens accumulate, so
// low rates refill exactly.
type TokenBucket struct {
	capacity   float64
	refillRate float64
	now        func() time.Time

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewTokenBucket creates a full bucket.
func NewTokenBucket(capacity int64, refillRate float64, now func() time.Time) *TokenBucket {
	if now == nil {
		now = time.Now
	}
	return &TokenBucket{
		capacity:   float64(capacity),
		refillRate: refillRate,
		now:        now,
		tokens:     float64(capacity),
		lastRefill: now(),
	}
}

// Take consumes n tokens if they are available.
func (tb *TokenBucket) Take(n int64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	if tb.tokens >= float64(n) {
		tb.tokens -= float64(n)
		return true
	}
	return false
}

// Remaining returns the whole tokens currently available.
func (tb *TokenBucket) Remaining() int64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	return int64(tb.tokens)
}

// Capacity returns the burst size.
func (tb *TokenBucket) Capacity() int64 {
	return int64(tb.capacity)
}

// TimeUntilAvailable returns how long until n tokens are available.
func (tb *TokenBucket) TimeUntilAvailable(n int64) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	missing := float64(n) - tb.tokens
	if missing <= 0 || tb.refillRate <= 0 {
		return 0
	}
	return time.Duration(missing / tb.refillRate * float64(time.Second))
}

func (tb *TokenBucket) refillLocked() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill)
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed.Seconds() * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}
