package ratelimit

import (
	"sync"
	"time"
)

// Rejection reasons.
const (
	ReasonRate        = "rate"
	ReasonConcurrency = "concurrency"
)

// Config configures a Limiter. Zero limits are not enforced.
type Config struct {
	// RequestsPerSecond is the sustained rate admitted by the listener.
	RequestsPerSecond float64

	// Burst is the bucket capacity (default: twice RequestsPerSecond,
	// at least 1).
	Burst int

	// MaxConcurrent bounds in-flight requests.
	MaxConcurrent int

	// Now is the clock (default: time.Now).
	Now func() time.Time
}

// Result is the outcome of Allow.
type Result struct {
	Allowed bool

	// Reason is ReasonRate or ReasonConcurrency on rejection.
	Reason string

	// Limit and Remaining describe the rate bucket.
	Limit     int64
	Remaining int64

	// RetryAfter is a hint for rejected requests.
	RetryAfter time.Duration

	release func()
}

// Release frees the concurrency slot taken by an allowed request. It is
// safe to call on any result and more than once.
func (r *Result) Release() {
	if r.release != nil {
		r.release()
		r.release = nil
	}
}

// Limiter admits requests while the listener is under its rate and
// concurrency limits. It is safe for concurrent use.
type Limiter struct {
	bucket     *TokenBucket
	concurrent *ConcurrentLimiter
}

// New creates a limiter.
func New(cfg Config) *Limiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	l := &Limiter{}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = max(1, int(cfg.RequestsPerSecond*2))
		}
		l.bucket = NewTokenBucket(int64(burst), cfg.RequestsPerSecond, cfg.Now)
	}
	if cfg.MaxConcurrent > 0 {
		l.concurrent = NewConcurrentLimiter(cfg.MaxConcurrent)
	}
	return l
}

// Allow admits one request. Allowed results hold a concurrency slot until
// Release. A rejected request consumes nothing.
func (l *Limiter) Allow() *Result {
	res := &Result{Allowed: true}

	if l.concurrent != nil {
		if !l.concurrent.Acquire() {
			res.Allowed = false
			res.Reason = ReasonConcurrency
			res.RetryAfter = time.Second
			return res
		}
		var once sync.Once
		res.release = func() { once.Do(l.concurrent.Release) }
	}

	if l.bucket != nil {
		res.Limit = l.bucket.Capacity()
		if !l.bucket.Take(1) {
			res.Release()
			res.Allowed = false
			res.Reason = ReasonRate
			res.RetryAfter = l.bucket.TimeUntilAvailable(1)
			return res
		}
		res.Remaining = l.bucket.Remaining()
	}
	return res
}

// InFlight returns the number of admitted requests not yet released.
func (l *Limiter) InFlight() int64 {
	if l.concurrent == nil {
		return 0
	}
	return l.concurrent.Current()
}
