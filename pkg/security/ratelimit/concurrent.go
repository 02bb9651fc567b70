package ratelimit

import "sync/atomic"

// ConcurrentLimiter is a counting semaphore that never blocks.
type ConcurrentLimiter struct {
	limit   int64
	current atomic.Int64
}

// NewConcurrentLimiter creates a limiter admitting limit callers at once.
func NewConcurrentLimiter(limit int) *ConcurrentLimiter {
	return &ConcurrentLimiter{limit: int64(limit)}
}

// Acquire takes a slot. A true result must be paired with Release.
func (cl *ConcurrentLimiter) Acquire() bool {
	if cl.current.Add(1) > cl.limit {
		cl.current.Add(-1)
		return false
	}
	return true
}

// Release returns a slot.
func (cl *ConcurrentLimiter) Release() {
	cl.current.Add(-1)
}

// Current returns the number of held slots.
func (cl *ConcurrentLimiter) Current() int64 {
	return cl.current.Load()
}

// Limit returns the configured concurrency limit.
func (cl *ConcurrentLimiter) Limit() int64 {
	return cl.limit
}
