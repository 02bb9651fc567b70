// Package ratelimit sheds load at the relay's listener.
//
// A Limiter combines one token bucket, bounding the sustained request rate,
// with one in-flight counter. Limits apply to the listener as a whole; the
// relay does not track individual callers.
//
//	l := ratelimit.New(ratelimit.Config{RequestsPerSecond: 200, MaxConcurrent: 64})
//	res := l.Allow()
//	if !res.Allowed {
//	    // reply 429 with Retry-After: res.RetryAfter
//	}
//	defer res.Release()
package ratelimit
