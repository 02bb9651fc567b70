package gateway

import (
	"context"
	"time"

	"relayhq/relay/pkg/cache"
	"relayhq/relay/pkg/codec"
)

// ExecutionContext is the unit of work threaded through the pipeline. One
// exists per Core.Request call and it is never shared between calls.
type ExecutionContext struct {
	ctx context.Context

	// ID correlates log lines and journal records of one execution.
	ID string

	Input  *Request
	Output *Response
	State  State
}

// Context returns the caller's context.
func (ec *ExecutionContext) Context() context.Context {
	if ec.ctx == nil {
		return context.Background()
	}
	return ec.ctx
}

// State is scratch shared by the stages of one execution.
type State struct {
	// RequestStartTime is set once by the request timer before any later
	// stage runs.
	RequestStartTime time.Time

	// RequestTime is valid only after the terminal handler returned.
	RequestTime time.Duration

	// Target is the resolved upstream.
	Target string

	// CacheKey is set for cacheable requests only.
	CacheKey cache.Key

	// CacheHit is set when the output was replayed from the cache.
	CacheHit bool

	Counters *Counters
	Cache    *cache.Cache[*Response]

	// Payload is the re-encoded wire body, when a body stage produced one.
	Payload *codec.Payload
}

// Metrics receives gateway measurements. Implementations must be safe for
// concurrent use.
type Metrics interface {
	RecordRequest(target, method string, status int, d time.Duration, cacheHit bool)
	RecordFailure(target string, status int)
	RecordCacheLookup(hit bool)
	SetCacheEntries(n int)
}

// AccessEntry is the outcome of one execution as seen by the access log.
type AccessEntry struct {
	ID       string
	Time     time.Time
	Method   string
	Path     string
	Target   string
	Status   int
	Duration time.Duration
	CacheHit bool
	Err      error
}

// AccessRecorder persists access entries, typically asynchronously.
type AccessRecorder interface {
	RecordAccess(entry AccessEntry)
}

type noopMetrics struct{}

func (noopMetrics) RecordRequest(string, string, int, time.Duration, bool) {}
func (noopMetrics) RecordFailure(string, int)                              {}
func (noopMetrics) RecordCacheLookup(bool)                                 {}
func (noopMetrics) SetCacheEntries(int)                                    {}
