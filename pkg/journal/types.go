package journal

import (
	"context"
	"time"
)

// Record is one persisted request outcome.
type Record struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Target     string    `json:"target"`
	Status     int       `json:"status"`
	DurationMs int64     `json:"duration_ms"`
	CacheHit   bool      `json:"cache_hit"`
	Error      string    `json:"error,omitempty"`
}

// Failed reports whether the request ended in an error or a non-2xx status.
func (r *Record) Failed() bool {
	return r.Error != "" || r.Status < 200 || r.Status > 299
}

// Query filters records. Zero fields do not filter.
type Query struct {
	// Since and Until bound Time, both inclusive.
	Since *time.Time
	Until *time.Time

	Method string
	Target string

	// Status is "success" or "error".
	Status string

	// Limit caps the result (default: 100). Offset skips records.
	Limit  int
	Offset int
}

// Storage is a journal backend. Implementations are safe for concurrent use.
// Query returns the newest records first.
type Storage interface {
	Store(ctx context.Context, record *Record) error
	Query(ctx context.Context, query *Query) ([]*Record, error)
	Count(ctx context.Context, query *Query) (int64, error)

	// DeleteBefore removes records older than t and returns how many were
	// removed.
	DeleteBefore(ctx context.Context, t time.Time) (int64, error)

	// PingContext reports whether the backend is usable.
	PingContext(ctx context.Context) error

	Close() error
}

// defaultQueryLimit applies when Query.Limit is zero.
const defaultQueryLimit = 100

func (q *Query) limit() int {
	if q == nil || q.Limit <= 0 {
		return defaultQueryLimit
	}
	return q.Limit
}

func (q *Query) matches(r *Record) bool {
	if q == nil {
		return true
	}
	if q.Since != nil && r.Time.Before(*q.Since) {
		return false
	}
	if q.Until != nil && r.Time.After(*q.Until) {
		return false
	}
	if q.Method != "" && r.Method != q.Method {
		return false
	}
	if q.Target != "" && r.Target != q.Target {
		return false
	}
	switch q.Status {
	case "success":
		return !r.Failed()
	case "error":
		return r.Failed()
	}
	return true
}
