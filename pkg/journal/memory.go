package journal

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryConfig configures a MemoryStorage.
type MemoryConfig struct {
	// MaxRecords bounds the journal; the oldest records are evicted first.
	// Zero means unbounded.
	MaxRecords int
}

// MemoryStorage keeps records in memory. It suits tests and single-node
// deployments that do not need the journal to survive a restart.
type MemoryStorage struct {
	config MemoryConfig

	mu      sync.RWMutex
	records []*Record
	closed  bool
}

// NewMemoryStorage creates an empty in-memory journal.
func NewMemoryStorage(cfg MemoryConfig) *MemoryStorage {
	return &MemoryStorage{config: cfg}
}

// Store appends a copy of record.
func (s *MemoryStorage) Store(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storageError("memory", "store", ErrClosed)
	}

	rc := *record
	s.records = append(s.records, &rc)
	if limit := s.config.MaxRecords; limit > 0 && len(s.records) > limit {
		drop := len(s.records) - limit
		clear(s.records[:drop])
		s.records = s.records[drop:]
	}
	return nil
}

// Query returns copies of the matching records, newest first.
func (s *MemoryStorage) Query(_ context.Context, query *Query) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storageError("memory", "query", ErrClosed)
	}

	var results []*Record
	for _, r := range s.records {
		if query.matches(r) {
			rc := *r
			results = append(results, &rc)
		}
	}
	slices.SortStableFunc(results, func(a, b *Record) int {
		return b.Time.Compare(a.Time)
	})

	offset := 0
	if query != nil {
		offset = query.Offset
	}
	if offset >= len(results) {
		return []*Record{}, nil
	}
	results = results[offset:]
	if limit := query.limit(); len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Count returns the number of matching records.
func (s *MemoryStorage) Count(_ context.Context, query *Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, storageError("memory", "count", ErrClosed)
	}

	var n int64
	for _, r := range s.records {
		if query.matches(r) {
			n++
		}
	}
	return n, nil
}

// DeleteBefore removes records older than t.
func (s *MemoryStorage) DeleteBefore(_ context.Context, t time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, storageError("memory", "delete", ErrClosed)
	}

	before := len(s.records)
	s.records = slices.DeleteFunc(s.records, func(r *Record) bool {
		return r.Time.Before(t)
	})
	return int64(before - len(s.records)), nil
}

// PingContext fails once the storage is closed.
func (s *MemoryStorage) PingContext(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return storageError("memory", "ping", ErrClosed)
	}
	return nil
}

// Close drops all records.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.closed = true
	return nil
}
