package routing

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats is a point-in-time view of router activity.
type Stats struct {
	// TotalRequests is the number of requests looked up in the table.
	TotalRequests int64

	// Misses is the number of requests no rule handled.
	Misses int64

	// RequestsPerRule counts matched requests by rule pattern.
	RequestsPerRule map[string]int64

	// Reloads is the number of tables swapped in since the router started.
	Reloads int64

	// LastResetTime is when the counters were last reset.
	LastResetTime time.Time
}

// atomicStats tracks router activity with lock-free counters.
type atomicStats struct {
	totalRequests atomic.Int64
	misses        atomic.Int64
	reloads       atomic.Int64

	// requestsPerRule maps a rule pattern to *atomic.Int64.
	requestsPerRule sync.Map

	mu            sync.RWMutex
	lastResetTime time.Time
}

func newAtomicStats() *atomicStats {
	return &atomicStats{lastResetTime: time.Now()}
}

func (s *atomicStats) recordMatch(rule string) {
	s.totalRequests.Add(1)
	val, _ := s.requestsPerRule.LoadOrStore(rule, &atomic.Int64{})
	val.(*atomic.Int64).Add(1)
}

func (s *atomicStats) recordMiss() {
	s.totalRequests.Add(1)
	s.misses.Add(1)
}

func (s *atomicStats) recordReload() {
	s.reloads.Add(1)
}

func (s *atomicStats) snapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	perRule := make(map[string]int64)
	s.requestsPerRule.Range(func(key, value any) bool {
		perRule[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})

	return Stats{
		TotalRequests:   s.totalRequests.Load(),
		Misses:          s.misses.Load(),
		RequestsPerRule: perRule,
		Reloads:         s.reloads.Load(),
		LastResetTime:   s.lastResetTime,
	}
}

func (s *atomicStats) reset() {
	s.totalRequests.Store(0)
	s.misses.Store(0)
	s.reloads.Store(0)
	s.requestsPerRule.Range(func(key, _ any) bool {
		s.requestsPerRule.Delete(key)
		return true
	})

	s.mu.Lock()
	s.lastResetTime = time.Now()
	s.mu.Unlock()
}
