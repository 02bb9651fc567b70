package health

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Overall and per-check statuses.
const (
	StatusOK       = "ok"
	StatusReady    = "ready"
	StatusDegraded = "degraded"
	StatusNotReady = "not_ready"
	StatusFailed   = "unhealthy"
)

// CheckFunc reports whether a component can serve traffic.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Critical bool   `json:"critical"`
	Duration int64  `json:"duration_ms"`
}

// Status is the body of the liveness and readiness endpoints.
type Status struct {
	// Status is "ok" for liveness, and "ready", "degraded" or "not_ready"
	// for readiness.
	Status    string                 `json:"status"`
	Mode      string                 `json:"mode,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

type check struct {
	fn       CheckFunc
	critical bool
}

// Checker runs readiness checks for the relay's dependencies. A failing
// critical check (the routing table in router mode) makes the relay
// not ready; a failing non-critical one (the journal) only degrades it.
type Checker struct {
	mu     sync.RWMutex
	checks map[string]check
	mode   string

	checkTimeout time.Duration
}

// ErrCheckTimeout is reported when a check does not finish in time.
var ErrCheckTimeout = errors.New("health check timeout")

// New creates a checker. A zero timeout means 5 seconds per check.
func New(mode string, checkTimeout time.Duration) *Checker {
	if checkTimeout <= 0 {
		checkTimeout = 5 * time.Second
	}
	return &Checker{
		checks:       make(map[string]check),
		mode:         mode,
		checkTimeout: checkTimeout,
	}
}

// Register adds or replaces the check called name.
func (c *Checker) Register(name string, fn CheckFunc, critical bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check{fn: fn, critical: critical}
}

// Unregister removes the check called name.
func (c *Checker) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// Names returns the registered check names in sorted order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Liveness reports that the process is serving HTTP.
func (c *Checker) Liveness(context.Context) Status {
	return Status{Status: StatusOK, Mode: c.mode, Timestamp: time.Now()}
}

// Readiness runs every check concurrently.
func (c *Checker) Readiness(ctx context.Context) Status {
	c.mu.RLock()
	checks := make(map[string]check, len(c.checks))
	for name, ch := range c.checks {
		checks[name] = ch
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, ch := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := c.run(ctx, ch)
			mu.Lock()
			results[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := StatusReady
	for _, res := range results {
		if res.Status != StatusFailed {
			continue
		}
		if res.Critical {
			status = StatusNotReady
			break
		}
		status = StatusDegraded
	}

	return Status{Status: status, Mode: c.mode, Checks: results, Timestamp: time.Now()}
}

func (c *Checker) run(ctx context.Context, ch check) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- ch.fn(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ErrCheckTimeout
	}

	res := CheckResult{Status: StatusOK, Critical: ch.critical, Duration: time.Since(start).Milliseconds()}
	if err != nil {
		res.Status = StatusFailed
		res.Message = err.Error()
	}
	return res
}
