package routing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"relayhq/relay/pkg/gateway"
)

// ReloadRecorder is implemented by metrics collectors that count table
// reloads.
type ReloadRecorder interface {
	RecordRouteReload(ok bool, rules int)
}

// Router forwards requests through a core using the active table. It is
// safe for concurrent use; the table can be swapped while requests are in
// flight.
type Router struct {
	table   atomic.Pointer[Table]
	core    *gateway.Core
	logger  *slog.Logger
	metrics ReloadRecorder
	stats   *atomicStats
}

// NewRouter creates a router. The core must enable dynamic targets so that
// the rule target reaches the upstream call.
func NewRouter(table *Table, core *gateway.Core, logger *slog.Logger, metrics ReloadRecorder) (*Router, error) {
	if core == nil {
		return nil, errors.New("router: nil core")
	}
	if !core.Config().EnableDynamicTarget {
		return nil, ErrStaticCore
	}
	if table == nil {
		table = &Table{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		core:    core,
		logger:  logger.With("component", "router"),
		metrics: metrics,
		stats:   newAtomicStats(),
	}
	r.table.Store(table)
	return r, nil
}

// Table returns the active table.
func (r *Router) Table() *Table {
	return r.table.Load()
}

// Len returns the number of rules in the active table.
func (r *Router) Len() int {
	return r.table.Load().Len()
}

// Swap replaces the active table.
func (r *Router) Swap(t *Table) {
	if t == nil {
		t = &Table{}
	}
	r.table.Store(t)
	r.stats.recordReload()
	r.logger.Info("routing table swapped", "rules", t.Len(), "env", t.Env())
}

// Reload loads path and swaps it in. A table that fails to load leaves the
// active table in place.
func (r *Router) Reload(path, env string) error {
	t, err := LoadFile(path, env)
	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordRouteReload(false, 0)
		}
		return err
	}
	r.Swap(t)
	if r.metrics != nil {
		r.metrics.RecordRouteReload(true, t.Len())
	}
	return nil
}

// Stats returns a snapshot of router activity.
func (r *Router) Stats() Stats {
	return r.stats.snapshot()
}

// ResetStats zeroes the activity counters.
func (r *Router) ResetStats() {
	r.stats.reset()
}

// Request matches req.Path against the table and forwards the request to
// the rule target with the rewritten path. A miss returns a 404
// *gateway.Error wrapping gateway.ErrNoRouteMatched.
func (r *Router) Request(ctx context.Context, req *gateway.Request) (*gateway.Response, error) {
	if req == nil {
		return nil, errors.New("router: nil request")
	}

	m, err := r.table.Load().Match(req.Path)
	if err != nil {
		r.stats.recordMiss()
		nf := gateway.NotFound(req.Method, req.Path)
		r.core.RecordRejected(req, nf)
		return nil, nf
	}
	r.stats.recordMatch(m.Rule)

	fwd := *req
	fwd.Path = m.Path
	fwd.Target = m.Target

	r.logger.InfoContext(ctx, fmt.Sprintf("=> %s %s - %s", req.Method, m.Path, m.Target))

	resp, err := r.core.Request(ctx, &fwd)
	if err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, fmt.Sprintf("<= %s %s %d +%dms", req.Method, m.Path, resp.Status, resp.RequestTimeMs()))
	return resp, nil
}
