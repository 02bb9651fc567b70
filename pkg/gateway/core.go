package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"relayhq/relay/pkg/cache"
	"relayhq/relay/pkg/pipeline"
	"relayhq/relay/pkg/telemetry/logging"
)

// DefaultStatsInterval is the minimum gap between two "gateway stats" lines.
const DefaultStatsInterval = 10 * time.Second

// CacheConfig enables response caching. TTLs of zero disable the
// corresponding kind of entry.
type CacheConfig struct {
	// OK is the TTL of 2xx responses.
	OK time.Duration

	// Error is the TTL of non-2xx upstream responses.
	Error time.Duration

	// Fatal is the TTL of gateway failures.
	Fatal time.Duration

	// MaxEntries bounds the LRU (default: cache.DefaultMaxEntries).
	MaxEntries int

	// Coalesce shares one upstream call between concurrent identical misses.
	Coalesce bool

	// NormalizeHeaders lower-cases and trims header names before hashing
	// the cache key.
	NormalizeHeaders bool
}

// Config is the proxy core configuration.
type Config struct {
	// Target is the default upstream, e.g. https://api.example.com.
	Target string

	// Cache enables caching when non-nil.
	Cache *CacheConfig

	// EnableDynamicTarget lets requests choose their upstream.
	EnableDynamicTarget bool
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Target == "" {
		if c.EnableDynamicTarget {
			return nil
		}
		return ErrNoTarget
	}
	u, err := url.Parse(c.Target)
	if err != nil {
		return fmt.Errorf("invalid target %q: %w", c.Target, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid target %q: scheme must be http or https", c.Target)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid target %q: missing host", c.Target)
	}
	if c.Cache != nil && (c.Cache.OK < 0 || c.Cache.Error < 0 || c.Cache.Fatal < 0) {
		return errors.New("cache TTLs must not be negative")
	}
	return nil
}

// Options carries the collaborators of a Core. Zero values select defaults.
type Options struct {
	// Transport performs upstream calls (default: a client with a 60s
	// timeout).
	Transport Doer

	Logger  *slog.Logger
	Metrics Metrics
	Journal AccessRecorder
	Tracer  trace.Tracer

	// Now is the clock (default: time.Now).
	Now func() time.Time

	// StatsInterval throttles the stats log line (default: 10s).
	StatsInterval time.Duration

	// MaxResponseBytes bounds upstream bodies (default: 32 MiB).
	MaxResponseBytes int64
}

// Core is the proxy core. It is safe for concurrent use.
type Core struct {
	config           Config
	engine           *pipeline.Engine[*ExecutionContext]
	cache            *cache.Cache[*Response]
	counters         *Counters
	transport        Doer
	logger           *slog.Logger
	metrics          Metrics
	journal          AccessRecorder
	tracer           trace.Tracer
	now              func() time.Time
	statsInterval    time.Duration
	maxResponseBytes int64
	lastStats        atomic.Int64
}

// New creates a Core.
func New(cfg Config, opts Options) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Core{
		config:           cfg,
		counters:         &Counters{},
		transport:        opts.Transport,
		logger:           opts.Logger,
		metrics:          opts.Metrics,
		journal:          opts.Journal,
		tracer:           opts.Tracer,
		now:              opts.Now,
		statsInterval:    opts.StatsInterval,
		maxResponseBytes: opts.MaxResponseBytes,
	}

	if c.transport == nil {
		c.transport = &http.Client{Timeout: 60 * time.Second}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "gateway")
	if c.metrics == nil {
		c.metrics = noopMetrics{}
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer("relayhq/relay/gateway")
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.statsInterval <= 0 {
		c.statsInterval = DefaultStatsInterval
	}
	if c.maxResponseBytes <= 0 {
		c.maxResponseBytes = DefaultMaxResponseBytes
	}
	if cfg.Cache != nil {
		c.cache = cache.New[*Response](cache.Config{
			MaxEntries: cfg.Cache.MaxEntries,
			Now:        c.now,
		})
	}

	c.engine = pipeline.New(c.roundTrip, c.stages()...)
	return c, nil
}

// Request runs one logical request through the pipeline. Upstream replies,
// including non-2xx ones, are returned as responses; gateway failures are
// returned as *Error.
func (c *Core) Request(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, errors.New("gateway: nil request")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ec := &ExecutionContext{
		ctx:   ctx,
		ID:    logging.GetRequestID(ctx),
		Input: req.clone(),
	}
	if ec.ID == "" {
		ec.ID = uuid.NewString()
	}

	if err := c.engine.Execute(ec); err != nil {
		return nil, err
	}
	if ec.Output == nil {
		return nil, &Error{
			Status:  http.StatusBadGateway,
			Message: "no response produced",
			Method:  ec.Input.Method,
			Path:    ec.Input.Path,
		}
	}
	return ec.Output, nil
}

// RecordRejected journals a request that was refused before it reached the
// pipeline, such as a routing miss. Its status comes from err.
func (c *Core) RecordRejected(req *Request, err error) {
	if c.journal == nil || req == nil {
		return
	}
	c.journal.RecordAccess(AccessEntry{
		ID:     uuid.NewString(),
		Time:   c.now(),
		Method: req.Method,
		Path:   req.Path,
		Status: StatusOf(err),
		Err:    err,
	})
}

// Config returns the configuration the core was built with.
func (c *Core) Config() Config {
	return c.config
}

// Counters returns the core's request counters.
func (c *Core) Counters() *Counters {
	return c.counters
}

// Cache returns the response cache, or nil when caching is disabled.
func (c *Core) Cache() *cache.Cache[*Response] {
	return c.cache
}

// Stages returns the stage names in execution order.
func (c *Core) Stages() []string {
	return c.engine.Names()
}
