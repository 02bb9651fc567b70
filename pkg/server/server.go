package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"relayhq/relay/pkg/config"
	"relayhq/relay/pkg/gateway"
	"relayhq/relay/pkg/journal"
	"relayhq/relay/pkg/relay"
	"relayhq/relay/pkg/routing"
	"relayhq/relay/pkg/telemetry/health"
	"relayhq/relay/pkg/telemetry/metrics"
	"relayhq/relay/pkg/telemetry/tracing"
)

// BuildInfo is reported by the version endpoint and in User-Agent headers.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Options carries the collaborators of a Server. Zero values select
// defaults.
type Options struct {
	Logger *slog.Logger

	// Registry receives the Prometheus metrics (default: a fresh registry).
	Registry *prometheus.Registry

	// Transport performs upstream calls (default: an *http.Client with
	// gateway.timeout).
	Transport gateway.Doer

	Build BuildInfo
}

// Server runs one relay mode behind an HTTP listener.
type Server struct {
	config    *config.Config
	logger    *slog.Logger
	build     BuildInfo
	transport gateway.Doer

	collector *metrics.Collector
	tracer    *tracing.Tracer
	health    *health.Checker

	client      *relay.Client
	relayServer *relay.Server
	router      *routing.Router
	watcher     *routing.Watcher

	storage  journal.Storage
	recorder *journal.Recorder
	pruner   *journal.Pruner

	handler    http.Handler
	httpServer *http.Server

	mu           sync.RWMutex
	isRunning    bool
	addr         string
	shutdownOnce sync.Once
	shutdownErr  error
	background   context.CancelFunc
	watchDone    chan struct{}
}

// New builds every component the configured mode needs. Resources opened
// here (journal storage, tracer) are released by Shutdown, or by Close when
// the server never starts.
func New(cfg *config.Config, opts Options) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server: nil config")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Build.Version == "" {
		opts.Build.Version = "dev"
	}

	s := &Server{
		config:    cfg,
		logger:    logger,
		build:     opts.Build,
		transport: opts.Transport,
		health:    health.New(cfg.Mode, cfg.Telemetry.Health.CheckTimeout),
	}

	if err := s.init(opts); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) init(opts Options) error {
	cfg := s.config

	if cfg.Telemetry.Metrics.IsEnabled() {
		s.collector = metrics.NewCollector(&cfg.Telemetry.Metrics, opts.Registry)
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, s.build.Version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	s.tracer = tracer

	if cfg.Journal.Enabled {
		if err := s.openJournal(); err != nil {
			return err
		}
	}

	switch cfg.Mode {
	case config.ModeClient:
		s.client, err = s.buildClient()
	case config.ModeServer:
		s.relayServer, err = s.buildServer()
	case config.ModeRouter:
		s.router, err = s.buildRouter()
		if err == nil {
			s.health.Register("routing_table", health.CountCheck("routing rules", s.router.Len), true)
		}
	default:
		err = fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	if err != nil {
		return fmt.Errorf("%s mode: %w", cfg.Mode, err)
	}

	if cfg.Mode == config.ModeRouter && cfg.Routing.Watch && cfg.Routing.File != "" {
		s.watcher, err = routing.NewWatcher(routing.WatcherConfig{
			Path:     cfg.Routing.File,
			Debounce: cfg.Routing.Debounce,
		}, s.logger)
		if err != nil {
			return fmt.Errorf("routing watcher: %w", err)
		}
	}

	s.handler = s.routes()
	return nil
}

func (s *Server) openJournal() error {
	cfg := s.config.Journal

	storage, err := journal.Open(JournalConfig(cfg), s.logger)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	s.storage = storage

	var drops journal.DropRecorder
	if s.collector != nil {
		drops = s.collector
	}
	s.recorder = journal.NewRecorder(storage, journal.RecorderConfig{
		AsyncBuffer:  cfg.Recorder.AsyncBuffer,
		WriteTimeout: cfg.Recorder.WriteTimeout,
	}, s.logger, drops)

	s.pruner = journal.NewPruner(storage, journal.RetentionConfig{
		Days:          cfg.Retention.Days,
		PruneSchedule: cfg.Retention.PruneSchedule,
	}, s.logger)

	s.health.Register("journal", health.PingCheck(storage), false)
	return nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Router returns the router of router mode, or nil.
func (s *Server) Router() *routing.Router {
	return s.router
}

// Journal returns the journal storage, or nil when the journal is disabled.
func (s *Server) Journal() journal.Storage {
	return s.storage
}

// Addr returns the bound listen address once the server is running.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Start listens on listen.address and blocks until ctx is cancelled, a
// SIGINT or SIGTERM arrives, or the listener fails. It then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return errors.New("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.Listen.Address)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen on %s: %w", s.config.Listen.Address, err)
	}
	s.addr = ln.Addr().String()
	s.isRunning = true

	s.httpServer = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.config.Listen.ReadTimeout,
		WriteTimeout:   s.config.Listen.WriteTimeout,
		IdleTimeout:    s.config.Listen.IdleTimeout,
		MaxHeaderBytes: s.config.Listen.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	bg, cancel := context.WithCancel(context.Background())
	s.background = cancel
	s.mu.Unlock()

	s.startBackground(bg)

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting relay",
			"mode", s.config.Mode,
			"address", s.addr,
			"version", s.build.Version,
		)
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		_ = s.Shutdown(context.Background())
		return err
	}
}

// startBackground runs the table watcher and the retention scheduler.
func (s *Server) startBackground(ctx context.Context) {
	if s.pruner != nil {
		if err := s.pruner.Start(ctx); err != nil {
			s.logger.Error("journal retention scheduler not started", "error", err)
		}
	}
	if s.watcher != nil {
		s.watchDone = make(chan struct{})
		go func() {
			defer close(s.watchDone)
			err := s.watcher.Watch(ctx, func() error {
				return s.router.Reload(s.config.Routing.File, s.config.Routing.Env)
			})
			if err != nil {
				s.logger.Error("routing table watcher failed", "error", err)
			}
		}()
	}
}

// Shutdown stops accepting connections, drains in-flight requests within
// listen.shutdown_timeout and releases every background component. It is
// safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		httpServer := s.httpServer
		s.mu.RUnlock()

		if httpServer != nil {
			s.logger.Info("initiating graceful shutdown", "timeout", s.config.Listen.ShutdownTimeout.String())
			shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Listen.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				s.shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		if err := s.release(ctx); err != nil && s.shutdownErr == nil {
			s.shutdownErr = err
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		s.logger.Info("relay stopped")
	})
	return s.shutdownErr
}

// Close releases resources without serving. It is used when a server is
// built but never started, e.g. for a dry run.
func (s *Server) Close() error {
	return s.Shutdown(context.Background())
}

func (s *Server) release(ctx context.Context) error {
	var errs []error

	s.mu.RLock()
	cancel := s.background
	s.mu.RUnlock()
	if cancel != nil {
		cancel()
	}

	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			errs = append(errs, err)
		}
		if s.watchDone != nil {
			<-s.watchDone
		}
	}
	if s.pruner != nil {
		s.pruner.Stop()
	}
	// The recorder drains into storage, so it closes first.
	if s.recorder != nil {
		if err := s.recorder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("journal recorder: %w", err))
		}
	}
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("journal storage: %w", err))
		}
	}
	if s.tracer != nil {
		if err := s.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer: %w", err))
		}
	}
	return errors.Join(errs...)
}
