package server

import (
	"net/http"

	"relayhq/relay/pkg/codec"
	"relayhq/relay/pkg/config"
	"relayhq/relay/pkg/proxy/handlers"
	"relayhq/relay/pkg/proxy/middleware"
	"relayhq/relay/pkg/telemetry/tracing"
)

// versionPath is mounted by health.Checker.Mount.
const versionPath = "/version"

// routes builds the root handler: operational endpoints first, the mode
// handler for everything else, all behind the middleware chain.
//
// Operational paths are matched exactly so that relayed paths are never
// cleaned or redirected by a ServeMux.
func (s *Server) routes() http.Handler {
	tel := s.config.Telemetry

	ops := http.NewServeMux()
	s.health.Mount(ops, tel.Health.LivenessPath, tel.Health.ReadinessPath,
		s.build.Version, s.build.Commit, s.build.BuildTime)
	opsPaths := map[string]bool{
		tel.Health.LivenessPath:  true,
		tel.Health.ReadinessPath: true,
		versionPath:              true,
	}
	if s.collector != nil {
		ops.Handle(tel.Metrics.Path, s.collector.Handler())
		opsPaths[tel.Metrics.Path] = true
	}

	relayed := s.modeHandler()
	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if opsPaths[r.URL.Path] {
			ops.ServeHTTP(w, r)
			return
		}
		relayed.ServeHTTP(w, r)
	})

	return middleware.Chain(root,
		middleware.RecoveryMiddleware(s.logger),
		middleware.RequestIDMiddleware,
		tracing.HTTPMiddleware,
		middleware.LoggingMiddleware(s.logger),
		middleware.CORSMiddleware(CORSConfig(s.config.Listen.CORS)),
		s.rateLimit(opsPaths),
	)
}

// rateLimit returns the limiter middleware, or nil when disabled.
// Operational endpoints are never limited.
func (s *Server) rateLimit(opsPaths map[string]bool) middleware.Middleware {
	limiter := RateLimiter(s.config.Listen.RateLimit)
	if limiter == nil {
		return nil
	}
	exempt := make([]string, 0, len(opsPaths))
	for p := range opsPaths {
		exempt = append(exempt, p)
	}
	var recorder middleware.RateLimitRecorder
	if s.collector != nil {
		recorder = s.collector
	}
	return middleware.RateLimitMiddleware(limiter, exempt, s.logger, recorder)
}

func (s *Server) modeHandler() http.Handler {
	decode := codec.DecodeOptions{
		SpoolDir:     s.config.Listen.SpoolDir,
		MaxBodyBytes: s.config.Listen.MaxBodyBytes,
	}

	switch s.config.Mode {
	case config.ModeClient:
		return handlers.NewClientHandler(handlers.ClientConfig{
			Prefix: s.config.Client.ClientEndpoint,
			Decode: decode,
			Logger: s.logger,
		}, s.client, nil)

	case config.ModeServer:
		h := handlers.NewServerHandler(handlers.ServerConfig{
			Method:   s.config.Server.Method,
			Endpoint: s.config.Server.Endpoint,
			Decode:   decode,
			Logger:   s.logger,
		}, s.relayServer, nil)
		if tokens := TokenMiddleware(s.config.Server.Auth, s.logger); tokens != nil {
			h = tokens.Handle(h)
		}
		return h

	default:
		return handlers.NewRouterHandler(handlers.RouterConfig{
			Decode: decode,
			Logger: s.logger,
		}, s.router, nil)
	}
}
