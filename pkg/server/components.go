package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"relayhq/relay/pkg/config"
	"relayhq/relay/pkg/envelope"
	"relayhq/relay/pkg/gateway"
	"relayhq/relay/pkg/journal"
	"relayhq/relay/pkg/proxy/middleware"
	"relayhq/relay/pkg/relay"
	"relayhq/relay/pkg/routing"
	"relayhq/relay/pkg/security/auth"
	"relayhq/relay/pkg/security/ratelimit"
)

// GatewayCache converts cache TTLs in seconds into a gateway cache
// configuration. A nil section disables caching.
func GatewayCache(cfg *config.CacheConfig) *gateway.CacheConfig {
	if cfg == nil {
		return nil
	}
	return &gateway.CacheConfig{
		OK:               config.Seconds(cfg.OK),
		Error:            config.Seconds(cfg.Error),
		Fatal:            config.Seconds(cfg.Fatal),
		MaxEntries:       cfg.MaxEntries,
		Coalesce:         cfg.Coalesce,
		NormalizeHeaders: cfg.NormalizeHeaders,
	}
}

// LoadTable builds the routing table from a table file or the inline
// table. Without either the table is empty.
func LoadTable(cfg config.RoutingConfig) (*routing.Table, error) {
	switch {
	case cfg.File != "":
		return routing.LoadFile(cfg.File, cfg.Env)
	case cfg.HasTable():
		return routing.ParseNode(&cfg.Table, cfg.Env)
	default:
		return routing.NewTable(nil, cfg.Env)
	}
}

// HandshakeValidator builds the app registry of server mode.
func HandshakeValidator(cfg config.ServerHandshakeConfig) *auth.AppRegistry {
	apps := make([]*auth.App, 0, len(cfg.Apps))
	for _, a := range cfg.Apps {
		apps = append(apps, &auth.App{
			ID:       a.ID,
			Token:    a.Token,
			Disabled: a.Disabled,
			Targets:  append([]string(nil), a.Targets...),
		})
	}
	return auth.NewAppRegistry(apps, auth.RegistryConfig{
		MaxSkew:        cfg.MaxSkew,
		AllowAnonymous: cfg.AllowAnonymous,
	})
}

// TokenMiddleware builds the transport token check, or returns nil when it
// is disabled.
func TokenMiddleware(cfg config.TransportAuthConfig, logger *slog.Logger) *auth.TokenMiddleware {
	if !cfg.Enabled {
		return nil
	}
	sources := make([]auth.TokenSource, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		sources = append(sources, auth.TokenSource{Type: s.Type, Name: s.Name, Scheme: s.Scheme})
	}
	return auth.NewTokenMiddleware(cfg.Tokens, sources, logger)
}

// JournalConfig converts the journal section.
func JournalConfig(cfg config.JournalConfig) journal.Config {
	return journal.Config{
		Backend: cfg.Backend,
		SQLite: journal.SQLiteConfig{
			Driver:       cfg.SQLite.Driver,
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.SQLite.MaxIdleConns,
			JournalMode:  cfg.SQLite.JournalMode,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		},
		Memory: journal.MemoryConfig{MaxRecords: cfg.Memory.MaxRecords},
	}
}

// CORSConfig converts the listener's CORS section.
func CORSConfig(cfg config.CORSConfig) *middleware.CORSConfig {
	return &middleware.CORSConfig{
		Enabled:          cfg.Enabled,
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   cfg.ExposedHeaders,
		MaxAge:           cfg.MaxAge,
		AllowCredentials: cfg.AllowCredentials,
	}
}

// RateLimiter builds the listener limiter. It returns nil when rate
// limiting is disabled.
func RateLimiter(cfg config.RateLimitConfig) *ratelimit.Limiter {
	if !cfg.Enabled {
		return nil
	}
	return ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		MaxConcurrent:     cfg.MaxConcurrent,
	})
}

// gatewayOptions assembles the collaborators shared by every core.
func (s *Server) gatewayOptions() gateway.Options {
	transport := s.transport
	if transport == nil {
		transport = &http.Client{Timeout: s.config.Gateway.Timeout}
	}
	opts := gateway.Options{
		Transport:        transport,
		Logger:           s.logger,
		MaxResponseBytes: s.config.Gateway.MaxResponseBytes,
		Tracer:           s.tracer.Tracer(),
	}
	if s.collector != nil {
		opts.Metrics = s.collector
	}
	if s.recorder != nil {
		opts.Journal = s.recorder
	}
	return opts
}

// buildClient creates the client-mode relay.
func (s *Server) buildClient() (*relay.Client, error) {
	c := s.config.Client
	var user json.RawMessage
	if c.Handshake.User != nil {
		b, err := json.Marshal(c.Handshake.User)
		if err != nil {
			return nil, fmt.Errorf("client.handshake.user: %w", err)
		}
		user = b
	}
	return relay.NewClient(relay.ClientConfig{
		Registry:      c.Registry,
		Endpoint:      c.Endpoint,
		Headers:       c.Headers,
		ServerHeaders: c.ServerHeaders,
		DataHeaders:   c.DataHeaders,
		Handshake: envelope.HandShake{
			AppID:    c.Handshake.AppID,
			AppToken: c.Handshake.AppToken,
			User:     user,
		},
		Target:              c.Target,
		EnableDynamicTarget: c.EnableDynamicTarget,
		Version:             s.build.Version,
	}, s.gatewayOptions())
}

// buildServer creates the server-mode relay.
func (s *Server) buildServer() (*relay.Server, error) {
	return relay.NewServer(relay.ServerConfig{
		Target:              s.config.Gateway.Target,
		EnableDynamicTarget: s.config.Gateway.EnableDynamicTarget,
		Cache:               GatewayCache(s.config.Gateway.Cache),
		Headers:             s.config.Server.Headers,
		Version:             s.build.Version,
		Validator:           HandshakeValidator(s.config.Server.Handshake),
	}, s.gatewayOptions())
}

// buildRouter creates the router-mode table and router. Router cores
// always allow dynamic targets: the rule decides the upstream.
func (s *Server) buildRouter() (*routing.Router, error) {
	table, err := LoadTable(s.config.Routing)
	if err != nil {
		return nil, fmt.Errorf("load routing table: %w", err)
	}

	core, err := gateway.New(gateway.Config{
		Target:              s.config.Gateway.Target,
		Cache:               GatewayCache(s.config.Gateway.Cache),
		EnableDynamicTarget: true,
	}, s.gatewayOptions())
	if err != nil {
		return nil, fmt.Errorf("router core: %w", err)
	}

	var reloads routing.ReloadRecorder
	if s.collector != nil {
		reloads = s.collector
	}
	return routing.NewRouter(table, core, s.logger, reloads)
}
