package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g., "gateway.target").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every field error found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the configuration and returns a ValidationError listing
// every failed rule, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError

	switch cfg.Mode {
	case ModeClient, ModeServer, ModeRouter:
	default:
		errs = append(errs, FieldError{
			Field:   "mode",
			Message: fmt.Sprintf("invalid mode %q: must be 'client', 'server', or 'router'", cfg.Mode),
		})
	}

	errs = append(errs, validateListen(&cfg.Listen)...)
	errs = append(errs, validateGateway(cfg)...)

	switch cfg.Mode {
	case ModeClient:
		errs = append(errs, validateClient(&cfg.Client)...)
	case ModeServer:
		errs = append(errs, validateServer(&cfg.Server)...)
	case ModeRouter:
		errs = append(errs, validateRouting(&cfg.Routing)...)
	}

	errs = append(errs, validateJournal(&cfg.Journal)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateListen(cfg *ListenConfig) []FieldError {
	var errs []FieldError

	if cfg.Address == "" {
		errs = append(errs, FieldError{Field: "listen.address", Message: "listen address is required"})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "listen.read_timeout", Message: "read timeout must be positive"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "listen.write_timeout", Message: "write timeout must be positive"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "listen.idle_timeout", Message: "idle timeout must be positive"})
	}
	if cfg.MaxHeaderBytes < 0 || cfg.MaxHeaderBytes > 10<<20 {
		errs = append(errs, FieldError{
			Field:   "listen.max_header_bytes",
			Message: "max header bytes must be between 0 and 10MB",
		})
	}
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "listen.max_body_bytes", Message: "max body bytes must be non-negative"})
	}
	if cfg.CORS.Enabled && len(cfg.CORS.AllowedOrigins) == 0 {
		errs = append(errs, FieldError{Field: "listen.cors.allowed_origins", Message: "at least one origin is required when cors is enabled"})
	}
	if cfg.CORS.MaxAge < 0 {
		errs = append(errs, FieldError{Field: "listen.cors.max_age", Message: "max age must be non-negative"})
	}
	errs = append(errs, validateRateLimit(&cfg.RateLimit)...)

	return errs
}

func validateRateLimit(cfg *RateLimitConfig) []FieldError {
	var errs []FieldError
	if cfg.RequestsPerSecond < 0 {
		errs = append(errs, FieldError{Field: "listen.rate_limit.requests_per_second", Message: "must be non-negative"})
	}
	if cfg.Burst < 0 {
		errs = append(errs, FieldError{Field: "listen.rate_limit.burst", Message: "must be non-negative"})
	}
	if cfg.MaxConcurrent < 0 {
		errs = append(errs, FieldError{Field: "listen.rate_limit.max_concurrent", Message: "must be non-negative"})
	}
	if cfg.Enabled && cfg.RequestsPerSecond == 0 && cfg.MaxConcurrent == 0 {
		errs = append(errs, FieldError{
			Field:   "listen.rate_limit",
			Message: "requests_per_second or max_concurrent is required when rate limiting is enabled",
		})
	}
	return errs
}

func validateGateway(cfg *Config) []FieldError {
	var errs []FieldError
	gw := &cfg.Gateway

	// Client mode always targets the registry.
	if cfg.Mode != ModeClient && cfg.Mode != ModeRouter {
		if gw.Target == "" && !gw.EnableDynamicTarget {
			errs = append(errs, FieldError{
				Field:   "gateway.target",
				Message: "target is required unless enable_dynamic_target is set",
			})
		}
	}
	if gw.Target != "" {
		if msg := checkURL(gw.Target); msg != "" {
			errs = append(errs, FieldError{Field: "gateway.target", Message: msg})
		}
	}
	if gw.Timeout < 0 {
		errs = append(errs, FieldError{Field: "gateway.timeout", Message: "timeout must be positive"})
	}
	if gw.MaxResponseBytes < 0 {
		errs = append(errs, FieldError{Field: "gateway.max_response_bytes", Message: "must be non-negative"})
	}

	if c := gw.Cache; c != nil {
		if c.OK < 0 {
			errs = append(errs, FieldError{Field: "gateway.cache.ok", Message: "TTL must be non-negative"})
		}
		if c.Error < 0 {
			errs = append(errs, FieldError{Field: "gateway.cache.error", Message: "TTL must be non-negative"})
		}
		if c.Fatal < 0 {
			errs = append(errs, FieldError{Field: "gateway.cache.fatal", Message: "TTL must be non-negative"})
		}
		if c.MaxEntries < 0 {
			errs = append(errs, FieldError{Field: "gateway.cache.max_entries", Message: "must be non-negative"})
		}
	}

	return errs
}

func validateClient(cfg *ClientConfig) []FieldError {
	var errs []FieldError

	if cfg.Registry == "" {
		errs = append(errs, FieldError{Field: "client.registry", Message: "registry is required"})
	} else if msg := checkURL(cfg.Registry); msg != "" {
		errs = append(errs, FieldError{Field: "client.registry", Message: msg})
	}
	if cfg.Endpoint == "" {
		errs = append(errs, FieldError{Field: "client.endpoint", Message: "endpoint is required"})
	} else if !strings.HasPrefix(cfg.Endpoint, "/") {
		errs = append(errs, FieldError{Field: "client.endpoint", Message: "endpoint must start with '/'"})
	}
	if !strings.HasPrefix(cfg.ClientEndpoint, "/") {
		errs = append(errs, FieldError{Field: "client.client_endpoint", Message: "client endpoint must start with '/'"})
	}
	if cfg.Target != "" {
		if msg := checkURL(cfg.Target); msg != "" {
			errs = append(errs, FieldError{Field: "client.target", Message: msg})
		}
	}

	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if !strings.HasPrefix(cfg.Endpoint, "/") {
		errs = append(errs, FieldError{Field: "server.endpoint", Message: "endpoint must start with '/'"})
	}
	if cfg.Handshake.MaxSkew < 0 {
		errs = append(errs, FieldError{Field: "server.handshake.max_skew", Message: "max skew must be non-negative"})
	}
	if len(cfg.Handshake.Apps) == 0 && !cfg.Handshake.AllowAnonymous {
		errs = append(errs, FieldError{
			Field:   "server.handshake.apps",
			Message: "at least one app is required unless allow_anonymous is set",
		})
	}

	seen := make(map[string]bool)
	for i, app := range cfg.Handshake.Apps {
		field := fmt.Sprintf("server.handshake.apps[%d]", i)
		if app.ID == "" {
			errs = append(errs, FieldError{Field: field + ".id", Message: "app id is required"})
		} else if seen[app.ID] {
			errs = append(errs, FieldError{Field: field + ".id", Message: fmt.Sprintf("duplicate app id %q", app.ID)})
		}
		seen[app.ID] = true
		if app.Token == "" {
			errs = append(errs, FieldError{Field: field + ".token", Message: "app token is required"})
		}
	}

	if cfg.Auth.Enabled && len(cfg.Auth.Tokens) == 0 {
		errs = append(errs, FieldError{Field: "server.auth.tokens", Message: "at least one token is required when auth is enabled"})
	}
	for i, src := range cfg.Auth.Sources {
		field := fmt.Sprintf("server.auth.sources[%d]", i)
		if src.Type != "header" && src.Type != "query" {
			errs = append(errs, FieldError{Field: field + ".type", Message: fmt.Sprintf("invalid source type %q: must be 'header' or 'query'", src.Type)})
		}
		if src.Name == "" {
			errs = append(errs, FieldError{Field: field + ".name", Message: "source name is required"})
		}
	}

	return errs
}

func validateRouting(cfg *RoutingConfig) []FieldError {
	var errs []FieldError

	switch {
	case cfg.File == "" && !cfg.HasTable():
		errs = append(errs, FieldError{Field: "routing", Message: "either routing.file or routing.table is required"})
	case cfg.File != "" && cfg.HasTable():
		errs = append(errs, FieldError{Field: "routing", Message: "routing.file and routing.table are mutually exclusive"})
	}
	if cfg.Watch && cfg.File == "" {
		errs = append(errs, FieldError{Field: "routing.watch", Message: "watch requires routing.file"})
	}
	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{Field: "routing.debounce", Message: "debounce must be non-negative"})
	}

	return errs
}

var journalModePattern = regexp.MustCompile(`^(?i:delete|truncate|persist|memory|wal|off)$`)

func validateJournal(cfg *JournalConfig) []FieldError {
	var errs []FieldError
	if !cfg.Enabled {
		return nil
	}

	switch cfg.Backend {
	case "memory":
		if cfg.Memory.MaxRecords < 0 {
			errs = append(errs, FieldError{Field: "journal.memory.max_records", Message: "must be non-negative"})
		}
	case "sqlite":
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "journal.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q: must be 'sqlite' or 'sqlite3'", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "journal.sqlite.path", Message: "path is required"})
		}
		if cfg.SQLite.MaxOpenConns < 1 {
			errs = append(errs, FieldError{Field: "journal.sqlite.max_open_conns", Message: "must be at least 1"})
		}
		if !journalModePattern.MatchString(cfg.SQLite.JournalMode) {
			errs = append(errs, FieldError{
				Field:   "journal.sqlite.journal_mode",
				Message: fmt.Sprintf("invalid journal mode %q", cfg.SQLite.JournalMode),
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "journal.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'sqlite'", cfg.Backend),
		})
	}

	if cfg.Recorder.AsyncBuffer < 0 {
		errs = append(errs, FieldError{Field: "journal.recorder.async_buffer", Message: "must be non-negative"})
	}
	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{Field: "journal.retention.days", Message: "must be non-negative"})
	}
	if cfg.Retention.Days > 0 {
		if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "journal.retention.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}
	for i, p := range cfg.Logging.RedactPatterns {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i),
				Message: err.Error(),
			})
		}
	}

	if cfg.Metrics.IsEnabled() && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "metrics path must start with '/'"})
	}

	switch cfg.Tracing.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0.0 and 1.0"})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}

	return errs
}

// checkURL returns a message describing why s is not an absolute http(s)
// URL, or "".
func checkURL(s string) string {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Sprintf("invalid URL %q: %v", s, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("invalid URL %q: scheme must be http or https", s)
	}
	if u.Host == "" {
		return fmt.Sprintf("invalid URL %q: missing host", s)
	}
	return ""
}
