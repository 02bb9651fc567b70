package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Modes select which handler the relay mounts.
const (
	// ModeClient forwards local requests to a broker inside envelopes.
	ModeClient = "client"

	// ModeServer accepts envelopes, checks the handshake and forwards to
	// the real upstream.
	ModeServer = "server"

	// ModeRouter forwards requests using the path-rewrite table.
	ModeRouter = "router"
)

// Config is the root configuration structure for the relay.
type Config struct {
	// Mode is one of "client", "server" or "router".
	// Default: "router"
	Mode string `yaml:"mode"`

	// Listen contains the HTTP listener configuration.
	Listen ListenConfig `yaml:"listen"`

	// Gateway configures the proxy core shared by every mode.
	Gateway GatewayConfig `yaml:"gateway"`

	// Client configures client mode.
	Client ClientConfig `yaml:"client"`

	// Server configures server mode.
	Server ServerConfig `yaml:"server"`

	// Routing configures the path-rewrite table used in router mode.
	Routing RoutingConfig `yaml:"routing"`

	// Journal configures the access journal.
	Journal JournalConfig `yaml:"journal"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ListenConfig contains configuration for the HTTP listener.
type ListenConfig struct {
	// Address is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	Address string `yaml:"address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. It should exceed gateway.timeout.
	// Default: 90s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits inbound non-file body content.
	// Default: 10485760 (10MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// SpoolDir receives uploaded multipart files while they are forwarded.
	// Default: os.TempDir()
	SpoolDir string `yaml:"spool_dir"`

	// CORS adds cross-origin headers for browser callers of client mode.
	CORS CORSConfig `yaml:"cors"`

	// RateLimit sheds load once the listener is over its rate or
	// concurrency limit.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig configures listener-wide load shedding. Health, version
// and metrics endpoints are exempt.
type RateLimitConfig struct {
	// Enabled controls whether limits are enforced.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// RequestsPerSecond is the sustained rate admitted by the listener.
	// Zero disables the rate limit.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the number of requests admitted at once after an idle period.
	// Default: 2 x requests_per_second
	Burst int `yaml:"burst"`

	// MaxConcurrent bounds in-flight requests. Zero disables it.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// CORSConfig contains configuration for CORS handling.
type CORSConfig struct {
	// Enabled controls whether CORS headers are added.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins lists allowed origins. Use ["*"] to allow all.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods lists methods answered in preflight responses.
	// Default: GET, POST, PUT, PATCH, DELETE, OPTIONS
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders lists request headers answered in preflight responses.
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders lists response headers readable by the browser.
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is the preflight cache lifetime in seconds.
	// Default: 3600
	MaxAge int `yaml:"max_age"`

	AllowCredentials bool `yaml:"allow_credentials"`
}

// GatewayConfig configures the proxy core.
type GatewayConfig struct {
	// Target is the default upstream. In client mode it is ignored; the
	// client always targets client.registry.
	Target string `yaml:"target"`

	// EnableDynamicTarget lets requests choose their upstream.
	// Default: false
	EnableDynamicTarget bool `yaml:"enable_dynamic_target"`

	// Timeout bounds one upstream call.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// MaxResponseBytes bounds upstream bodies read into memory.
	// Default: 33554432 (32MB)
	MaxResponseBytes int64 `yaml:"max_response_bytes"`

	// Cache enables response caching when present.
	Cache *CacheConfig `yaml:"cache"`
}

// CacheConfig configures response caching. TTLs are in seconds; zero
// disables that kind of entry.
type CacheConfig struct {
	// OK is the TTL of 2xx responses in seconds.
	OK int `yaml:"ok"`

	// Error is the TTL of non-2xx upstream responses in seconds.
	Error int `yaml:"error"`

	// Fatal is the TTL of gateway failures in seconds.
	Fatal int `yaml:"fatal"`

	// MaxEntries bounds the LRU.
	// Default: 1000
	MaxEntries int `yaml:"max_entries"`

	// Coalesce shares one upstream call between concurrent identical misses.
	// Default: false
	Coalesce bool `yaml:"coalesce"`

	// NormalizeHeaders lower-cases header names before hashing cache keys.
	// Default: false
	NormalizeHeaders bool `yaml:"normalize_headers"`
}

// ClientConfig configures client mode.
type ClientConfig struct {
	// Registry is the broker base URL, e.g. https://relay.example.com.
	Registry string `yaml:"registry"`

	// Endpoint is the broker path that accepts envelopes.
	// Default: "/api/relay"
	Endpoint string `yaml:"endpoint"`

	// ClientEndpoint is the local path prefix that is relayed. The prefix is
	// removed before wrapping.
	// Default: "/api/relay"
	ClientEndpoint string `yaml:"client_endpoint"`

	// Headers are sent to the broker on every call.
	Headers map[string]string `yaml:"headers"`

	// Handshake identifies this client to the broker.
	Handshake HandshakeConfig `yaml:"handshake"`

	// ServerHeaders are added to the broker call only.
	ServerHeaders map[string]string `yaml:"server_headers"`

	// DataHeaders are added to the wrapped request.
	DataHeaders map[string]string `yaml:"data_headers"`

	// Target is sent as the dynamic target when EnableDynamicTarget is set.
	Target string `yaml:"target"`

	// EnableDynamicTarget puts Target (or the request's own target) into the
	// envelope.
	// Default: false
	EnableDynamicTarget bool `yaml:"enable_dynamic_target"`
}

// HandshakeConfig is the static identity of a client.
type HandshakeConfig struct {
	AppID    string `yaml:"app_id"`
	AppToken string `yaml:"app_token"`

	// User is an opaque value forwarded to the server's validator.
	User any `yaml:"user"`
}

// ServerConfig configures server mode.
type ServerConfig struct {
	// Endpoint is the path that accepts envelopes.
	// Default: "/api/relay"
	Endpoint string `yaml:"endpoint"`

	// Method is the method that carries envelopes.
	// Default: "POST"
	Method string `yaml:"method"`

	// Headers are added to every upstream call after the envelope headers.
	Headers map[string]string `yaml:"headers"`

	// Handshake configures the built-in validator.
	Handshake ServerHandshakeConfig `yaml:"handshake"`

	// Auth guards the envelope endpoint with a transport token, checked
	// before the envelope is read.
	Auth TransportAuthConfig `yaml:"auth"`
}

// TransportAuthConfig configures the broker's transport token check.
type TransportAuthConfig struct {
	// Enabled turns the check on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Tokens are the accepted transport tokens.
	Tokens []string `yaml:"tokens"`

	// Sources lists where tokens are read from, tried in order.
	// Default: Authorization header with the Bearer scheme
	Sources []TokenSourceConfig `yaml:"sources"`
}

// TokenSourceConfig names one place a transport token may be carried.
type TokenSourceConfig struct {
	// Type is "header" or "query".
	Type string `yaml:"type"`

	// Name is the header or query parameter name.
	Name string `yaml:"name"`

	// Scheme is an optional prefix such as "Bearer".
	Scheme string `yaml:"scheme"`
}

// ServerHandshakeConfig configures handshake validation.
type ServerHandshakeConfig struct {
	// Apps are the registered client applications.
	Apps []AppConfig `yaml:"apps"`

	// MaxSkew bounds the age of handshake timestamps. Zero disables the
	// check.
	// Default: 5m
	MaxSkew time.Duration `yaml:"max_skew"`

	// AllowAnonymous accepts handshakes without an app id.
	// Default: false
	AllowAnonymous bool `yaml:"allow_anonymous"`
}

// AppConfig is one registered client application.
type AppConfig struct {
	ID       string `yaml:"id"`
	Token    string `yaml:"token"`
	Disabled bool   `yaml:"disabled"`

	// Targets restricts the dynamic targets the app may request. Empty
	// means any.
	Targets []string `yaml:"targets"`
}

// RoutingConfig configures the path-rewrite table.
type RoutingConfig struct {
	// File is a YAML or JSON(C) table file. Mutually exclusive with Table.
	File string `yaml:"file"`

	// Table is an inline ordered table.
	Table yaml.Node `yaml:"table"`

	// Env selects per-rule environment overrides.
	Env string `yaml:"env"`

	// Watch reloads File when it changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// Debounce is the quiet period before a reload.
	// Default: 100ms
	Debounce time.Duration `yaml:"debounce"`
}

// HasTable reports whether an inline table was configured.
func (r RoutingConfig) HasTable() bool {
	return r.Table.Kind != 0
}

// JournalConfig configures the access journal.
type JournalConfig struct {
	// Enabled controls whether access records are stored.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite-specific configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Memory contains in-memory storage configuration.
	Memory MemoryConfig `yaml:"memory"`

	// Recorder contains async recorder configuration.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention contains retention policy configuration.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the database file.
	// Default: "data/journal.db"
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// JournalMode is the SQLite journal_mode pragma, e.g. "WAL" or "DELETE".
	// Default: "WAL"
	JournalMode string `yaml:"journal_mode"`

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// MemoryConfig contains in-memory journal configuration.
type MemoryConfig struct {
	// MaxRecords bounds the ring of kept records.
	// Default: 10000
	MaxRecords int `yaml:"max_records"`
}

// RecorderConfig contains async recorder configuration.
type RecorderConfig struct {
	// AsyncBuffer is the size of the write channel.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds one storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RetentionConfig contains retention policy configuration.
type RetentionConfig struct {
	// Days is how long records are kept. Zero keeps them forever.
	// Default: 30
	Days int `yaml:"days"`

	// PruneSchedule is a cron expression.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Health  HealthConfig  `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// Redact masks credentials (app tokens, authorization headers) in logs.
	// Default: true
	Redact *bool `yaml:"redact"`

	// RedactPatterns are extra patterns masked in string values.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path of the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "relay"
	Namespace string `yaml:"namespace"`

	// RequestDurationBuckets are histogram buckets in seconds.
	// Default: [0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// IsEnabled reports whether metrics are enabled.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler is "always", "never" or "ratio".
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is used by the ratio sampler.
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported in traces.
	// Default: "relay"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS to the collector.
	// Default: true
	Insecure *bool `yaml:"insecure"`

	// Timeout bounds one export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// IsInsecure reports whether the collector connection skips TLS.
func (t TracingConfig) IsInsecure() bool {
	return t.Insecure == nil || *t.Insecure
}

// HealthConfig contains health endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the liveness probe path.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the readiness probe path.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout bounds each readiness check.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// Seconds converts a TTL in seconds into a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
