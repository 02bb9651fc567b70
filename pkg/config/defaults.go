package config

import "time"

// Default values for configuration fields.
const (
	// Mode default
	DefaultMode = ModeRouter

	// Listen defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 90 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20
	DefaultMaxBodyBytes    = int64(10 << 20)
	DefaultCORSMaxAge      = 3600

	// Gateway defaults
	DefaultGatewayTimeout   = 60 * time.Second
	DefaultMaxResponseBytes = int64(32 << 20)
	DefaultCacheMaxEntries  = 1000

	// Client / server defaults
	DefaultRelayEndpoint    = "/api/relay"
	DefaultServerMethod     = "POST"
	DefaultHandshakeMaxSkew = 5 * time.Minute
	DefaultRoutingDebounce  = 100 * time.Millisecond

	// Journal defaults
	DefaultJournalBackend       = "sqlite"
	DefaultSQLiteDriver         = "sqlite"
	DefaultSQLitePath           = "data/journal.db"
	DefaultSQLiteMaxOpenConns   = 10
	DefaultSQLiteMaxIdleConns   = 5
	DefaultSQLiteJournalMode    = "WAL"
	DefaultSQLiteBusyTimeout    = 5 * time.Second
	DefaultMemoryMaxRecords     = 10000
	DefaultRecorderAsyncBuffer  = 1000
	DefaultRecorderWriteTimeout = 5 * time.Second
	DefaultRetentionDays        = 30
	DefaultRetentionSchedule    = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "relay"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingServiceName = "relay"
	DefaultTracingTimeout     = 10 * time.Second
	DefaultLivenessPath       = "/health"
	DefaultReadinessPath      = "/ready"
	DefaultHealthCheckTimeout = 5 * time.Second
)

// DefaultCORSMethods are the methods answered in preflight responses.
var DefaultCORSMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}

// DefaultRequestDurationBuckets are the latency histogram buckets in seconds.
var DefaultRequestDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// ApplyDefaults fills zero-valued fields with defaults. It is idempotent.
func ApplyDefaults(cfg *Config) {
	if cfg.Mode == "" {
		cfg.Mode = DefaultMode
	}

	// Listen defaults
	if cfg.Listen.Address == "" {
		cfg.Listen.Address = DefaultListenAddress
	}
	if cfg.Listen.ReadTimeout == 0 {
		cfg.Listen.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Listen.WriteTimeout == 0 {
		cfg.Listen.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Listen.IdleTimeout == 0 {
		cfg.Listen.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Listen.ShutdownTimeout == 0 {
		cfg.Listen.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Listen.MaxHeaderBytes == 0 {
		cfg.Listen.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Listen.MaxBodyBytes == 0 {
		cfg.Listen.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Listen.CORS.Enabled {
		if len(cfg.Listen.CORS.AllowedMethods) == 0 {
			cfg.Listen.CORS.AllowedMethods = append([]string(nil), DefaultCORSMethods...)
		}
		if cfg.Listen.CORS.MaxAge == 0 {
			cfg.Listen.CORS.MaxAge = DefaultCORSMaxAge
		}
	}

	if rl := &cfg.Listen.RateLimit; rl.Enabled && rl.Burst == 0 && rl.RequestsPerSecond > 0 {
		rl.Burst = max(1, int(rl.RequestsPerSecond*2))
	}

	// Gateway defaults
	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = DefaultGatewayTimeout
	}
	if cfg.Gateway.MaxResponseBytes == 0 {
		cfg.Gateway.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if cfg.Gateway.Cache != nil && cfg.Gateway.Cache.MaxEntries == 0 {
		cfg.Gateway.Cache.MaxEntries = DefaultCacheMaxEntries
	}

	// Client defaults
	if cfg.Client.Endpoint == "" {
		cfg.Client.Endpoint = DefaultRelayEndpoint
	}
	if cfg.Client.ClientEndpoint == "" {
		cfg.Client.ClientEndpoint = DefaultRelayEndpoint
	}

	// Server defaults
	if cfg.Server.Endpoint == "" {
		cfg.Server.Endpoint = DefaultRelayEndpoint
	}
	if cfg.Server.Method == "" {
		cfg.Server.Method = DefaultServerMethod
	}
	if cfg.Server.Handshake.MaxSkew == 0 {
		cfg.Server.Handshake.MaxSkew = DefaultHandshakeMaxSkew
	}
	if cfg.Server.Auth.Enabled && len(cfg.Server.Auth.Sources) == 0 {
		cfg.Server.Auth.Sources = []TokenSourceConfig{
			{Type: "header", Name: "Authorization", Scheme: "Bearer"},
		}
	}

	// Routing defaults
	if cfg.Routing.Debounce == 0 {
		cfg.Routing.Debounce = DefaultRoutingDebounce
	}

	applyJournalDefaults(&cfg.Journal)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyJournalDefaults(cfg *JournalConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultJournalBackend
	}
	if cfg.SQLite.Driver == "" {
		cfg.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultSQLitePath
	}
	if cfg.SQLite.MaxOpenConns == 0 {
		cfg.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.SQLite.MaxIdleConns == 0 {
		cfg.SQLite.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if cfg.SQLite.JournalMode == "" {
		cfg.SQLite.JournalMode = DefaultSQLiteJournalMode
	}
	if cfg.SQLite.BusyTimeout == 0 {
		cfg.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Memory.MaxRecords == 0 {
		cfg.Memory.MaxRecords = DefaultMemoryMaxRecords
	}
	if cfg.Recorder.AsyncBuffer == 0 {
		cfg.Recorder.AsyncBuffer = DefaultRecorderAsyncBuffer
	}
	if cfg.Recorder.WriteTimeout == 0 {
		cfg.Recorder.WriteTimeout = DefaultRecorderWriteTimeout
	}
	if cfg.Retention.Days == 0 {
		cfg.Retention.Days = DefaultRetentionDays
	}
	if cfg.Retention.PruneSchedule == "" {
		cfg.Retention.PruneSchedule = DefaultRetentionSchedule
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Logging.Redact == nil {
		redact := true
		cfg.Logging.Redact = &redact
	}

	// Metrics
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Metrics.RequestDurationBuckets) == 0 {
		cfg.Metrics.RequestDurationBuckets = append([]float64(nil), DefaultRequestDurationBuckets...)
	}

	// Tracing
	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Tracing.Timeout == 0 {
		cfg.Tracing.Timeout = DefaultTracingTimeout
	}

	// Health
	if cfg.Health.LivenessPath == "" {
		cfg.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Health.ReadinessPath == "" {
		cfg.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Health.CheckTimeout == 0 {
		cfg.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
