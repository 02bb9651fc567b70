package config

import (
	"reflect"
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	tests := []struct {
		name  string
		input Config
		check func(*testing.T, *Config)
	}{
		{
			name:  "empty config gets all defaults",
			input: Config{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Mode != DefaultMode {
					t.Errorf("expected mode %q, got %q", DefaultMode, cfg.Mode)
				}
				if cfg.Listen.Address != DefaultListenAddress {
					t.Errorf("expected listen address %q, got %q", DefaultListenAddress, cfg.Listen.Address)
				}
				if cfg.Listen.WriteTimeout != DefaultWriteTimeout {
					t.Errorf("expected write timeout %v, got %v", DefaultWriteTimeout, cfg.Listen.WriteTimeout)
				}
				if cfg.Listen.MaxBodyBytes != DefaultMaxBodyBytes {
					t.Errorf("expected max body bytes %d, got %d", DefaultMaxBodyBytes, cfg.Listen.MaxBodyBytes)
				}
				if cfg.Gateway.Timeout != DefaultGatewayTimeout {
					t.Errorf("expected gateway timeout %v, got %v", DefaultGatewayTimeout, cfg.Gateway.Timeout)
				}
				if cfg.Gateway.Cache != nil {
					t.Error("cache should stay disabled when absent")
				}
				if cfg.Client.Endpoint != DefaultRelayEndpoint || cfg.Server.Endpoint != DefaultRelayEndpoint {
					t.Errorf("expected relay endpoints %q, got %q and %q",
						DefaultRelayEndpoint, cfg.Client.Endpoint, cfg.Server.Endpoint)
				}
				if cfg.Server.Method != DefaultServerMethod {
					t.Errorf("expected server method %q, got %q", DefaultServerMethod, cfg.Server.Method)
				}
				if cfg.Server.Handshake.MaxSkew != DefaultHandshakeMaxSkew {
					t.Errorf("expected max skew %v, got %v", DefaultHandshakeMaxSkew, cfg.Server.Handshake.MaxSkew)
				}
				if cfg.Journal.Backend != DefaultJournalBackend {
					t.Errorf("expected journal backend %q, got %q", DefaultJournalBackend, cfg.Journal.Backend)
				}
				if cfg.Journal.SQLite.JournalMode != DefaultSQLiteJournalMode {
					t.Errorf("expected journal mode %q, got %q", DefaultSQLiteJournalMode, cfg.Journal.SQLite.JournalMode)
				}
				if cfg.Journal.Retention.PruneSchedule != DefaultRetentionSchedule {
					t.Errorf("expected prune schedule %q, got %q", DefaultRetentionSchedule, cfg.Journal.Retention.PruneSchedule)
				}
				if cfg.Telemetry.Logging.Redact == nil || !*cfg.Telemetry.Logging.Redact {
					t.Error("expected redaction enabled by default")
				}
				if !cfg.Telemetry.Metrics.IsEnabled() {
					t.Error("expected metrics enabled by default")
				}
				if len(cfg.Telemetry.Metrics.RequestDurationBuckets) != len(DefaultRequestDurationBuckets) {
					t.Errorf("expected %d buckets, got %d",
						len(DefaultRequestDurationBuckets), len(cfg.Telemetry.Metrics.RequestDurationBuckets))
				}
				if !cfg.Telemetry.Tracing.IsInsecure() {
					t.Error("expected insecure tracing by default")
				}
				if cfg.Telemetry.Health.ReadinessPath != DefaultReadinessPath {
					t.Errorf("expected readiness path %q, got %q", DefaultReadinessPath, cfg.Telemetry.Health.ReadinessPath)
				}
			},
		},
		{
			name: "existing values are preserved",
			input: Config{
				Mode:   ModeClient,
				Listen: ListenConfig{Address: ":9000", ReadTimeout: 5 * time.Second},
				Client: ClientConfig{Endpoint: "/broker"},
				Journal: JournalConfig{
					Backend: "memory",
					SQLite:  SQLiteConfig{JournalMode: "DELETE"},
				},
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Mode != ModeClient {
					t.Errorf("expected mode %q, got %q", ModeClient, cfg.Mode)
				}
				if cfg.Listen.Address != ":9000" {
					t.Errorf("expected address :9000, got %q", cfg.Listen.Address)
				}
				if cfg.Listen.ReadTimeout != 5*time.Second {
					t.Errorf("expected read timeout 5s, got %v", cfg.Listen.ReadTimeout)
				}
				if cfg.Client.Endpoint != "/broker" {
					t.Errorf("expected endpoint /broker, got %q", cfg.Client.Endpoint)
				}
				if cfg.Journal.Backend != "memory" {
					t.Errorf("expected memory backend, got %q", cfg.Journal.Backend)
				}
				if cfg.Journal.SQLite.JournalMode != "DELETE" {
					t.Errorf("expected journal mode DELETE, got %q", cfg.Journal.SQLite.JournalMode)
				}
			},
		},
		{
			name:  "cache max entries defaulted only when cache is present",
			input: Config{Gateway: GatewayConfig{Cache: &CacheConfig{OK: 5}}},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Gateway.Cache.MaxEntries != DefaultCacheMaxEntries {
					t.Errorf("expected max entries %d, got %d", DefaultCacheMaxEntries, cfg.Gateway.Cache.MaxEntries)
				}
				if cfg.Gateway.Cache.Error != 0 || cfg.Gateway.Cache.Fatal != 0 {
					t.Error("zero TTLs must stay zero")
				}
			},
		},
		{
			name: "explicit false survives",
			input: Config{Telemetry: TelemetryConfig{
				Logging: LoggingConfig{Redact: new(bool)},
				Metrics: MetricsConfig{Enabled: new(bool)},
			}},
			check: func(t *testing.T, cfg *Config) {
				if *cfg.Telemetry.Logging.Redact {
					t.Error("explicit redact=false was overwritten")
				}
				if cfg.Telemetry.Metrics.IsEnabled() {
					t.Error("explicit metrics.enabled=false was overwritten")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.input
			ApplyDefaults(&cfg)
			tt.check(t, &cfg)
		})
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := Config{}
	ApplyDefaults(&cfg)
	first := cfg
	ApplyDefaults(&cfg)

	if !reflect.DeepEqual(cfg.Listen, first.Listen) {
		t.Errorf("listen config changed on second pass: %+v vs %+v", cfg.Listen, first.Listen)
	}
	if !reflect.DeepEqual(cfg.Journal.SQLite, first.Journal.SQLite) {
		t.Errorf("sqlite config changed on second pass")
	}
}

func TestApplyDefaults_BucketsAreCopied(t *testing.T) {
	cfg := Config{}
	ApplyDefaults(&cfg)
	cfg.Telemetry.Metrics.RequestDurationBuckets[0] = 99

	if DefaultRequestDurationBuckets[0] == 99 {
		t.Error("defaults slice was aliased")
	}
}
