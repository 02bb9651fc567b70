package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from the YAML file at path, applies
// defaults and validates the result. Environment variables are ignored; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// RELAY_SECTION_FIELD environment variable overrides (e.g.
// RELAY_GATEWAY_TARGET). Environment variables take precedence over the file.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	// Overrides can enable sections whose defaults were skipped.
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration from data and applies defaults without
// validating.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// applyEnvOverrides applies RELAY_* environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	setString("RELAY_MODE", &cfg.Mode)

	// Listen overrides
	setString("RELAY_LISTEN_ADDRESS", &cfg.Listen.Address)
	setDuration("RELAY_LISTEN_READ_TIMEOUT", &cfg.Listen.ReadTimeout)
	setDuration("RELAY_LISTEN_WRITE_TIMEOUT", &cfg.Listen.WriteTimeout)
	setDuration("RELAY_LISTEN_SHUTDOWN_TIMEOUT", &cfg.Listen.ShutdownTimeout)
	setString("RELAY_LISTEN_SPOOL_DIR", &cfg.Listen.SpoolDir)
	setBool("RELAY_LISTEN_RATE_LIMIT_ENABLED", &cfg.Listen.RateLimit.Enabled)
	setInt("RELAY_LISTEN_RATE_LIMIT_MAX_CONCURRENT", &cfg.Listen.RateLimit.MaxConcurrent)

	// Gateway overrides
	setString("RELAY_GATEWAY_TARGET", &cfg.Gateway.Target)
	setBool("RELAY_GATEWAY_ENABLE_DYNAMIC_TARGET", &cfg.Gateway.EnableDynamicTarget)
	setDuration("RELAY_GATEWAY_TIMEOUT", &cfg.Gateway.Timeout)

	// Client overrides
	setString("RELAY_CLIENT_REGISTRY", &cfg.Client.Registry)
	setString("RELAY_CLIENT_ENDPOINT", &cfg.Client.Endpoint)
	setString("RELAY_CLIENT_CLIENT_ENDPOINT", &cfg.Client.ClientEndpoint)
	setString("RELAY_CLIENT_HANDSHAKE_APP_ID", &cfg.Client.Handshake.AppID)
	setString("RELAY_CLIENT_HANDSHAKE_APP_TOKEN", &cfg.Client.Handshake.AppToken)
	setString("RELAY_CLIENT_TARGET", &cfg.Client.Target)

	// Server overrides
	setString("RELAY_SERVER_ENDPOINT", &cfg.Server.Endpoint)
	setDuration("RELAY_SERVER_HANDSHAKE_MAX_SKEW", &cfg.Server.Handshake.MaxSkew)
	setBool("RELAY_SERVER_AUTH_ENABLED", &cfg.Server.Auth.Enabled)
	if val := os.Getenv("RELAY_SERVER_AUTH_TOKENS"); val != "" {
		cfg.Server.Auth.Tokens = splitList(val)
	}

	// Routing overrides
	setString("RELAY_ROUTING_FILE", &cfg.Routing.File)
	setBool("RELAY_ROUTING_WATCH", &cfg.Routing.Watch)
	setString("RELAY_ENV", &cfg.Routing.Env)
	setString("RELAY_ROUTING_ENV", &cfg.Routing.Env)

	// Journal overrides
	setBool("RELAY_JOURNAL_ENABLED", &cfg.Journal.Enabled)
	setString("RELAY_JOURNAL_BACKEND", &cfg.Journal.Backend)
	setString("RELAY_JOURNAL_SQLITE_DRIVER", &cfg.Journal.SQLite.Driver)
	setString("RELAY_JOURNAL_SQLITE_PATH", &cfg.Journal.SQLite.Path)
	setInt("RELAY_JOURNAL_RETENTION_DAYS", &cfg.Journal.Retention.Days)

	// Telemetry overrides
	setString("RELAY_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	setString("RELAY_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	if val := os.Getenv("RELAY_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = &b
		}
	}
	setString("RELAY_TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	setBool("RELAY_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	setString("RELAY_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	if val := os.Getenv("RELAY_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func setString(name string, dst *string) {
	if val := os.Getenv(name); val != "" {
		*dst = val
	}
}

func setBool(name string, dst *bool) {
	if val := os.Getenv(name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func setInt(name string, dst *int) {
	if val := os.Getenv(name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func setDuration(name string, dst *time.Duration) {
	if val := os.Getenv(name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

// splitList splits a comma-separated value, dropping empty items.
func splitList(val string) []string {
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
