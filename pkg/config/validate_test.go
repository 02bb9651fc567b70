package config

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(MinimalConfig()); err != nil {
		t.Errorf("expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := MinimalConfig()
	cfg.Listen.Address = ""
	cfg.Gateway.Target = ""
	cfg.Telemetry.Logging.Level = "verbose"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation to fail")
	}

	validationErr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(validationErr.Errors) != 3 {
		t.Errorf("expected 3 errors, got %d: %v", len(validationErr.Errors), validationErr.Errors)
	}
	if !strings.Contains(validationErr.Error(), "validation failed with 3 errors") {
		t.Errorf("error message should count errors: %s", validationErr.Error())
	}
}

// fieldErrors validates cfg and returns the failed field names.
func fieldErrors(t *testing.T, cfg *Config) []string {
	t.Helper()
	err := Validate(cfg)
	if err == nil {
		return nil
	}
	verr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	var fields []string
	for _, fe := range verr.Errors {
		fields = append(fields, fe.Field)
	}
	return fields
}

func assertFields(t *testing.T, got []string, wantField string) {
	t.Helper()
	if wantField == "" {
		if len(got) > 0 {
			t.Errorf("expected no errors, got %v", got)
		}
		return
	}
	for _, f := range got {
		if f == wantField {
			return
		}
	}
	t.Errorf("expected error on %q, got %v", wantField, got)
}

func TestValidate_Mode(t *testing.T) {
	cfg := MinimalConfig()
	cfg.Mode = "bridge"
	assertFields(t, fieldErrors(t, cfg), "mode")
}

func TestValidate_CORS(t *testing.T) {
	tests := []struct {
		name      string
		cors      CORSConfig
		wantField string
	}{
		{"disabled", CORSConfig{}, ""},
		{"enabled with origin", CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}}, ""},
		{"enabled without origins", CORSConfig{Enabled: true}, "listen.cors.allowed_origins"},
		{"negative max age", CORSConfig{MaxAge: -1}, "listen.cors.max_age"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := MinimalConfig()
			cfg.Listen.CORS = tt.cors
			assertFields(t, fieldErrors(t, cfg), tt.wantField)
		})
	}
}

func TestValidate_RateLimit(t *testing.T) {
	tests := []struct {
		name      string
		rl        RateLimitConfig
		wantField string
	}{
		{"disabled", RateLimitConfig{}, ""},
		{"rate only", RateLimitConfig{Enabled: true, RequestsPerSecond: 5}, ""},
		{"concurrency only", RateLimitConfig{Enabled: true, MaxConcurrent: 2}, ""},
		{"enabled without limits", RateLimitConfig{Enabled: true}, "listen.rate_limit"},
		{"negative rate", RateLimitConfig{RequestsPerSecond: -1}, "listen.rate_limit.requests_per_second"},
		{"negative burst", RateLimitConfig{Burst: -1}, "listen.rate_limit.burst"},
		{"negative concurrency", RateLimitConfig{MaxConcurrent: -1}, "listen.rate_limit.max_concurrent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := MinimalConfig()
			cfg.Listen.RateLimit = tt.rl
			assertFields(t, fieldErrors(t, cfg), tt.wantField)
		})
	}
}

func TestValidate_Gateway(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing target", func(c *Config) { c.Gateway.Target = "" }, "gateway.target"},
		{"dynamic target without default", func(c *Config) {
			c.Gateway.Target = ""
			c.Gateway.EnableDynamicTarget = true
		}, ""},
		{"non-http target", func(c *Config) { c.Gateway.Target = "ftp://example.com" }, "gateway.target"},
		{"target without host", func(c *Config) { c.Gateway.Target = "http://" }, "gateway.target"},
		{"negative timeout", func(c *Config) { c.Gateway.Timeout = -1 }, "gateway.timeout"},
		{"negative ok ttl", func(c *Config) { c.Gateway.Cache = &CacheConfig{OK: -1} }, "gateway.cache.ok"},
		{"negative error ttl", func(c *Config) { c.Gateway.Cache = &CacheConfig{Error: -1} }, "gateway.cache.error"},
		{"negative fatal ttl", func(c *Config) { c.Gateway.Cache = &CacheConfig{Fatal: -1} }, "gateway.cache.fatal"},
		{"zero ttls allowed", func(c *Config) { c.Gateway.Cache = &CacheConfig{} }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := MinimalConfig()
			tt.mutate(cfg)
			assertFields(t, fieldErrors(t, cfg), tt.wantField)
		})
	}
}

func TestValidate_Client(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing registry", func(c *Config) { c.Client.Registry = "" }, "client.registry"},
		{"bad registry", func(c *Config) { c.Client.Registry = "relay.example.com" }, "client.registry"},
		{"relative endpoint", func(c *Config) { c.Client.Endpoint = "api/relay" }, "client.endpoint"},
		{"relative client endpoint", func(c *Config) { c.Client.ClientEndpoint = "relay" }, "client.client_endpoint"},
		{"bad target", func(c *Config) { c.Client.Target = "::" }, "client.target"},
		{"gateway target not required", func(c *Config) { c.Gateway.Target = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTestConfig().WithMode(ModeClient).WithRegistry("https://relay.example.com").Build()
			tt.mutate(cfg)
			assertFields(t, fieldErrors(t, cfg), tt.wantField)
		})
	}
}

func TestValidate_Server(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"valid", func(*Config) {}, ""},
		{"no apps", func(c *Config) { c.Server.Handshake.Apps = nil }, "server.handshake.apps"},
		{"anonymous", func(c *Config) {
			c.Server.Handshake.Apps = nil
			c.Server.Handshake.AllowAnonymous = true
		}, ""},
		{"missing id", func(c *Config) {
			c.Server.Handshake.Apps = append(c.Server.Handshake.Apps, AppConfig{Token: "x"})
		}, "server.handshake.apps[1].id"},
		{"duplicate id", func(c *Config) {
			c.Server.Handshake.Apps = append(c.Server.Handshake.Apps, AppConfig{ID: "app-1", Token: "x"})
		}, "server.handshake.apps[1].id"},
		{"missing token", func(c *Config) {
			c.Server.Handshake.Apps = append(c.Server.Handshake.Apps, AppConfig{ID: "app-2"})
		}, "server.handshake.apps[1].token"},
		{"negative skew", func(c *Config) { c.Server.Handshake.MaxSkew = -1 }, "server.handshake.max_skew"},
		{"relative endpoint", func(c *Config) { c.Server.Endpoint = "relay" }, "server.endpoint"},
		{"auth without tokens", func(c *Config) { c.Server.Auth.Enabled = true }, "server.auth.tokens"},
		{"auth bad source", func(c *Config) {
			c.Server.Auth = TransportAuthConfig{
				Enabled: true,
				Tokens:  []string{"t"},
				Sources: []TokenSourceConfig{{Type: "cookie", Name: "sid"}},
			}
		}, "server.auth.sources[0].type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := MinimalConfig()
			tt.mutate(cfg)
			assertFields(t, fieldErrors(t, cfg), tt.wantField)
		})
	}
}

func TestValidate_Routing(t *testing.T) {
	var table yaml.Node
	if err := yaml.Unmarshal([]byte("/a:\n  target: https://a.example.com\n"), &table); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"file", func(c *Config) { c.Routing.File = "routes.yaml" }, ""},
		{"inline table", func(c *Config) { c.Routing.Table = table }, ""},
		{"neither", func(*Config) {}, "routing"},
		{"both", func(c *Config) {
			c.Routing.File = "routes.yaml"
			c.Routing.Table = table
		}, "routing"},
		{"watch without file", func(c *Config) {
			c.Routing.Table = table
			c.Routing.Watch = true
		}, "routing.watch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTestConfig().WithMode(ModeRouter).WithTarget("").Build()
			tt.mutate(cfg)
			assertFields(t, fieldErrors(t, cfg), tt.wantField)
		})
	}
}

func TestValidate_Journal(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"disabled ignores backend", func(c *Config) { c.Journal.Backend = "postgres" }, ""},
		{"sqlite", func(c *Config) { c.Journal.Enabled = true }, ""},
		{"memory", func(c *Config) {
			c.Journal.Enabled = true
			c.Journal.Backend = "memory"
		}, ""},
		{"unknown backend", func(c *Config) {
			c.Journal.Enabled = true
			c.Journal.Backend = "postgres"
		}, "journal.backend"},
		{"cgo driver", func(c *Config) {
			c.Journal.Enabled = true
			c.Journal.SQLite.Driver = "sqlite3"
		}, ""},
		{"unknown driver", func(c *Config) {
			c.Journal.Enabled = true
			c.Journal.SQLite.Driver = "pgx"
		}, "journal.sqlite.driver"},
		{"journal mode", func(c *Config) {
			c.Journal.Enabled = true
			c.Journal.SQLite.JournalMode = "fast"
		}, "journal.sqlite.journal_mode"},
		{"lowercase journal mode", func(c *Config) {
			c.Journal.Enabled = true
			c.Journal.SQLite.JournalMode = "delete"
		}, ""},
		{"bad cron", func(c *Config) {
			c.Journal.Enabled = true
			c.Journal.Retention.PruneSchedule = "every night"
		}, "journal.retention.prune_schedule"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := MinimalConfig()
			tt.mutate(cfg)
			assertFields(t, fieldErrors(t, cfg), tt.wantField)
		})
	}
}

func TestValidate_Telemetry(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"bad level", func(c *Config) { c.Telemetry.Logging.Level = "trace" }, "telemetry.logging.level"},
		{"bad format", func(c *Config) { c.Telemetry.Logging.Format = "xml" }, "telemetry.logging.format"},
		{"bad redact pattern", func(c *Config) {
			c.Telemetry.Logging.RedactPatterns = []RedactPattern{{Name: "broken", Pattern: "("}}
		}, "telemetry.logging.redact_patterns[0].pattern"},
		{"metrics path", func(c *Config) { c.Telemetry.Metrics.Path = "metrics" }, "telemetry.metrics.path"},
		{"sampler", func(c *Config) { c.Telemetry.Tracing.Sampler = "sometimes" }, "telemetry.tracing.sampler"},
		{"ratio", func(c *Config) { c.Telemetry.Tracing.SampleRatio = 1.5 }, "telemetry.tracing.sample_ratio"},
		{"tracing endpoint", func(c *Config) {
			c.Telemetry.Tracing.Enabled = true
			c.Telemetry.Tracing.Endpoint = ""
		}, "telemetry.tracing.endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := MinimalConfig()
			tt.mutate(cfg)
			assertFields(t, fieldErrors(t, cfg), tt.wantField)
		})
	}
}

func TestFieldError_Error(t *testing.T) {
	err := FieldError{Field: "gateway.target", Message: "target is required"}
	if got, want := err.Error(), "gateway.target: target is required"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	single := ValidationError{Errors: []FieldError{err}}
	if !strings.HasPrefix(single.Error(), "configuration validation failed: gateway.target") {
		t.Errorf("unexpected single error message %q", single.Error())
	}
}
