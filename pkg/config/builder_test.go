package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg Config
}

// NewTestConfig returns a builder for a valid server-mode configuration with
// one registered app.
func NewTestConfig() *ConfigBuilder {
	cfg := Config{
		Mode: ModeServer,
		Gateway: GatewayConfig{
			Target: "https://api.example.com",
		},
		Server: ServerConfig{
			Handshake: ServerHandshakeConfig{
				Apps: []AppConfig{{ID: "app-1", Token: "secret-1"}},
			},
		},
	}
	ApplyDefaults(&cfg)
	return &ConfigBuilder{cfg: cfg}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return &b.cfg
}

func (b *ConfigBuilder) WithMode(mode string) *ConfigBuilder {
	b.cfg.Mode = mode
	return b
}

func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Listen.Address = addr
	return b
}

func (b *ConfigBuilder) WithReadTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.Listen.ReadTimeout = d
	return b
}

func (b *ConfigBuilder) WithTarget(target string) *ConfigBuilder {
	b.cfg.Gateway.Target = target
	return b
}

// WithCache enables caching with the given TTLs in seconds.
func (b *ConfigBuilder) WithCache(ok, errTTL, fatal int) *ConfigBuilder {
	b.cfg.Gateway.Cache = &CacheConfig{OK: ok, Error: errTTL, Fatal: fatal, MaxEntries: DefaultCacheMaxEntries}
	return b
}

func (b *ConfigBuilder) WithApp(app AppConfig) *ConfigBuilder {
	b.cfg.Server.Handshake.Apps = append(b.cfg.Server.Handshake.Apps, app)
	return b
}

func (b *ConfigBuilder) WithRegistry(registry string) *ConfigBuilder {
	b.cfg.Client.Registry = registry
	return b
}

func (b *ConfigBuilder) WithRoutingFile(path string) *ConfigBuilder {
	b.cfg.Routing.File = path
	return b
}

// WithJournal enables the journal with the given backend.
func (b *ConfigBuilder) WithJournal(backend string) *ConfigBuilder {
	b.cfg.Journal.Enabled = true
	b.cfg.Journal.Backend = backend
	return b
}

func (b *ConfigBuilder) WithLogLevel(level string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	return b
}

// MinimalConfig returns a minimal valid configuration for testing.
func MinimalConfig() *Config {
	return NewTestConfig().Build()
}
