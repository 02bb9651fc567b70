package config

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// current is the process-wide configuration. Components receive their
// configuration explicitly; the singleton serves the CLI and reloads.
var (
	current  atomic.Pointer[Config]
	loadedAt atomic.Pointer[string]
	initOnce sync.Once
)

// Initialize loads path with RELAY_* overrides and installs the result.
// Only the first call has an effect.
func Initialize(path string) error {
	var initErr error
	initOnce.Do(func() {
		initErr = install(path)
	})
	return initErr
}

// GetConfig returns the installed configuration, or nil.
func GetConfig() *Config {
	return current.Load()
}

// SetConfig installs cfg. It does not change the path used by
// ReloadConfig.
func SetConfig(cfg *Config) {
	current.Store(cfg)
}

// ReloadConfig loads path and installs it. An empty path reloads the file
// given to Initialize. On failure the installed configuration is kept.
func ReloadConfig(path string) error {
	if path == "" {
		p := loadedAt.Load()
		if p == nil {
			return errors.New("failed to reload configuration: no file loaded")
		}
		path = *p
	}
	if err := install(path); err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	return nil
}

// MustGetConfig is GetConfig for callers that cannot run without one.
func MustGetConfig() *Config {
	cfg := current.Load()
	if cfg == nil {
		panic("configuration not initialized: call Initialize first")
	}
	return cfg
}

func install(path string) error {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return err
	}
	current.Store(cfg)
	loadedAt.Store(&path)
	return nil
}
