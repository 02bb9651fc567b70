package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"slices"
	"sync"
	"time"

	"relayhq/relay/pkg/envelope"
	"relayhq/relay/pkg/gateway"
)

// App is a registered client application.
type App struct {
	ID       string
	Token    string
	Disabled bool

	// Targets restricts the dynamic targets the app may request. Empty
	// means any.
	Targets []string
}

// RegistryConfig configures an AppRegistry.
type RegistryConfig struct {
	// MaxSkew bounds the distance between the handshake timestamp and the
	// local clock. Zero disables the check.
	MaxSkew time.Duration

	// AllowAnonymous accepts handshakes without an app id. Anonymous
	// callers may not request dynamic targets.
	AllowAnonymous bool

	// Now is the clock (default: time.Now).
	Now func() time.Time
}

// AppRegistry validates handshakes against a set of registered apps. It is
// safe for concurrent use and apps can be changed while it serves.
type AppRegistry struct {
	config RegistryConfig

	mu   sync.RWMutex
	apps map[string]*App
}

// NewAppRegistry creates a registry with the given apps.
func NewAppRegistry(apps []*App, cfg RegistryConfig) *AppRegistry {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := make(map[string]*App, len(apps))
	for _, app := range apps {
		m[app.ID] = app
	}
	return &AppRegistry{config: cfg, apps: m}
}

// Lookup returns the enabled app with the given id.
func (r *AppRegistry) Lookup(id string) (*App, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	app, ok := r.apps[id]
	if !ok {
		return nil, ErrUnknownApp
	}
	if app.Disabled {
		return nil, ErrAppDisabled
	}
	return app, nil
}

// ValidateHandshake implements the relay server's handshake hook.
func (r *AppRegistry) ValidateHandshake(_ context.Context, attrs envelope.Attributes) error {
	hs := attrs.HandShake
	if hs == nil || hs.AppID == "" {
		if !r.config.AllowAnonymous {
			return reject(ErrMissingCredentials)
		}
		if attrs.Target != "" {
			return reject(ErrTargetNotAllowed)
		}
		return r.checkSkew(hs)
	}

	app, err := r.Lookup(hs.AppID)
	if err != nil {
		return reject(err)
	}
	if subtle.ConstantTimeCompare([]byte(hs.AppToken), []byte(app.Token)) != 1 {
		return reject(ErrInvalidToken)
	}
	if err := r.checkSkew(hs); err != nil {
		return err
	}
	if attrs.Target != "" && len(app.Targets) > 0 && !slices.Contains(app.Targets, attrs.Target) {
		return reject(fmt.Errorf("%w: %s", ErrTargetNotAllowed, attrs.Target))
	}
	return nil
}

func (r *AppRegistry) checkSkew(hs *envelope.HandShake) error {
	if r.config.MaxSkew <= 0 || hs == nil {
		return nil
	}
	skew := r.config.Now().Sub(time.UnixMilli(hs.Timestamps))
	if skew < 0 {
		skew = -skew
	}
	if skew > r.config.MaxSkew {
		return reject(ErrStaleHandshake)
	}
	return nil
}

// List returns the registered apps.
func (r *AppRegistry) List() []*App {
	r.mu.RLock()
	defer r.mu.RUnlock()

	apps := make([]*App, 0, len(r.apps))
	for _, app := range r.apps {
		apps = append(apps, app)
	}
	return apps
}

// Add registers app, replacing any app with the same id.
func (r *AppRegistry) Add(app *App) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps[app.ID] = app
}

// Remove unregisters the app with the given id.
func (r *AppRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.apps, id)
}

// Update replaces a registered app.
func (r *AppRegistry) Update(app *App) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.apps[app.ID]; !ok {
		return ErrAppNotFound
	}
	r.apps[app.ID] = app
	return nil
}

// Validator is the handshake hook signature shared with the relay server.
type Validator interface {
	ValidateHandshake(ctx context.Context, attrs envelope.Attributes) error
}

// ChainFunc runs validators in order and returns the first rejection.
type ChainFunc func(ctx context.Context, attrs envelope.Attributes) error

// ValidateHandshake calls f.
func (f ChainFunc) ValidateHandshake(ctx context.Context, attrs envelope.Attributes) error {
	return f(ctx, attrs)
}

// Chain composes validators. Nil entries are skipped.
func Chain(validators ...Validator) ChainFunc {
	return func(ctx context.Context, attrs envelope.Attributes) error {
		for _, v := range validators {
			if v == nil {
				continue
			}
			if err := v.ValidateHandshake(ctx, attrs); err != nil {
				return err
			}
		}
		return nil
	}
}

func reject(cause error) *gateway.Error {
	return gateway.Forbidden(cause.Error(), fmt.Errorf("%w: %w", gateway.ErrHandshakeRejected, cause))
}
