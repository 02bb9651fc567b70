package auth

import "errors"

var (
	// ErrMissingCredentials is returned when a handshake carries no app id
	// and anonymous access is off.
	ErrMissingCredentials = errors.New("missing app credentials")

	// ErrUnknownApp is returned for an app id that is not registered.
	ErrUnknownApp = errors.New("unknown app")

	// ErrAppDisabled is returned for a registered but disabled app.
	ErrAppDisabled = errors.New("app disabled")

	// ErrInvalidToken is returned when the app token does not match.
	ErrInvalidToken = errors.New("invalid app token")

	// ErrStaleHandshake is returned when the handshake timestamp is outside
	// the allowed skew.
	ErrStaleHandshake = errors.New("stale handshake")

	// ErrTargetNotAllowed is returned when an app requests a dynamic target
	// it is not allowed to use.
	ErrTargetNotAllowed = errors.New("target not allowed")

	// ErrAppNotFound is returned by Update for an unregistered app.
	ErrAppNotFound = errors.New("app not found")
)
