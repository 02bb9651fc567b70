package relay

import "errors"

var (
	// ErrNoRegistry is returned when a client has no broker URL.
	ErrNoRegistry = errors.New("registry is required")

	// ErrNoEndpoint is returned when a client has no broker endpoint.
	ErrNoEndpoint = errors.New("endpoint is required")

	// ErrNoValidator is returned when a server is built without a handshake
	// validator.
	ErrNoValidator = errors.New("handshake validator is required")
)
