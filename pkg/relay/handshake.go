package relay

import (
	"context"

	"relayhq/relay/pkg/envelope"
)

// HandshakeValidator decides whether an envelope may be forwarded.
// Returning a *gateway.Error with a 4xx status rejects the request with that
// status; any other error rejects it with 403.
type HandshakeValidator interface {
	ValidateHandshake(ctx context.Context, attrs envelope.Attributes) error
}

// HandshakeFunc adapts a function to HandshakeValidator.
type HandshakeFunc func(ctx context.Context, attrs envelope.Attributes) error

// ValidateHandshake calls f.
func (f HandshakeFunc) ValidateHandshake(ctx context.Context, attrs envelope.Attributes) error {
	return f(ctx, attrs)
}

// HandshakeRecorder is implemented by metrics collectors that count
// handshake decisions. The gateway.Metrics passed in gateway.Options is
// checked for it.
type HandshakeRecorder interface {
	RecordHandshake(result string)
}

// Handshake results reported to a HandshakeRecorder.
const (
	HandshakeAccepted = "accepted"
	HandshakeRejected = "rejected"
)
