package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Common gateway errors that can be checked with errors.Is().
var (
	// ErrNoTarget is returned when no upstream target can be resolved.
	ErrNoTarget = errors.New("no upstream target configured")

	// ErrNoRouteMatched is returned when no path-rewrite rule matches. It
	// maps to 404 so HTTP adapters can fall through to the next handler.
	ErrNoRouteMatched = errors.New("none matched")

	// ErrHandshakeRejected is returned when a handshake validator refuses a
	// request. It maps to 403.
	ErrHandshakeRejected = errors.New("handshake rejected")
)

// Error is a gateway failure carrying an HTTP status.
type Error struct {
	// Status is the HTTP status reported to the caller.
	Status int

	// Message is the caller-facing message.
	Message string

	// Method and Path identify the request for diagnostics.
	Method string
	Path   string

	// Cached is set when the error was replayed from the failure cache.
	Cached bool

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Method != "" || e.Path != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
	}
	return fmt.Sprintf("%d %s", e.Status, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound builds the routing failure for path.
func NotFound(method, path string) *Error {
	return &Error{
		Status:  http.StatusNotFound,
		Message: "None Matched",
		Method:  method,
		Path:    path,
		Err:     ErrNoRouteMatched,
	}
}

// Forbidden builds a handshake failure.
func Forbidden(message string, cause error) *Error {
	if message == "" {
		message = "Forbidden"
	}
	if cause == nil {
		cause = ErrHandshakeRejected
	}
	return &Error{
		Status:  http.StatusForbidden,
		Message: message,
		Err:     cause,
	}
}

// StatusOf returns the HTTP status carried by err: the status of a wrapped
// *Error, 404 for ErrNoRouteMatched, 403 for ErrHandshakeRejected and 500
// otherwise.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var ge *Error
	if errors.As(err, &ge) && ge.Status != 0 {
		return ge.Status
	}
	switch {
	case errors.Is(err, ErrNoRouteMatched):
		return http.StatusNotFound
	case errors.Is(err, ErrHandshakeRejected):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// MessageOf returns the caller-facing message of err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var ge *Error
	if errors.As(err, &ge) && ge.Message != "" {
		return ge.Message
	}
	return err.Error()
}

// IsNotFound reports whether err is a routing miss.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound && errors.Is(err, ErrNoRouteMatched)
}
