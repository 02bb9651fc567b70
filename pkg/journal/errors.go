package journal

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by a storage or recorder after Close.
	ErrClosed = errors.New("journal closed")

	// ErrUnknownBackend is returned by Open for an unsupported backend.
	ErrUnknownBackend = errors.New("unknown journal backend")
)

// StorageError represents an error from a storage backend.
type StorageError struct {
	Backend   string // "memory", "sqlite"
	Operation string // "store", "query", "delete", ...
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("journal storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

func storageError(backend, op string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: op, Cause: cause}
}
