package journal

import (
	"fmt"
	"log/slog"
)

// Supported backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config selects and configures a storage backend.
type Config struct {
	// Backend is "memory" or "sqlite".
	Backend string

	SQLite SQLiteConfig
	Memory MemoryConfig
}

// Open creates the configured backend.
func Open(cfg Config, logger *slog.Logger) (Storage, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStorage(cfg.Memory), nil
	case BackendSQLite, "":
		return NewSQLiteStorage(cfg.SQLite, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
