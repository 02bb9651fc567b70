package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // cgo SQLite driver, registered as "sqlite3"
	_ "modernc.org/sqlite"          // pure Go SQLite driver, registered as "sqlite"
)

// Supported SQLite drivers.
const (
	DriverModernc = "sqlite"
	DriverCgo     = "sqlite3"
)

// SQLiteConfig configures a SQLiteStorage.
type SQLiteConfig struct {
	// Driver is "sqlite" (pure Go, default) or "sqlite3" (cgo).
	Driver string

	// Path is the database file. Parent directories are created.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// JournalMode is the SQLite journal mode, e.g. "WAL".
	// Default: WAL
	JournalMode string

	// BusyTimeout is how long to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration
}

func (c *SQLiteConfig) applyDefaults() {
	if c.Driver == "" {
		c.Driver = DriverModernc
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 5
	}
	if c.JournalMode == "" {
		c.JournalMode = "WAL"
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS access_log (
    id TEXT PRIMARY KEY,
    time_ms INTEGER NOT NULL,
    method TEXT NOT NULL,
    path TEXT NOT NULL,
    target TEXT NOT NULL,
    status INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    cache_hit INTEGER NOT NULL,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_access_log_time ON access_log(time_ms);
CREATE INDEX IF NOT EXISTS idx_access_log_target ON access_log(target);
`

// SQLiteStorage writes records to a SQLite database.
type SQLiteStorage struct {
	db     *sql.DB
	config SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database and creates the schema.
func NewSQLiteStorage(cfg SQLiteConfig, logger *slog.Logger) (*SQLiteStorage, error) {
	cfg.applyDefaults()
	if cfg.Path == "" {
		return nil, storageError("sqlite", "open", fmt.Errorf("db path cannot be empty"))
	}
	if cfg.Driver != DriverModernc && cfg.Driver != DriverCgo {
		return nil, storageError("sqlite", "open", fmt.Errorf("unsupported driver %q", cfg.Driver))
	}
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, storageError("sqlite", "mkdir", err)
		}
	}

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, storageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	s := &SQLiteStorage{
		db:     db,
		config: cfg,
		logger: logger.With("component", "journal.sqlite"),
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("SQLite journal initialized",
		"path", cfg.Path,
		"driver", cfg.Driver,
		"journal_mode", cfg.JournalMode,
		"max_open_conns", cfg.MaxOpenConns,
	)
	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA journal_mode=%s;", s.config.JournalMode)); err != nil {
		return storageError("sqlite", "set_journal_mode", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return storageError("sqlite", "set_busy_timeout", err)
	}
	if _, err := s.db.Exec(schema); err != nil {
		return storageError("sqlite", "create_schema", err)
	}
	return nil
}

// Store inserts record.
func (s *SQLiteStorage) Store(ctx context.Context, record *Record) error {
	var errVal any
	if record.Error != "" {
		errVal = record.Error
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO access_log (id, time_ms, method, path, target, status, duration_ms, cache_hit, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Time.UnixMilli(), record.Method, record.Path, record.Target,
		record.Status, record.DurationMs, boolToInt(record.CacheHit), errVal,
	)
	if err != nil {
		return storageError("sqlite", "store", err)
	}
	return nil
}

// Query returns matching records, newest first.
func (s *SQLiteStorage) Query(ctx context.Context, query *Query) ([]*Record, error) {
	where, args := buildWhereClause(query)

	q := "SELECT id, time_ms, method, path, target, status, duration_ms, cache_hit, error FROM access_log"
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY time_ms DESC, id LIMIT ?"
	args = append(args, query.limit())
	if query != nil && query.Offset > 0 {
		q += " OFFSET ?"
		args = append(args, query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*Record{}
	for rows.Next() {
		var (
			r        Record
			timeMs   int64
			cacheHit int
			errVal   sql.NullString
		)
		if err := rows.Scan(&r.ID, &timeMs, &r.Method, &r.Path, &r.Target, &r.Status, &r.DurationMs, &cacheHit, &errVal); err != nil {
			return nil, storageError("sqlite", "scan", err)
		}
		r.Time = time.UnixMilli(timeMs)
		r.CacheHit = cacheHit != 0
		r.Error = errVal.String
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("sqlite", "query", err)
	}
	return records, nil
}

// Count returns the number of matching records.
func (s *SQLiteStorage) Count(ctx context.Context, query *Query) (int64, error) {
	where, args := buildWhereClause(query)
	q := "SELECT COUNT(*) FROM access_log"
	if where != "" {
		q += " WHERE " + where
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, storageError("sqlite", "count", err)
	}
	return n, nil
}

// DeleteBefore removes records older than t.
func (s *SQLiteStorage) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM access_log WHERE time_ms < ?", t.UnixMilli())
	if err != nil {
		return 0, storageError("sqlite", "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageError("sqlite", "delete", err)
	}
	return n, nil
}

// PingContext checks the database connection.
func (s *SQLiteStorage) PingContext(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageError("sqlite", "ping", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func buildWhereClause(query *Query) (string, []any) {
	if query == nil {
		return "", nil
	}

	var (
		conds []string
		args  []any
	)
	if query.Since != nil {
		conds = append(conds, "time_ms >= ?")
		args = append(args, query.Since.UnixMilli())
	}
	if query.Until != nil {
		conds = append(conds, "time_ms <= ?")
		args = append(args, query.Until.UnixMilli())
	}
	if query.Method != "" {
		conds = append(conds, "method = ?")
		args = append(args, query.Method)
	}
	if query.Target != "" {
		conds = append(conds, "target = ?")
		args = append(args, query.Target)
	}
	switch query.Status {
	case "success":
		conds = append(conds, "error IS NULL AND status BETWEEN 200 AND 299")
	case "error":
		conds = append(conds, "(error IS NOT NULL OR status NOT BETWEEN 200 AND 299)")
	}
	return strings.Join(conds, " AND "), args
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
