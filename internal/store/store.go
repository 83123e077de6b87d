package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - fresh database
// 1 - entries table with seq ordering and UNIQUE hash
const currentSchemaVersion = 1

// SQLite is the reference Backend: one embedded database file in WAL mode,
// one row per entry, replayed in seq order.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite creates or opens a SQLite database at the given path,
// creating parent directories as needed. ":memory:" is supported.
//
// The database is configured with:
//   - WAL mode for durable appends and concurrent readers
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//
// Call Initialize before use.
func OpenSQLite(path string) (*SQLite, error) {
	if !isMemoryPath(path) {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, newError(CodeIO, "create data directory", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, newError(CodeDatabase, "open database", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, newError(CodeDatabase, "connect to database", err)
	}

	// SQLite only supports one writer at a time. One connection also keeps
	// a :memory: database alive for the life of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, newError(CodeDatabase, "apply pragmas", err)
	}

	return &SQLite{db: db, path: path}, nil
}

// NewSQLiteFromDB wraps an already-open database. No pragmas are applied.
func NewSQLiteFromDB(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

// Path returns the database path, empty for NewSQLiteFromDB stores.
func (s *SQLite) Path() string {
	return s.path
}

// Close closes the database connection. Safe to call on a nil db.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return newError(CodeDatabase, "close database", err)
	}
	return nil
}

// Initialize creates tables if they don't exist and runs migrations.
func (s *SQLite) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return newError(CodeDatabase, "apply schema", err)
	}
	if err := runMigrations(ctx, s.db); err != nil {
		return newError(CodeDatabase, "run migrations", err)
	}
	return nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
// Only forward migrations within this schema line exist; no cross-engine
// migration is attempted.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	if version == currentSchemaVersion {
		return nil
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *SQLite) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

func (s *SQLite) VerifyIntegrity(ctx context.Context) error {
	return verifyIntegrity(ctx, s)
}

var _ Backend = (*SQLite)(nil)
