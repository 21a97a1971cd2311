package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/poiesic/wikidump/storage"
)

// Store owns the SQLite connection shared by the repositories.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	closed atomic.Bool
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// openDatabase opens a SQLite database with WAL and a busy timeout.
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// A single connection serialises writers inside the process and keeps
	// ":memory:" databases alive for the life of the pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Open opens or creates the database at dbPath and applies migrations.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	logger := slog.Default().With("component", "sqlite", "driver", DriverName)
	logger.Debug("database opened", "path", dbPath, "mode", BuildMode)
	return &Store{db: db, logger: logger}, nil
}

// OpenMemory opens a private in-memory database.
func OpenMemory(ctx context.Context) (*Store, error) {
	return Open(ctx, ":memory:")
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// IsClosed returns true if the store is closed.
func (s *Store) IsClosed() bool {
	return s.closed.Load()
}

// withTx runs fn inside a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyError(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return classifyError(err)
	}
	return classifyError(tx.Commit())
}

// querier returns the DB querier, or an error if the store is closed.
func (s *Store) querier() (querier, error) {
	if s.closed.Load() {
		return nil, storage.ErrStorageClosed
	}
	return s.db, nil
}

// classifyError maps lock contention to storage.ErrContention.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") {
		return fmt.Errorf("%w: %w", storage.ErrContention, err)
	}
	if errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %w", storage.ErrStorageClosed, err)
	}
	return err
}

// placeholders returns n comma separated bind parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
