// Package db owns the embedded SQLite handle of a single universe.
// Higher layers phrase their work as SQL through a Connection; they
// never touch the driver directly.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// DefaultBusyTimeout is how long a statement waits on a held write
// lock before surfacing ErrBusy.
const DefaultBusyTimeout = 5 * time.Second

// Options configures a Connection. The zero value is usable.
type Options struct {
	// BusyTimeout overrides DefaultBusyTimeout when positive.
	BusyTimeout time.Duration

	// Logger receives lifecycle events. Defaults to the standard logger.
	Logger *logrus.Logger
}

// Connection wraps one open SQLite database file. Reads run
// concurrently on the driver's pooled handles; writes serialize
// through a single writer lock so that a read-then-write transaction
// never races another writer.
type Connection struct {
	db     *sql.DB
	path   string
	logger *logrus.Logger

	// writeMu enforces the single-writer discipline across WriteTx
	// calls. SQLite would serialize writers anyway, but taking the
	// lock up front keeps concurrent writers queued instead of
	// spinning on SQLITE_BUSY.
	writeMu sync.Mutex
}

// Open opens (creating if necessary) the database file at path and
// verifies it is reachable. The schema is not touched here; callers
// run migrations before handing the Connection to a store.
func Open(path string, opts Options) (*Connection, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	timeout := opts.BusyTimeout
	if timeout <= 0 {
		timeout = DefaultBusyTimeout
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf(
		"%s?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		path, timeout.Milliseconds(),
	)
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The driver opens the file lazily; force it now so that open
	// failures abort connect instead of the first statement.
	if err := sdb.Ping(); err != nil {
		sdb.Close()
		return nil, MapError(err)
	}

	logger.WithField("db_path", path).Debug("database opened")

	return &Connection{
		db:     sdb,
		path:   path,
		logger: logger,
	}, nil
}

// DB exposes the underlying handle for the migration manager.
func (c *Connection) DB() *sql.DB {
	return c.db
}

// Path returns the filesystem path of the database file.
func (c *Connection) Path() string {
	return c.path
}

// Query runs a read statement. Safe for concurrent use.
func (c *Connection) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	return rows, nil
}

// QueryRow runs a read statement expected to yield at most one row.
func (c *Connection) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

// WriteTx runs fn inside an immediate-mode transaction under the
// writer lock. The transaction commits when fn returns nil and rolls
// back otherwise (including on context cancellation), so a caller
// that abandons the operation never leaves partial state behind.
func (c *Connection) WriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return MapError(err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return MapError(err)
	}

	if err := tx.Commit(); err != nil {
		return MapError(err)
	}
	return nil
}

// Close closes the database file. In-flight statements are allowed to
// finish by the underlying pool.
func (c *Connection) Close() error {
	c.logger.WithField("db_path", c.path).Debug("database closed")
	return c.db.Close()
}
