package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Common errors
var (
	// ErrNotConnected is returned for operations against a universe that
	// has not been connected or has been disconnected.
	ErrNotConnected = errors.New("universe is not connected")

	// ErrMigration is returned when a schema migration fails during connect.
	ErrMigration = errors.New("schema migration failed")

	// ErrBusy is returned when the write lock could not be acquired
	// within the busy timeout.
	ErrBusy = errors.New("database is busy")

	// ErrSpaceMismatch is returned when a universe already carries a
	// different space id.
	ErrSpaceMismatch = errors.New("space id mismatch")

	// ErrCorruption is returned when the engine reports an irrecoverable
	// on-disk inconsistency.
	ErrCorruption = errors.New("database is corrupted")

	// ErrInternal wraps unexpected engine errors.
	ErrInternal = errors.New("internal storage error")
)

// MapError translates SQLite result codes into the package error
// taxonomy. Engine-specific codes never cross this boundary: callers
// above the Connection see the sentinel errors declared in this
// package, a plain "database i/o error", or errors that did not come
// from the driver, passed through unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var serr *sqlite.Error
	if errors.As(err, &serr) {
		// Extended result codes carry the primary code in the low byte.
		switch serr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", ErrBusy, err)
		case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
			return fmt.Errorf("%w: %v", ErrCorruption, err)
		case sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_FULL:
			// Filesystem-level failures keep the driver's message but
			// not its error value, so no engine code leaks upward.
			return fmt.Errorf("database i/o error: %v", err)
		default:
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}
	}

	return err
}
