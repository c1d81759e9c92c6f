// Package storage implements the per-universe store: a doc update log
// with snapshot compaction, a blob store with soft delete and vacuum
// (blobs carry no reference counts), and the peer clock ledger, all
// sharing a single SQLite connection.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/spacestore/spacestore/internal/db"
)

const spaceIDKey = "space_id"

// Storage is the unified per-universe API. It composes the doc store,
// blob store and peer clock ledger over one Connection.
//
// A Storage handle stays valid while calls are in flight even if the
// owning pool disconnects the universe concurrently: Close only marks
// the handle closed, and the connection is torn down when the last
// in-flight call returns.
type Storage struct {
	conn   *db.Connection
	logger *logrus.Logger

	mu       sync.Mutex
	inflight int
	closed   bool
}

// New wraps an open, migrated Connection.
func New(conn *db.Connection, logger *logrus.Logger) *Storage {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Storage{
		conn:   conn,
		logger: logger,
	}
}

// begin registers an in-flight call. Fails once the handle is closed.
func (s *Storage) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return db.ErrNotConnected
	}
	s.inflight++
	return nil
}

// end retires an in-flight call and finishes a pending close when it
// was the last one out.
func (s *Storage) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if s.closed && s.inflight == 0 {
		if err := s.conn.Close(); err != nil {
			s.logger.WithError(err).Warn("failed to close universe database")
		}
	}
}

// Close marks the handle closed. New calls fail with ErrNotConnected;
// the connection closes once in-flight calls drain.
func (s *Storage) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.inflight == 0 {
		if err := s.conn.Close(); err != nil {
			s.logger.WithError(err).Warn("failed to close universe database")
		}
	}
}

// SetSpaceID records the space hosted by this universe. The first
// write wins: setting the same value again is a no-op, and a
// different value fails with ErrSpaceMismatch.
func (s *Storage) SetSpaceID(ctx context.Context, spaceID string) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	return s.conn.WriteTx(ctx, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT value FROM meta WHERE key = ?`, spaceIDKey,
		).Scan(&current)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx,
				`INSERT INTO meta (key, value) VALUES (?, ?)`, spaceIDKey, spaceID)
			return err
		case err != nil:
			return err
		case current == spaceID:
			return nil
		default:
			return db.ErrSpaceMismatch
		}
	})
}

// SpaceID returns the space id of this universe, or "" when unset.
func (s *Storage) SpaceID(ctx context.Context) (string, error) {
	if err := s.begin(); err != nil {
		return "", err
	}
	defer s.end()

	var spaceID string
	err := s.conn.QueryRow(ctx,
		`SELECT value FROM meta WHERE key = ?`, spaceIDKey,
	).Scan(&spaceID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", db.MapError(err)
	}
	return spaceID, nil
}
