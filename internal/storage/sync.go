package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/spacestore/spacestore/internal/db"
)

// Synchronization against a remote peer is two-sided and asymmetric,
// so three clocks are tracked per (peer, doc): the clock the peer
// advertises (remote), the latest remote timestamp actually pulled
// and applied locally (pulled remote), and the latest local timestamp
// pushed upstream (pushed). All three are needed to compute what
// still requires sync in either direction.
const (
	tableRemoteClocks       = "peer_remote_clocks"
	tablePulledRemoteClocks = "peer_pulled_remote_clocks"
	tablePushedClocks       = "peer_pushed_clocks"
)

func (s *Storage) getPeerClocks(ctx context.Context, table, peer string) ([]DocClock, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	rows, err := s.conn.Query(ctx,
		`SELECT doc_id, timestamp FROM `+table+` WHERE peer = ?`, peer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clocks []DocClock
	for rows.Next() {
		var (
			docID string
			ts    int64
		)
		if err := rows.Scan(&docID, &ts); err != nil {
			return nil, db.MapError(err)
		}
		clocks = append(clocks, DocClock{DocID: docID, Timestamp: fromMicros(ts)})
	}
	if err := rows.Err(); err != nil {
		return nil, db.MapError(err)
	}
	return clocks, nil
}

func (s *Storage) getPeerClock(ctx context.Context, table, peer, docID string) (*DocClock, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	var ts int64
	err := s.conn.QueryRow(ctx,
		`SELECT timestamp FROM `+table+` WHERE peer = ? AND doc_id = ?`, peer, docID,
	).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, db.MapError(err)
	}
	return &DocClock{DocID: docID, Timestamp: fromMicros(ts)}, nil
}

// setPeerClock is a monotonic upsert: a timestamp that is not
// strictly newer than the stored one is ignored.
func (s *Storage) setPeerClock(ctx context.Context, table, peer, docID string, clock time.Time) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	return s.conn.WriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO `+table+` (peer, doc_id, timestamp) VALUES (?, ?, ?)
			ON CONFLICT(peer, doc_id) DO UPDATE SET timestamp = excluded.timestamp
			WHERE excluded.timestamp > `+table+`.timestamp`,
			peer, docID, toMicros(clock))
		return err
	})
}

// GetPeerRemoteClocks returns every clock the peer has advertised.
func (s *Storage) GetPeerRemoteClocks(ctx context.Context, peer string) ([]DocClock, error) {
	return s.getPeerClocks(ctx, tableRemoteClocks, peer)
}

// GetPeerRemoteClock returns the advertised clock for one doc, or nil.
func (s *Storage) GetPeerRemoteClock(ctx context.Context, peer, docID string) (*DocClock, error) {
	return s.getPeerClock(ctx, tableRemoteClocks, peer, docID)
}

// SetPeerRemoteClock records the latest timestamp observed from the
// peer for a doc. Monotonic.
func (s *Storage) SetPeerRemoteClock(ctx context.Context, peer, docID string, clock time.Time) error {
	return s.setPeerClock(ctx, tableRemoteClocks, peer, docID, clock)
}

// GetPeerPulledRemoteClocks returns every pulled-and-applied clock
// for the peer.
func (s *Storage) GetPeerPulledRemoteClocks(ctx context.Context, peer string) ([]DocClock, error) {
	return s.getPeerClocks(ctx, tablePulledRemoteClocks, peer)
}

// GetPeerPulledRemoteClock returns the pulled clock for one doc, or nil.
func (s *Storage) GetPeerPulledRemoteClock(ctx context.Context, peer, docID string) (*DocClock, error) {
	return s.getPeerClock(ctx, tablePulledRemoteClocks, peer, docID)
}

// SetPeerPulledRemoteClock records the latest remote timestamp the
// local side has pulled and applied. Monotonic.
func (s *Storage) SetPeerPulledRemoteClock(ctx context.Context, peer, docID string, clock time.Time) error {
	return s.setPeerClock(ctx, tablePulledRemoteClocks, peer, docID, clock)
}

// GetPeerPushedClocks returns every pushed clock for the peer.
func (s *Storage) GetPeerPushedClocks(ctx context.Context, peer string) ([]DocClock, error) {
	return s.getPeerClocks(ctx, tablePushedClocks, peer)
}

// GetPeerPushedClock returns the pushed clock for one doc, or nil.
func (s *Storage) GetPeerPushedClock(ctx context.Context, peer, docID string) (*DocClock, error) {
	return s.getPeerClock(ctx, tablePushedClocks, peer, docID)
}

// SetPeerPushedClock records the latest local timestamp pushed to the
// peer. Monotonic.
func (s *Storage) SetPeerPushedClock(ctx context.Context, peer, docID string, clock time.Time) error {
	return s.setPeerClock(ctx, tablePushedClocks, peer, docID, clock)
}

// ClearClocks truncates all three clock ledgers for this universe.
func (s *Storage) ClearClocks(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	return s.conn.WriteTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{tableRemoteClocks, tablePulledRemoteClocks, tablePushedClocks} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return err
			}
		}
		return nil
	})
}
