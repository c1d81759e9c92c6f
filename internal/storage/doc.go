package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/spacestore/spacestore/internal/db"
)

// docMaxTimestampQuery computes the highest timestamp currently stored
// for a doc, across its snapshot and pending updates.
const docMaxTimestampQuery = `
	SELECT MAX(timestamp) FROM (
		SELECT timestamp FROM updates WHERE doc_id = ?
		UNION ALL
		SELECT timestamp FROM snapshots WHERE doc_id = ?
	)`

// PushUpdate appends an incremental update to the doc's log and
// returns the timestamp the store assigned to it.
//
// Timestamps are wall-clock microseconds, made strictly monotonic per
// doc by bumping one microsecond past the doc's current maximum when
// the clock has not advanced. The read of the maximum and the insert
// run in one write transaction so concurrent pushes cannot collide.
func (s *Storage) PushUpdate(ctx context.Context, docID string, bin []byte) (time.Time, error) {
	if err := s.begin(); err != nil {
		return time.Time{}, err
	}
	defer s.end()

	var assigned int64
	err := s.conn.WriteTx(ctx, func(tx *sql.Tx) error {
		var max sql.NullInt64
		if err := tx.QueryRowContext(ctx, docMaxTimestampQuery, docID, docID).Scan(&max); err != nil {
			return err
		}

		assigned = time.Now().UnixMicro()
		if max.Valid && assigned <= max.Int64 {
			assigned = max.Int64 + 1
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO updates (doc_id, timestamp, data) VALUES (?, ?, ?)`,
			docID, assigned, bin)
		return err
	})
	if err != nil {
		return time.Time{}, err
	}

	updatesPushed.Inc()
	return fromMicros(assigned), nil
}

// GetDocSnapshot returns the doc's snapshot, or nil when none exists.
func (s *Storage) GetDocSnapshot(ctx context.Context, docID string) (*DocRecord, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	var (
		data []byte
		ts   int64
	)
	err := s.conn.QueryRow(ctx,
		`SELECT data, timestamp FROM snapshots WHERE doc_id = ?`, docID,
	).Scan(&data, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, db.MapError(err)
	}

	return &DocRecord{DocID: docID, Bin: data, Timestamp: fromMicros(ts)}, nil
}

// SetDocSnapshot stores a consolidated snapshot. The write applies
// only when the doc has no snapshot yet or the supplied timestamp is
// strictly newer than the stored one; otherwise nothing changes and
// the method reports false.
func (s *Storage) SetDocSnapshot(ctx context.Context, snapshot DocRecord) (bool, error) {
	if err := s.begin(); err != nil {
		return false, err
	}
	defer s.end()

	applied := false
	err := s.conn.WriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO snapshots (doc_id, data, timestamp) VALUES (?, ?, ?)
			ON CONFLICT(doc_id) DO UPDATE SET
				data = excluded.data,
				timestamp = excluded.timestamp
			WHERE excluded.timestamp > snapshots.timestamp`,
			snapshot.DocID, snapshot.Bin, toMicros(snapshot.Timestamp))
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		applied = rows > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	if applied {
		snapshotsStored.Inc()
	}
	return applied, nil
}

// GetDocUpdates returns all pending updates for the doc in ascending
// timestamp order.
func (s *Storage) GetDocUpdates(ctx context.Context, docID string) ([]DocUpdate, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	rows, err := s.conn.Query(ctx,
		`SELECT timestamp, data FROM updates WHERE doc_id = ? ORDER BY timestamp ASC`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updates []DocUpdate
	for rows.Next() {
		var (
			ts   int64
			data []byte
		)
		if err := rows.Scan(&ts, &data); err != nil {
			return nil, db.MapError(err)
		}
		updates = append(updates, DocUpdate{DocID: docID, Timestamp: fromMicros(ts), Bin: data})
	}
	if err := rows.Err(); err != nil {
		return nil, db.MapError(err)
	}
	return updates, nil
}

// MarkUpdatesMerged removes updates that have been folded into a
// snapshot. Only rows whose timestamp matches an entry in timestamps
// are deleted; the count of rows actually removed is returned.
func (s *Storage) MarkUpdatesMerged(ctx context.Context, docID string, timestamps []time.Time) (int, error) {
	if err := s.begin(); err != nil {
		return 0, err
	}
	defer s.end()

	if len(timestamps) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(timestamps)), ",")
	args := make([]interface{}, 0, len(timestamps)+1)
	args = append(args, docID)
	for _, ts := range timestamps {
		args = append(args, toMicros(ts))
	}

	merged := 0
	err := s.conn.WriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM updates WHERE doc_id = ? AND timestamp IN (`+placeholders+`)`,
			args...)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		merged = int(rows)
		return nil
	})
	if err != nil {
		return 0, err
	}

	updatesMerged.Add(float64(merged))
	return merged, nil
}

// DeleteDoc removes the doc's snapshot and all of its updates in one
// transaction. Blobs are not touched; referential integrity between
// docs and blobs is owned by the layer above. Idempotent.
func (s *Storage) DeleteDoc(ctx context.Context, docID string) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	return s.conn.WriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE doc_id = ?`, docID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM updates WHERE doc_id = ?`, docID)
		return err
	})
}

// GetDocClocks returns the clock of every doc in the universe. With
// after set, only docs whose clock is strictly newer are included.
// A doc with neither snapshot nor updates does not exist and is
// absent from the result.
func (s *Storage) GetDocClocks(ctx context.Context, after *time.Time) ([]DocClock, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	query := `
		SELECT doc_id, MAX(timestamp) AS timestamp FROM (
			SELECT doc_id, timestamp FROM snapshots
			UNION ALL
			SELECT doc_id, timestamp FROM updates
		)
		GROUP BY doc_id`
	var args []interface{}
	if after != nil {
		query += ` HAVING MAX(timestamp) > ?`
		args = append(args, toMicros(*after))
	}

	rows, err := s.conn.Query(ctx, query, args...)
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

// GetDocClock returns one doc's clock, or nil when the doc is absent.
func (s *Storage) GetDocClock(ctx context.Context, docID string) (*DocClock, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	var max sql.NullInt64
	if err := s.conn.QueryRow(ctx, docMaxTimestampQuery, docID, docID).Scan(&max); err != nil {
		return nil, db.MapError(err)
	}
	if !max.Valid {
		return nil, nil
	}
	return &DocClock{DocID: docID, Timestamp: fromMicros(max.Int64)}, nil
}
