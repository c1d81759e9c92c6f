package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/spacestore/spacestore/internal/db"
)

// SetBlob upserts a blob. On key collision the payload, mime and size
// are replaced and a pending soft-delete is cleared; created_at is
// only stamped when the row is new.
func (s *Storage) SetBlob(ctx context.Context, blob SetBlobInput) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	err := s.conn.WriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO blobs (key, data, mime, size, created_at, deleted_at)
			VALUES (?, ?, ?, ?, ?, NULL)
			ON CONFLICT(key) DO UPDATE SET
				data = excluded.data,
				mime = excluded.mime,
				size = excluded.size,
				deleted_at = NULL`,
			blob.Key, blob.Data, blob.Mime, int64(len(blob.Data)), time.Now().UnixMicro())
		return err
	})
	if err != nil {
		return err
	}

	blobBytesStored.Add(float64(len(blob.Data)))
	return nil
}

// GetBlob returns a live blob, or nil when the key is absent or the
// blob is soft-deleted.
func (s *Storage) GetBlob(ctx context.Context, key string) (*Blob, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	var (
		data      []byte
		mime      string
		size      int64
		createdAt int64
	)
	err := s.conn.QueryRow(ctx,
		`SELECT data, mime, size, created_at FROM blobs WHERE key = ? AND deleted_at IS NULL`,
		key,
	).Scan(&data, &mime, &size, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, db.MapError(err)
	}

	return &Blob{
		Key:       key,
		Data:      data,
		Mime:      mime,
		Size:      size,
		CreatedAt: fromMicros(createdAt),
	}, nil
}

// DeleteBlob removes a blob. With permanently set the row is dropped
// outright; otherwise it is soft-deleted and reclaimed later by
// ReleaseBlobs. Both forms are idempotent.
func (s *Storage) DeleteBlob(ctx context.Context, key string, permanently bool) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	return s.conn.WriteTx(ctx, func(tx *sql.Tx) error {
		if permanently {
			_, err := tx.ExecContext(ctx, `DELETE FROM blobs WHERE key = ?`, key)
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE blobs SET deleted_at = ? WHERE key = ? AND deleted_at IS NULL`,
			time.Now().UnixMicro(), key)
		return err
	})
}

// ReleaseBlobs permanently removes every soft-deleted blob.
func (s *Storage) ReleaseBlobs(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	released := int64(0)
	err := s.conn.WriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM blobs WHERE deleted_at IS NOT NULL`)
		if err != nil {
			return err
		}
		released, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}

	blobsReleased.Add(float64(released))
	return nil
}

// ListBlobs returns all live blobs without their payloads, newest
// first.
func (s *Storage) ListBlobs(ctx context.Context) ([]ListedBlob, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	rows, err := s.conn.Query(ctx, `
		SELECT key, size, mime, created_at FROM blobs
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blobs []ListedBlob
	for rows.Next() {
		var (
			listed    ListedBlob
			createdAt int64
		)
		if err := rows.Scan(&listed.Key, &listed.Size, &listed.Mime, &createdAt); err != nil {
			return nil, db.MapError(err)
		}
		listed.CreatedAt = fromMicros(createdAt)
		blobs = append(blobs, listed)
	}
	if err := rows.Err(); err != nil {
		return nil, db.MapError(err)
	}
	return blobs, nil
}
