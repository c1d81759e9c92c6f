package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestConnection(t *testing.T) *Connection {
	t.Helper()
	conn, err := Open(filepath.Join(t.TempDir(), "test.db"), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	conn, err := Open(path, Options{})
	require.NoError(t, err)
	defer conn.Close()

	_, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, path, conn.Path())
}

func TestOpenFailsWhenParentIsAFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := Open(filepath.Join(blocker, "sub", "test.db"), Options{})
	assert.Error(t, err)
}

func TestWriteTxCommits(t *testing.T) {
	conn := openTestConnection(t)
	ctx := context.Background()

	err := conn.WriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO kv (k, v) VALUES ('a', '1')`)
		return err
	})
	require.NoError(t, err)

	var v string
	require.NoError(t, conn.QueryRow(ctx, `SELECT v FROM kv WHERE k = 'a'`).Scan(&v))
	assert.Equal(t, "1", v)
}

func TestWriteTxRollsBackOnError(t *testing.T) {
	conn := openTestConnection(t)
	ctx := context.Background()

	require.NoError(t, conn.WriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)`)
		return err
	}))

	boom := errors.New("boom")
	err := conn.WriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO kv (k, v) VALUES ('a', '1')`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The insert was rolled back with the failed transaction.
	var count int
	require.NoError(t, conn.QueryRow(ctx, `SELECT COUNT(*) FROM kv`).Scan(&count))
	assert.Zero(t, count)
}

func TestWriteTxSerializesWriters(t *testing.T) {
	conn := openTestConnection(t)
	ctx := context.Background()

	require.NoError(t, conn.WriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `CREATE TABLE counter (n INTEGER)`)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO counter (n) VALUES (0)`)
		return err
	}))

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			done <- conn.WriteTx(ctx, func(tx *sql.Tx) error {
				var n int
				if err := tx.QueryRowContext(ctx, `SELECT n FROM counter`).Scan(&n); err != nil {
					return err
				}
				_, err := tx.ExecContext(ctx, `UPDATE counter SET n = ?`, n+1)
				return err
			})
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-done)
	}

	// Read-modify-write transactions never interleave, so no
	// increment is lost.
	var n int
	require.NoError(t, conn.QueryRow(ctx, `SELECT n FROM counter`).Scan(&n))
	assert.Equal(t, 8, n)
}

func TestMapErrorPassthrough(t *testing.T) {
	assert.NoError(t, MapError(nil))
	assert.ErrorIs(t, MapError(sql.ErrNoRows), sql.ErrNoRows)
	assert.ErrorIs(t, MapError(context.Canceled), context.Canceled)

	plain := errors.New("not a driver error")
	assert.Equal(t, plain, MapError(plain))
}
