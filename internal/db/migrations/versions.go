package migrations

import (
	"database/sql"
)

// allMigrations returns every schema migration in order.
func allMigrations() []Migration {
	return []Migration{
		migration1_CoreTables(),
		migration2_PeerClocks(),
	}
}

// migration1_CoreTables creates the meta, snapshot, update and blob
// tables. Timestamps are INTEGER microseconds since the Unix epoch;
// callers agree on UTC.
func migration1_CoreTables() Migration {
	return Migration{
		Version:     1,
		Description: "create core tables (meta, snapshots, updates, blobs)",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS meta (
					key TEXT PRIMARY KEY,
					value TEXT NOT NULL
				)
			`); err != nil {
				return err
			}

			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS snapshots (
					doc_id TEXT PRIMARY KEY,
					data BLOB NOT NULL,
					timestamp INTEGER NOT NULL
				)
			`); err != nil {
				return err
			}

			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS updates (
					doc_id TEXT NOT NULL,
					timestamp INTEGER NOT NULL,
					data BLOB NOT NULL,
					PRIMARY KEY (doc_id, timestamp)
				)
			`); err != nil {
				return err
			}

			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS blobs (
					key TEXT PRIMARY KEY,
					data BLOB NOT NULL,
					mime TEXT NOT NULL,
					size INTEGER NOT NULL,
					created_at INTEGER NOT NULL,
					deleted_at INTEGER
				)
			`); err != nil {
				return err
			}

			if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_updates_doc_id ON updates(doc_id)`); err != nil {
				return err
			}
			if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_blobs_deleted_at ON blobs(deleted_at)`); err != nil {
				return err
			}

			return nil
		},
	}
}

// migration2_PeerClocks creates the three peer clock ledgers. They are
// deliberately identical in shape: sync progress is tracked from three
// independent vantage points per (peer, doc).
func migration2_PeerClocks() Migration {
	return Migration{
		Version:     2,
		Description: "create peer clock tables",
		Up: func(tx *sql.Tx) error {
			for _, table := range []string{
				"peer_remote_clocks",
				"peer_pulled_remote_clocks",
				"peer_pushed_clocks",
			} {
				if _, err := tx.Exec(`
					CREATE TABLE IF NOT EXISTS ` + table + ` (
						peer TEXT NOT NULL,
						doc_id TEXT NOT NULL,
						timestamp INTEGER NOT NULL,
						PRIMARY KEY (peer, doc_id)
					)
				`); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
