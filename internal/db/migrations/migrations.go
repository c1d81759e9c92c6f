// Package migrations applies the forward-only schema migrations of a
// universe database. The applied version is recorded in the meta
// table so that the schema and its version travel in the same file.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

const versionKey = "migration_version"

// Migration is a single forward schema step.
type Migration struct {
	Version     int
	Description string
	Up          func(*sql.Tx) error
}

// Manager applies pending migrations on connect.
type Manager struct {
	db         *sql.DB
	migrations []Migration
	logger     *logrus.Logger
}

// NewManager creates a migration manager over an open database handle.
func NewManager(db *sql.DB, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{
		db:         db,
		migrations: allMigrations(),
		logger:     logger,
	}
}

// CurrentVersion returns the schema version recorded in meta, or 0 for
// a fresh database.
func (m *Manager) CurrentVersion(ctx context.Context) (int, error) {
	// The meta table itself is created by migration 1; a missing table
	// simply means version 0.
	var exists int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'meta'`,
	).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect schema: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}

	var version int
	err = m.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(CAST(value AS INTEGER)), 0) FROM meta WHERE key = ?`, versionKey,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// TargetVersion returns the highest migration version this build knows.
func (m *Manager) TargetVersion() int {
	target := 0
	for _, migration := range m.migrations {
		if migration.Version > target {
			target = migration.Version
		}
	}
	return target
}

// Migrate brings the database to the target version. All pending
// migrations run inside a single transaction: either the database
// reaches the target version or it is left exactly as found.
func (m *Manager) Migrate(ctx context.Context) error {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	target := m.TargetVersion()

	if current == target {
		m.logger.Debugf("schema is up to date (version %d)", current)
		return nil
	}
	if current > target {
		return fmt.Errorf("schema version %d is newer than this build supports (%d)", current, target)
	}

	sort.Slice(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version < m.migrations[j].Version
	})

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, migration := range m.migrations {
		if migration.Version <= current {
			continue
		}
		if err := migration.Up(tx); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Description, err)
		}
		m.logger.Debugf("applied migration %d: %s", migration.Version, migration.Description)
	}

	if _, err := tx.Exec(
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		versionKey, fmt.Sprintf("%d", target),
	); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	m.logger.Infof("schema migrated (version %d -> %d)", current, target)
	return nil
}
