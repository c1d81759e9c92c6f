// Package pool is the multi-tenant registry of universe storages. It
// dispatches callers to per-universe Storage handles, opening them
// lazily on connect and tearing them down after disconnect.
package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/spacestore/spacestore/internal/db"
	"github.com/spacestore/spacestore/internal/db/migrations"
	"github.com/spacestore/spacestore/internal/storage"
)

var universesConnected = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "spacestore_universes_connected",
	Help: "the number of universes currently held open by the pool",
})

// Pool maps universal ids to shared Storage handles.
//
// The registry mutex guards only the map: it is held across lookup,
// insert and remove, never across I/O, so the pool stays a
// contention-free dispatcher under steady state. Individual Storage
// operations run entirely outside the lock.
type Pool struct {
	mu       sync.Mutex
	storages map[string]*storage.Storage

	opts   db.Options
	logger *logrus.Logger
}

// New creates an empty pool. opts applies to every universe the pool
// opens.
func New(opts db.Options) *Pool {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pool{
		storages: make(map[string]*storage.Storage),
		opts:     opts,
		logger:   logger,
	}
}

// Connect opens the universe's database at path and runs migrations.
// Idempotent: connecting an already connected universe is a no-op.
// On failure the universe stays absent.
func (p *Pool) Connect(ctx context.Context, universalID, path string) error {
	p.mu.Lock()
	_, ok := p.storages[universalID]
	p.mu.Unlock()
	if ok {
		return nil
	}

	// Open and migrate outside the registry lock.
	conn, err := db.Open(path, p.opts)
	if err != nil {
		return err
	}
	if err := migrations.NewManager(conn.DB(), p.logger).Migrate(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("%w: %v", db.ErrMigration, err)
	}
	st := storage.New(conn, p.logger)

	p.mu.Lock()
	if _, ok := p.storages[universalID]; ok {
		// Lost the race to a concurrent Connect on the same id; the
		// incumbent wins and this handle is discarded.
		p.mu.Unlock()
		st.Close()
		return nil
	}
	p.storages[universalID] = st
	p.mu.Unlock()

	universesConnected.Inc()
	p.logger.WithFields(logrus.Fields{
		"universal_id": universalID,
		"db_path":      path,
	}).Info("universe connected")
	return nil
}

// Disconnect removes the universe from the registry. Calls already in
// flight on its Storage finish normally; the database closes once the
// last of them returns. Idempotent.
func (p *Pool) Disconnect(ctx context.Context, universalID string) error {
	p.mu.Lock()
	st, ok := p.storages[universalID]
	delete(p.storages, universalID)
	p.mu.Unlock()

	if !ok {
		return nil
	}

	st.Close()
	universesConnected.Dec()
	p.logger.WithField("universal_id", universalID).Info("universe disconnected")
	return nil
}

// EnsureStorage returns the shared Storage handle of a connected
// universe, or ErrNotConnected.
func (p *Pool) EnsureStorage(universalID string) (*storage.Storage, error) {
	p.mu.Lock()
	st, ok := p.storages[universalID]
	p.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("universe %q: %w", universalID, db.ErrNotConnected)
	}
	return st, nil
}
