package pool

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacestore/spacestore/internal/db"
)

func newTestPool(t *testing.T) (*Pool, string) {
	t.Helper()
	logger := logrus.New()
	return New(db.Options{Logger: logger}), t.TempDir()
}

func TestConnectAndEnsureStorage(t *testing.T) {
	p, dir := newTestPool(t)
	ctx := context.Background()

	id := uuid.NewString()
	require.NoError(t, p.Connect(ctx, id, filepath.Join(dir, "u.db")))

	st, err := p.EnsureStorage(id)
	require.NoError(t, err)
	require.NotNil(t, st)

	ts, err := st.PushUpdate(ctx, "doc-1", []byte{0x01})
	require.NoError(t, err)
	assert.False(t, ts.IsZero())
}

func TestConnectIdempotent(t *testing.T) {
	p, dir := newTestPool(t)
	ctx := context.Background()

	id := uuid.NewString()
	path := filepath.Join(dir, "u.db")
	require.NoError(t, p.Connect(ctx, id, path))
	require.NoError(t, p.Connect(ctx, id, path))

	first, err := p.EnsureStorage(id)
	require.NoError(t, err)
	second, err := p.EnsureStorage(id)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestEnsureStorageNotConnected(t *testing.T) {
	p, _ := newTestPool(t)

	_, err := p.EnsureStorage("nope")
	assert.ErrorIs(t, err, db.ErrNotConnected)
}

func TestDisconnectIsolation(t *testing.T) {
	p, dir := newTestPool(t)
	ctx := context.Background()

	require.NoError(t, p.Connect(ctx, "u1", filepath.Join(dir, "u1.db")))
	require.NoError(t, p.Connect(ctx, "u2", filepath.Join(dir, "u2.db")))

	u1, err := p.EnsureStorage("u1")
	require.NoError(t, err)

	require.NoError(t, p.Disconnect(ctx, "u1"))

	// The other universe is unaffected.
	u2, err := p.EnsureStorage("u2")
	require.NoError(t, err)
	_, err = u2.PushUpdate(ctx, "doc-1", []byte{0x01})
	require.NoError(t, err)

	// The registry no longer resolves u1...
	_, err = p.EnsureStorage("u1")
	assert.ErrorIs(t, err, db.ErrNotConnected)

	// ...and a stale handle fails the same way.
	_, err = u1.PushUpdate(ctx, "doc-1", []byte{0x01})
	assert.ErrorIs(t, err, db.ErrNotConnected)
}

func TestDisconnectIdempotent(t *testing.T) {
	p, dir := newTestPool(t)
	ctx := context.Background()

	require.NoError(t, p.Connect(ctx, "u1", filepath.Join(dir, "u1.db")))
	require.NoError(t, p.Disconnect(ctx, "u1"))
	require.NoError(t, p.Disconnect(ctx, "u1"))
	require.NoError(t, p.Disconnect(ctx, "never-connected"))
}

func TestReconnectAfterDisconnect(t *testing.T) {
	p, dir := newTestPool(t)
	ctx := context.Background()

	path := filepath.Join(dir, "u1.db")
	require.NoError(t, p.Connect(ctx, "u1", path))

	st, err := p.EnsureStorage("u1")
	require.NoError(t, err)
	ts, err := st.PushUpdate(ctx, "doc-1", []byte{0x01})
	require.NoError(t, err)

	require.NoError(t, p.Disconnect(ctx, "u1"))
	require.NoError(t, p.Connect(ctx, "u1", path))

	// State persisted across the reconnect.
	st, err = p.EnsureStorage("u1")
	require.NoError(t, err)
	updates, err := st.GetDocUpdates(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.True(t, updates[0].Timestamp.Equal(ts))
}

func TestConcurrentConnectSingleStorage(t *testing.T) {
	p, dir := newTestPool(t)
	ctx := context.Background()

	id := uuid.NewString()
	path := filepath.Join(dir, "u.db")

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Connect(ctx, id, path))
		}()
	}
	wg.Wait()

	st, err := p.EnsureStorage(id)
	require.NoError(t, err)

	// The storage behind the id is live and unique.
	for i := 0; i < 5; i++ {
		_, err := st.PushUpdate(ctx, "doc-1", []byte{byte(i)})
		require.NoError(t, err)
	}
	updates, err := st.GetDocUpdates(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, updates, 5)
}

func TestManyUniverses(t *testing.T) {
	p, dir := newTestPool(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("universe-%d", i)
		require.NoError(t, p.Connect(ctx, id, filepath.Join(dir, id+".db")))
	}

	for i := 0; i < 10; i++ {
		st, err := p.EnsureStorage(fmt.Sprintf("universe-%d", i))
		require.NoError(t, err)
		require.NoError(t, st.SetSpaceID(ctx, fmt.Sprintf("space-%d", i)))
	}

	// Each universe carries its own space id.
	for i := 0; i < 10; i++ {
		st, err := p.EnsureStorage(fmt.Sprintf("universe-%d", i))
		require.NoError(t, err)
		spaceID, err := st.SpaceID(ctx)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("space-%d", i), spaceID)
	}
}
