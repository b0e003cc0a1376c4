package manager

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/backstage/internal/entity"
	"github.com/atelierhq/backstage/internal/schema"
)

type fakeStore struct {
	mu      sync.Mutex
	rows    map[schema.Table][]entity.Row
	listErr error
	// gate, when set, blocks List until released. Lets tests hold an
	// early request open while a later one completes.
	gate      chan struct{}
	listCalls int
}

func (f *fakeStore) List(ctx context.Context, table schema.Table, opts entity.ListOptions) ([]entity.Row, error) {
	f.mu.Lock()
	f.listCalls++
	gate := f.gate
	f.gate = nil
	err := f.listErr
	rows := append([]entity.Row(nil), f.rows[table]...)
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (f *fakeStore) Create(ctx context.Context, table schema.Table, partial entity.Row) (entity.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row := entity.Row{"id": fmt.Sprintf("gen-%d", len(f.rows[table])+1)}
	for k, v := range partial {
		row[k] = v
	}
	f.rows[table] = append(f.rows[table], row)
	return row, nil
}

func (f *fakeStore) Update(ctx context.Context, table schema.Table, id string, patch entity.Row) (entity.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, row := range f.rows[table] {
		if row.ID() == id {
			for k, v := range patch {
				row[k] = v
			}
			f.rows[table][i] = row
			return row, nil
		}
	}
	return nil, fmt.Errorf("row %s not found", id)
}

func (f *fakeStore) Delete(ctx context.Context, table schema.Table, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, row := range f.rows[table] {
		if row.ID() == id {
			f.rows[table] = append(f.rows[table][:i], f.rows[table][i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("row %s not found", id)
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[schema.Table][]entity.Row{
		schema.TablePosts: {
			{"id": "p1", "title": "First"},
			{"id": "p2", "title": "Second"},
		},
	}}
}

func newTestManager(store RowStore) *Manager {
	return New(store, zerolog.Nop())
}

func TestInitialStatesUnloaded(t *testing.T) {
	m := newTestManager(newFakeStore())
	for _, stats := range m.Stats() {
		assert.False(t, stats.Loaded)
		assert.Zero(t, stats.Count)
	}

	snap, err := m.Snapshot(schema.TablePosts)
	require.NoError(t, err)
	assert.Equal(t, StateUnloaded, snap.State)
}

func TestLoadTransitions(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)

	require.NoError(t, m.Load(context.Background(), schema.TablePosts))
	snap, err := m.Snapshot(schema.TablePosts)
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, snap.State)
	assert.Len(t, snap.Rows, 2)

	// A second Load is a no-op once loaded.
	require.NoError(t, m.Load(context.Background(), schema.TablePosts))
	assert.Equal(t, 1, store.listCalls)
}

func TestLoadError(t *testing.T) {
	store := newFakeStore()
	store.listErr = fmt.Errorf("connection refused")
	m := newTestManager(store)

	err := m.Load(context.Background(), schema.TablePosts)
	require.Error(t, err)

	snap, snapErr := m.Snapshot(schema.TablePosts)
	require.NoError(t, snapErr)
	assert.Equal(t, StateError, snap.State)
	assert.Error(t, snap.Err)

	// After an error, Load retries instead of treating the table as done.
	store.mu.Lock()
	store.listErr = nil
	store.mu.Unlock()
	require.NoError(t, m.Load(context.Background(), schema.TablePosts))
	snap, _ = m.Snapshot(schema.TablePosts)
	assert.Equal(t, StateLoaded, snap.State)
}

func TestRefreshKeepsRowsWhileLoading(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)
	require.NoError(t, m.Load(context.Background(), schema.TablePosts))

	gate := make(chan struct{})
	store.mu.Lock()
	store.gate = gate
	store.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- m.Refresh(context.Background(), schema.TablePosts) }()

	// Wait for the refresh to enter the loading state.
	for {
		snap, err := m.Snapshot(schema.TablePosts)
		require.NoError(t, err)
		if snap.State == StateLoading {
			// Previously loaded rows remain visible mid-flight.
			assert.Len(t, snap.Rows, 2)
			break
		}
	}

	close(gate)
	require.NoError(t, <-done)
	snap, _ := m.Snapshot(schema.TablePosts)
	assert.Equal(t, StateLoaded, snap.State)
}

func TestStaleLoadResultDropped(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)

	gate := make(chan struct{})
	store.mu.Lock()
	store.gate = gate
	store.mu.Unlock()

	slow := make(chan error, 1)
	go func() { slow <- m.Refresh(context.Background(), schema.TablePosts) }()

	// Wait until the slow request has taken its token.
	for {
		store.mu.Lock()
		started := store.listCalls > 0
		store.mu.Unlock()
		if started {
			break
		}
	}

	// A newer refresh lands while the first is stalled; the slow
	// result must not overwrite it.
	store.mu.Lock()
	store.rows[schema.TablePosts] = append(store.rows[schema.TablePosts], entity.Row{"id": "p3"})
	store.mu.Unlock()
	require.NoError(t, m.Refresh(context.Background(), schema.TablePosts))

	close(gate)
	require.NoError(t, <-slow)

	snap, err := m.Snapshot(schema.TablePosts)
	require.NoError(t, err)
	assert.Len(t, snap.Rows, 3)
}

func TestCreateRefetchesTable(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)
	require.NoError(t, m.Load(context.Background(), schema.TablePosts))

	created, err := m.Create(context.Background(), schema.TablePosts, entity.Row{"title": "Third", "slug": "third"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID())

	snap, _ := m.Snapshot(schema.TablePosts)
	assert.Len(t, snap.Rows, 3)
}

func TestDeleteOptimisticNoRefetch(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)
	require.NoError(t, m.Load(context.Background(), schema.TablePosts))
	calls := store.listCalls

	require.NoError(t, m.Delete(context.Background(), schema.TablePosts, "p1"))

	snap, _ := m.Snapshot(schema.TablePosts)
	assert.Len(t, snap.Rows, 1)
	assert.Equal(t, "p2", snap.Rows[0].ID())
	assert.Equal(t, calls, store.listCalls)
}

func TestDeleteErrorKeepsCache(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store)
	require.NoError(t, m.Load(context.Background(), schema.TablePosts))

	err := m.Delete(context.Background(), schema.TablePosts, "missing")
	require.Error(t, err)
	snap, _ := m.Snapshot(schema.TablePosts)
	assert.Len(t, snap.Rows, 2)
}

func TestUnmanagedTable(t *testing.T) {
	m := newTestManager(newFakeStore())
	_, err := m.Snapshot(schema.Table("not_a_table"))
	assert.Error(t, err)
	assert.Error(t, m.Load(context.Background(), schema.Table("not_a_table")))
}

func TestStatsAfterLoad(t *testing.T) {
	m := newTestManager(newFakeStore())
	require.NoError(t, m.Load(context.Background(), schema.TablePosts))

	stats := m.Stats()
	require.NotEmpty(t, stats)
	assert.Equal(t, schema.TablePosts, stats[0].Table)
	assert.Equal(t, 2, stats[0].Count)
	assert.True(t, stats[0].Loaded)
	assert.Equal(t, "Posts", stats[0].Label)
}
