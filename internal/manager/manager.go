// Package manager coordinates per-table data lifecycles on top of the
// entity store. Each priority table moves through unloaded, loading,
// loaded and error states independently; handlers read consistent
// snapshots while loads run in the background.
package manager

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/atelierhq/backstage/internal/entity"
	apperrors "github.com/atelierhq/backstage/internal/errors"
	"github.com/atelierhq/backstage/internal/schema"
)

// State describes where a table sits in its load lifecycle.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateLoaded   State = "loaded"
	StateError    State = "error"
)

// tableData is the managed view of one table.
type tableData struct {
	state State
	rows  []entity.Row
	err   error
	// token identifies the most recent load request. A fetch that
	// completes carrying an older token is dropped, so rapid refreshes
	// never let a slow early response overwrite a later one.
	token uint64
}

// Snapshot is a point-in-time copy of a table's managed state.
type Snapshot struct {
	Table schema.Table
	State State
	Rows  []entity.Row
	Err   error
}

// TableStats is the per-table summary shown on the dashboard tab strip.
type TableStats struct {
	Table  schema.Table `json:"table"`
	Label  string       `json:"label"`
	Count  int          `json:"count"`
	Loaded bool         `json:"loaded"`
}

// RowStore is the slice of the entity store the manager depends on.
type RowStore interface {
	List(ctx context.Context, table schema.Table, opts entity.ListOptions) ([]entity.Row, error)
	Create(ctx context.Context, table schema.Table, partial entity.Row) (entity.Row, error)
	Update(ctx context.Context, table schema.Table, id string, patch entity.Row) (entity.Row, error)
	Delete(ctx context.Context, table schema.Table, id string) error
}

// Manager owns the in-memory row cache for every priority table.
type Manager struct {
	store RowStore
	log   zerolog.Logger

	mu     sync.Mutex
	tables map[schema.Table]*tableData
}

func New(store RowStore, log zerolog.Logger) *Manager {
	m := &Manager{
		store:  store,
		log:    log.With().Str("component", "manager").Logger(),
		tables: make(map[schema.Table]*tableData),
	}
	for _, t := range schema.PriorityTables() {
		m.tables[t] = &tableData{state: StateUnloaded}
	}
	return m
}

// Load fetches a table's rows if it has never been loaded. Tables
// already loaded or mid-flight are left alone.
func (m *Manager) Load(ctx context.Context, table schema.Table) error {
	m.mu.Lock()
	td, ok := m.tables[table]
	if !ok {
		m.mu.Unlock()
		return errUnmanaged(table)
	}
	if td.state == StateLoading || td.state == StateLoaded {
		m.mu.Unlock()
		return nil
	}
	token := m.beginLoadLocked(td)
	m.mu.Unlock()

	return m.fetch(ctx, table, token)
}

// Refresh re-fetches a table unconditionally. The previous rows stay
// visible while the new load is in flight.
func (m *Manager) Refresh(ctx context.Context, table schema.Table) error {
	m.mu.Lock()
	td, ok := m.tables[table]
	if !ok {
		m.mu.Unlock()
		return errUnmanaged(table)
	}
	token := m.beginLoadLocked(td)
	m.mu.Unlock()

	return m.fetch(ctx, table, token)
}

// beginLoadLocked bumps the request token and flips the table into the
// loading state. Callers must hold m.mu.
func (m *Manager) beginLoadLocked(td *tableData) uint64 {
	td.token++
	td.state = StateLoading
	td.err = nil
	return td.token
}

func (m *Manager) fetch(ctx context.Context, table schema.Table, token uint64) error {
	rows, err := m.store.List(ctx, table, entity.ListOptions{})

	m.mu.Lock()
	defer m.mu.Unlock()
	td := m.tables[table]
	if td.token != token {
		// A later request superseded this one; its result wins.
		m.log.Debug().Str("table", string(table)).Msg("dropping stale load result")
		return nil
	}
	if err != nil {
		td.state = StateError
		td.err = err
		m.log.Error().Err(err).Str("table", string(table)).Msg("table load failed")
		return err
	}
	td.state = StateLoaded
	td.rows = rows
	td.err = nil
	m.log.Debug().Str("table", string(table)).Int("rows", len(rows)).Msg("table loaded")
	return nil
}

// Snapshot returns a copy of the table's current state. The row slice
// is shared but rows themselves are treated as immutable once cached.
func (m *Manager) Snapshot(table schema.Table) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	td, ok := m.tables[table]
	if !ok {
		return Snapshot{}, errUnmanaged(table)
	}
	rows := make([]entity.Row, len(td.rows))
	copy(rows, td.rows)
	return Snapshot{Table: table, State: td.state, Rows: rows, Err: td.err}, nil
}

// Create writes a new row through the store, then re-fetches the table
// so server-computed fields and ordering come back authoritative.
func (m *Manager) Create(ctx context.Context, table schema.Table, partial entity.Row) (entity.Row, error) {
	created, err := m.store.Create(ctx, table, partial)
	if err != nil {
		return nil, err
	}
	if m.managed(table) {
		if err := m.Refresh(ctx, table); err != nil {
			m.log.Warn().Err(err).Str("table", string(table)).Msg("refresh after create failed")
		}
	}
	return created, nil
}

// Update patches a row and re-fetches the table on success.
func (m *Manager) Update(ctx context.Context, table schema.Table, id string, patch entity.Row) (entity.Row, error) {
	updated, err := m.store.Update(ctx, table, id, patch)
	if err != nil {
		return nil, err
	}
	if m.managed(table) {
		if err := m.Refresh(ctx, table); err != nil {
			m.log.Warn().Err(err).Str("table", string(table)).Msg("refresh after update failed")
		}
	}
	return updated, nil
}

// Delete removes a row and drops it from the cache without a re-fetch.
func (m *Manager) Delete(ctx context.Context, table schema.Table, id string) error {
	if err := m.store.Delete(ctx, table, id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if td, ok := m.tables[table]; ok {
		for i, row := range td.rows {
			if row.ID() == id {
				td.rows = append(td.rows[:i], td.rows[i+1:]...)
				break
			}
		}
	}
	return nil
}

// Stats reports counts for every priority table in tab order.
func (m *Manager) Stats() []TableStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TableStats, 0, len(m.tables))
	for _, t := range schema.PriorityTables() {
		td := m.tables[t]
		label := ""
		if ts := schema.Get(t); ts != nil {
			label = ts.DisplayName
		}
		out = append(out, TableStats{
			Table:  t,
			Label:  label,
			Count:  len(td.rows),
			Loaded: td.state == StateLoaded,
		})
	}
	return out
}

func errUnmanaged(table schema.Table) error {
	return apperrors.NewBadRequestError(fmt.Sprintf("table %q is not managed", table))
}

func (m *Manager) managed(table schema.Table) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tables[table]
	return ok
}
