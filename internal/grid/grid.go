// Package grid implements the editable table view: per-cell edit state,
// optimistic local mutation with rollback, sort, search and bulk selection.
// The grid has no network dependency - persistence goes through the
// caller-supplied callbacks.
package grid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atelierhq/backstage/internal/entity"
	apperrors "github.com/atelierhq/backstage/internal/errors"
	"github.com/atelierhq/backstage/internal/schema"
)

// Callbacks mediate persistence. The grid applies mutations to local state
// and delegates the network side effect to the caller.
type Callbacks struct {
	OnUpdate func(id string, patch entity.Row) error
	OnCreate func(partial entity.Row) (entity.Row, error)
	OnDelete func(id string) error
}

// ConfirmFunc answers a destructive-action prompt. Returning false aborts
// the action with zero side effects.
type ConfirmFunc func(prompt string) bool

// CellRef identifies one cell by row identity and column key.
type CellRef struct {
	RowID  string
	Column string
}

// Grid holds the presentation state of one table. State is reset on table
// switch by constructing a new Grid.
type Grid struct {
	schema    *schema.TableSchema
	rows      []entity.Row
	callbacks Callbacks
	confirm   ConfirmFunc

	editing    *CellRef
	selected   map[string]bool
	sortColumn string
	sortAsc    bool
	searchTerm string
	hidden     map[string]bool
}

// New creates a grid for a registered table.
func New(table schema.Table, callbacks Callbacks, confirm ConfirmFunc) (*Grid, error) {
	ts := schema.Get(table)
	if ts == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("table %q", table))
	}
	if confirm == nil {
		confirm = func(string) bool { return true }
	}
	return &Grid{
		schema:    ts,
		callbacks: callbacks,
		confirm:   confirm,
		selected:  make(map[string]bool),
		hidden:    make(map[string]bool),
	}, nil
}

// SetRows replaces the local row set, e.g. after a manager re-fetch.
// Selection is pruned to rows that still exist; edit state for a vanished
// row is dropped.
func (g *Grid) SetRows(rows []entity.Row) {
	g.rows = rows

	alive := make(map[string]bool, len(rows))
	for _, row := range rows {
		alive[row.ID()] = true
	}
	for id := range g.selected {
		if !alive[id] {
			delete(g.selected, id)
		}
	}
	if g.editing != nil && !alive[g.editing.RowID] {
		g.editing = nil
	}
}

// Rows returns the unfiltered local row set.
func (g *Grid) Rows() []entity.Row {
	return g.rows
}

// =============================================================================
// CELL EDITING
// =============================================================================

// StartEdit opens the editor on one cell. Read-only columns never open an
// editor. At most one cell is in edit mode: starting a second edit closes
// the first without committing it.
func (g *Grid) StartEdit(rowID, column string) error {
	col := g.schema.Column(column)
	if col == nil {
		return apperrors.NewBadRequestError(fmt.Sprintf("unknown column %q", column))
	}
	if col.ReadOnly {
		return apperrors.NewBadRequestError(fmt.Sprintf("column %q is read-only", column))
	}
	if g.findRow(rowID) == nil {
		return apperrors.NewNotFoundError("row")
	}
	g.editing = &CellRef{RowID: rowID, Column: column}
	return nil
}

// EditingCell returns the cell currently in edit mode, if any.
func (g *Grid) EditingCell() *CellRef {
	if g.editing == nil {
		return nil
	}
	ref := *g.editing
	return &ref
}

// CancelEdit closes the editor, reverting to the last committed value.
func (g *Grid) CancelEdit() {
	g.editing = nil
}

// CommitEdit commits the edited value of the cell in edit mode. The local
// row is patched optimistically before the update callback fires; if the
// callback fails the pre-edit snapshot is restored and the error returned.
func (g *Grid) CommitEdit(value any) error {
	if g.editing == nil {
		return apperrors.NewBadRequestError("no cell is being edited")
	}
	ref := *g.editing
	g.editing = nil

	row := g.findRow(ref.RowID)
	if row == nil {
		return apperrors.NewNotFoundError("row")
	}

	snapshot, hadValue := row[ref.Column]
	row[ref.Column] = value

	if g.callbacks.OnUpdate == nil {
		return nil
	}
	if err := g.callbacks.OnUpdate(ref.RowID, entity.Row{ref.Column: value}); err != nil {
		if hadValue {
			row[ref.Column] = snapshot
		} else {
			delete(row, ref.Column)
		}
		return err
	}
	return nil
}

// EnterCommits reports whether a plain Enter keypress commits an editor of
// the given column type. Textareas keep Enter for newlines and commit on
// Ctrl+Enter instead.
func EnterCommits(t schema.ColumnType) bool {
	return t != schema.TypeTextarea
}

// CommitChord names the keypress that commits an editor of the given
// column type.
func CommitChord(t schema.ColumnType) string {
	if EnterCommits(t) {
		return "Enter"
	}
	return "Ctrl+Enter"
}

// =============================================================================
// ROW LIFECYCLE
// =============================================================================

// AddRow builds a new row from schema-derived defaults merged with the
// caller's values, validates required columns, and delegates creation. On
// success the server representation is appended to local state, so generated
// defaults are authoritative. The payload never contains the primary key or
// any read-only column.
func (g *Grid) AddRow(values entity.Row) (entity.Row, error) {
	partial := entity.Row{}
	for _, col := range g.schema.Columns {
		if col.PrimaryKey || col.ReadOnly {
			continue
		}
		// Date columns start null; an empty-string default would not
		// bind to a timestamp column.
		if col.Type == schema.TypeDate {
			continue
		}
		partial[col.Key] = schema.ZeroValue(col.Type)
	}
	for key, value := range values {
		if col := g.schema.Column(key); col != nil && !col.PrimaryKey && !col.ReadOnly {
			partial[key] = value
		}
	}

	if result := schema.ValidateRow(g.schema.Table, partial); !result.Valid {
		return nil, apperrors.NewValidationError(result.Errors)
	}

	if g.callbacks.OnCreate == nil {
		g.rows = append(g.rows, partial)
		return partial, nil
	}
	created, err := g.callbacks.OnCreate(partial)
	if err != nil {
		return nil, err
	}
	g.rows = append(g.rows, created)
	return created, nil
}

// DeleteRow removes one row after confirmation. The row leaves local state
// immediately; the delete callback races independently and its error is
// surfaced without resurrecting the row.
func (g *Grid) DeleteRow(id string) error {
	if g.findRow(id) == nil {
		return apperrors.NewNotFoundError("row")
	}
	if !g.confirm("Delete this row?") {
		return nil
	}
	g.removeLocal(id)
	if g.callbacks.OnDelete == nil {
		return nil
	}
	return g.callbacks.OnDelete(id)
}

// =============================================================================
// SELECTION & BULK DELETE
// =============================================================================

// SelectRow toggles a row's membership in the bulk-delete selection.
func (g *Grid) SelectRow(id string, selected bool) {
	if selected {
		if g.findRow(id) != nil {
			g.selected[id] = true
		}
		return
	}
	delete(g.selected, id)
}

// SelectedCount returns the number of selected rows.
func (g *Grid) SelectedCount() int {
	return len(g.selected)
}

// ClearSelection empties the bulk-delete selection.
func (g *Grid) ClearSelection() {
	g.selected = make(map[string]bool)
}

// BulkDelete deletes every selected row after a single confirmation naming
// the count. Declining leaves all rows present and issues zero delete calls.
// Each deletion is an independent callback; failures are collected, not
// retried.
func (g *Grid) BulkDelete() (int, error) {
	count := len(g.selected)
	if count == 0 {
		return 0, nil
	}
	if !g.confirm(fmt.Sprintf("Delete %d selected rows?", count)) {
		return 0, nil
	}

	ids := make([]string, 0, count)
	for id := range g.selected {
		ids = append(ids, id)
	}

	var errs []error
	deleted := 0
	for _, id := range ids {
		g.removeLocal(id)
		delete(g.selected, id)
		if g.callbacks.OnDelete != nil {
			if err := g.callbacks.OnDelete(id); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}

// =============================================================================
// SORT, SEARCH & COLUMN VISIBILITY
// =============================================================================

// ToggleSort cycles the sort state for a column header click: same column
// flips direction, a new column resets to ascending.
func (g *Grid) ToggleSort(column string) {
	if g.sortColumn == column {
		g.sortAsc = !g.sortAsc
		return
	}
	g.sortColumn = column
	g.sortAsc = true
}

// SortState returns the active sort column ("" when unsorted) and direction.
func (g *Grid) SortState() (string, bool) {
	return g.sortColumn, g.sortAsc
}

// SetSearch sets the free-text filter term.
func (g *Grid) SetSearch(term string) {
	g.searchTerm = term
}

// ToggleColumn flips a column's visibility. Hiding a column does not clear
// sort or search state referring to it.
func (g *Grid) ToggleColumn(key string) {
	if g.hidden[key] {
		delete(g.hidden, key)
		return
	}
	g.hidden[key] = true
}

// VisibleColumns returns the columns shown in the header: schema-visible
// columns minus any toggled off.
func (g *Grid) VisibleColumns() []schema.ColumnSpec {
	var out []schema.ColumnSpec
	for _, col := range schema.Columns(g.schema.Table, true) {
		if !g.hidden[col.Key] {
			out = append(out, col)
		}
	}
	return out
}

// VisibleRows returns the local rows with search and sort applied. Search
// matches if any column's stringified value - hidden columns included -
// contains the term case-insensitively. Sorting places null values last
// regardless of direction.
func (g *Grid) VisibleRows() []entity.Row {
	out := make([]entity.Row, 0, len(g.rows))
	term := strings.ToLower(strings.TrimSpace(g.searchTerm))
	for _, row := range g.rows {
		if term == "" || g.matches(row, term) {
			out = append(out, row)
		}
	}
	if g.sortColumn != "" {
		sortRows(out, g.sortColumn, g.sortAsc)
	}
	return out
}

func (g *Grid) matches(row entity.Row, term string) bool {
	for _, col := range g.schema.Columns {
		value, ok := row[col.Key]
		if !ok || value == nil {
			continue
		}
		if strings.Contains(strings.ToLower(stringify(value)), term) {
			return true
		}
	}
	return false
}

// =============================================================================
// INTERNAL
// =============================================================================

func (g *Grid) findRow(id string) entity.Row {
	for _, row := range g.rows {
		if row.ID() == id {
			return row
		}
	}
	return nil
}

func (g *Grid) removeLocal(id string) {
	for i, row := range g.rows {
		if row.ID() == id {
			g.rows = append(g.rows[:i], g.rows[i+1:]...)
			return
		}
	}
}
