// Package entity is the generic CRUD facade over the backing Postgres store.
// Every operation is keyed by a registered schema table; column names are
// validated against the registry before they reach SQL.
package entity

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	apperrors "github.com/atelierhq/backstage/internal/errors"
	"github.com/atelierhq/backstage/internal/schema"
	"github.com/atelierhq/backstage/internal/security"
)

// Row is one record of a managed table, keyed by column name. Its shape is
// defined entirely by the table schema.
type Row map[string]any

// ID returns the row's primary-key value as a string, empty if absent.
func (r Row) ID() string {
	if v, ok := r["id"]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// DefaultLimit bounds list payloads; callers needing more must page
// explicitly through ListOptions.Offset.
const DefaultLimit = 1000

// ListOptions controls sorting and paging of List. Zero values mean the
// defaults: created_at descending, DefaultLimit rows, no offset.
type ListOptions struct {
	SortField string
	Ascending bool
	Limit     int
	Offset    int
	// Filters restricts results to rows whose columns equal the given
	// values. Keys must name schema columns.
	Filters map[string]any
	// Search keeps rows where any column matches the term as a
	// case-insensitive substring.
	Search string
}

// Store translates logical table names into CRUD calls against Postgres.
// It keeps no cache and performs no retries - a failed call surfaces its
// error to the caller.
type Store struct {
	db      *gorm.DB
	log     zerolog.Logger
	builder sq.StatementBuilderType
}

// NewStore creates a store on an open gorm connection.
func NewStore(db *gorm.DB, log zerolog.Logger) *Store {
	return &Store{
		db:      db,
		log:     log.With().Str("component", "entity").Logger(),
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// List returns rows of a table. Default sort is descending by creation
// timestamp; the default limit bounds payload size.
func (s *Store) List(ctx context.Context, table schema.Table, opts ListOptions) ([]Row, error) {
	ts, tableName, err := s.resolve(table)
	if err != nil {
		return nil, err
	}

	sortField := opts.SortField
	if sortField == "" {
		sortField = "created_at"
		opts.Ascending = false
	}
	if ts.Column(sortField) == nil {
		return nil, apperrors.NewBadRequestError(fmt.Sprintf("unknown sort column %q", sortField))
	}
	sortCol, err := security.SafeIdentifier(sortField)
	if err != nil {
		return nil, apperrors.NewBadRequestError(err.Error())
	}
	direction := "DESC"
	if opts.Ascending {
		direction = "ASC"
	}

	limit := opts.Limit
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}

	q := s.builder.
		Select("*").
		From(tableName).
		OrderBy(fmt.Sprintf("%s %s NULLS LAST", sortCol, direction)).
		Limit(uint64(limit))
	if opts.Offset > 0 {
		q = q.Offset(uint64(opts.Offset))
	}
	for key, value := range opts.Filters {
		if ts.Column(key) == nil {
			return nil, apperrors.NewBadRequestError(fmt.Sprintf("unknown filter column %q", key))
		}
		col, err := security.SafeIdentifier(key)
		if err != nil {
			return nil, apperrors.NewBadRequestError(err.Error())
		}
		q = q.Where(sq.Eq{col: value})
	}
	if term := strings.TrimSpace(opts.Search); term != "" {
		pattern := "%" + security.EscapeLikePattern(term) + "%"
		match := make(sq.Or, 0, len(ts.Columns))
		for _, col := range ts.Columns {
			// Casting covers non-text columns; arrays join to a
			// comma-ish text form that substring search still hits.
			safe, err := security.SafeIdentifier(col.Key)
			if err != nil {
				continue
			}
			match = append(match, sq.Expr(safe+"::text ILIKE ?", pattern))
		}
		q = q.Where(match)
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, apperrors.NewStoreError("build list query", err)
	}

	rows, err := s.db.WithContext(ctx).Raw(sqlStr, args...).Rows()
	if err != nil {
		return nil, apperrors.NewStoreError(fmt.Sprintf("list %s", table), err)
	}
	defer rows.Close()

	return scanRows(rows, ts)
}

// Get returns a single row by primary key.
func (s *Store) Get(ctx context.Context, table schema.Table, id string) (Row, error) {
	ts, tableName, err := s.resolve(table)
	if err != nil {
		return nil, err
	}

	sqlStr, args, err := s.builder.
		Select("*").
		From(tableName).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, apperrors.NewStoreError("build get query", err)
	}

	rows, err := s.db.WithContext(ctx).Raw(sqlStr, args...).Rows()
	if err != nil {
		return nil, apperrors.NewStoreError(fmt.Sprintf("get %s", table), err)
	}
	defer rows.Close()

	result, err := scanRows(rows, ts)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, apperrors.NewNotFoundError(string(table) + " row")
	}
	return result[0], nil
}

// Create inserts a row and returns the server representation, so generated
// defaults (primary key, timestamps) are authoritative. Server-owned columns
// in the input are discarded.
func (s *Store) Create(ctx context.Context, table schema.Table, partial Row) (Row, error) {
	ts, tableName, err := s.resolve(table)
	if err != nil {
		return nil, err
	}

	if result := schema.ValidateRow(table, partial); !result.Valid {
		return nil, apperrors.NewValidationError(result.Errors)
	}

	cols, vals := s.writableValues(ts, partial)
	if len(cols) == 0 {
		return nil, apperrors.NewBadRequestError("no writable fields supplied")
	}

	sqlStr, args, err := s.builder.
		Insert(tableName).
		Columns(cols...).
		Values(vals...).
		Suffix("RETURNING *").
		ToSql()
	if err != nil {
		return nil, apperrors.NewStoreError("build insert query", err)
	}

	rows, err := s.db.WithContext(ctx).Raw(sqlStr, args...).Rows()
	if err != nil {
		return nil, apperrors.NewStoreError(fmt.Sprintf("create %s", table), err)
	}
	defer rows.Close()

	result, err := scanRows(rows, ts)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		// Insert succeeded at the driver level but returned nothing; the
		// access policy swallowed the row.
		return nil, apperrors.NewNotFoundError(string(table) + " row")
	}
	s.log.Debug().Str("table", string(table)).Str("id", result[0].ID()).Msg("row created")
	return result[0], nil
}

// Update applies a partial update by primary key: only the supplied keys
// change. A zero-row result surfaces as NotFound, whether the row is missing
// or access-denied.
func (s *Store) Update(ctx context.Context, table schema.Table, id string, patch Row) (Row, error) {
	ts, tableName, err := s.resolve(table)
	if err != nil {
		return nil, err
	}

	cols, vals := s.writableValues(ts, patch)
	if len(cols) == 0 {
		return nil, apperrors.NewBadRequestError("no writable fields supplied")
	}

	q := s.builder.Update(tableName)
	for i, col := range cols {
		q = q.Set(col, vals[i])
	}
	if ts.Column("updated_at") != nil {
		q = q.Set("updated_at", time.Now())
	}

	sqlStr, args, err := q.Where(sq.Eq{"id": id}).Suffix("RETURNING *").ToSql()
	if err != nil {
		return nil, apperrors.NewStoreError("build update query", err)
	}

	rows, err := s.db.WithContext(ctx).Raw(sqlStr, args...).Rows()
	if err != nil {
		return nil, apperrors.NewStoreError(fmt.Sprintf("update %s", table), err)
	}
	defer rows.Close()

	result, err := scanRows(rows, ts)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, apperrors.NewNotFoundError(string(table) + " row")
	}
	return result[0], nil
}

// Delete removes a row by primary key. Deleting a nonexistent id is an error,
// not a no-op.
func (s *Store) Delete(ctx context.Context, table schema.Table, id string) error {
	_, tableName, err := s.resolve(table)
	if err != nil {
		return err
	}

	sqlStr, args, err := s.builder.
		Delete(tableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return apperrors.NewStoreError("build delete query", err)
	}

	res := s.db.WithContext(ctx).Exec(sqlStr, args...)
	if res.Error != nil {
		return apperrors.NewStoreError(fmt.Sprintf("delete %s", table), res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NewNotFoundError(string(table) + " row")
	}
	s.log.Debug().Str("table", string(table)).Str("id", id).Msg("row deleted")
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) resolve(table schema.Table) (*schema.TableSchema, string, error) {
	ts := schema.Get(table)
	if ts == nil {
		return nil, "", apperrors.NewNotFoundError(fmt.Sprintf("table %q", table))
	}
	name, err := security.SafeIdentifier(string(table))
	if err != nil {
		return nil, "", apperrors.NewBadRequestError(err.Error())
	}
	return ts, name, nil
}

// writableValues filters a partial row down to columns the client may set:
// known, not read-only, not the primary key, not server timestamps. Values of
// array columns are wrapped for the Postgres driver.
func (s *Store) writableValues(ts *schema.TableSchema, partial Row) ([]string, []any) {
	var cols []string
	var vals []any
	for _, col := range ts.Columns {
		if col.ReadOnly || col.PrimaryKey {
			continue
		}
		value, ok := partial[col.Key]
		if !ok {
			continue
		}
		if err := security.ValidateIdentifier(col.Key); err != nil {
			continue
		}
		cols = append(cols, security.QuoteIdentifier(col.Key))
		vals = append(vals, encodeValue(col, value))
	}
	return cols, vals
}

func encodeValue(col schema.ColumnSpec, value any) any {
	if col.Type == schema.TypeDate {
		// A cleared date editor submits ""; the driver cannot bind
		// that to a timestamp column, so store null instead.
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			return nil
		}
		return value
	}
	if col.Type != schema.TypeArray || value == nil {
		return value
	}
	switch v := value.(type) {
	case []string:
		return pq.Array(v)
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return pq.Array(items)
	case string:
		// Comma-separated fallback from the inline array editor.
		var items []string
		for _, part := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				items = append(items, trimmed)
			}
		}
		return pq.Array(items)
	default:
		return value
	}
}

// rowScanner is the subset of sql.Rows the scanner needs; tests substitute
// their own implementation.
type rowScanner interface {
	Next() bool
	Columns() ([]string, error)
	Scan(...any) error
	Err() error
}

// scanRows reads every result row into a Row map, normalizing driver types:
// byte slices become strings, TEXT[] columns become []string.
func scanRows(rows rowScanner, ts *schema.TableSchema) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, apperrors.NewStoreError("read columns", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apperrors.NewStoreError("scan row", err)
		}

		row := make(Row, len(columns))
		for i, name := range columns {
			row[name] = decodeValue(ts.Column(name), values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("iterate rows", err)
	}
	return out, nil
}

func decodeValue(col *schema.ColumnSpec, value any) any {
	if value == nil {
		return nil
	}
	if col != nil && col.Type == schema.TypeArray {
		var arr pq.StringArray
		switch v := value.(type) {
		case []byte:
			if err := arr.Scan(v); err == nil {
				return []string(arr)
			}
		case string:
			if err := arr.Scan([]byte(v)); err == nil {
				return []string(arr)
			}
		case []string:
			return v
		}
	}
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return value
}
