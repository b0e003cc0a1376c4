// Package schema contains the static table registry for the admin console.
// Every manageable table, its columns and its validation rules are defined
// here at build time - there is no dynamic registration.
package schema

import (
	"fmt"
	"strings"
)

// Table identifies a manageable table. The set of tables is closed: handlers
// parse incoming names through ParseTable so an unsupported table is rejected
// before it reaches the store.
type Table string

const (
	TablePosts           Table = "posts"
	TableTeamMembers     Table = "team_members"
	TableMediaAssets     Table = "media_assets"
	TableIntegrations    Table = "integrations"
	TableWorkflows       Table = "workflows"
	TableTelemetryEvents Table = "telemetry_events"
	TableSiteSettings    Table = "site_settings"
)

// ColumnType determines both the inline editor widget and the read-mode
// rendering of a cell.
type ColumnType string

const (
	TypeText     ColumnType = "text"
	TypeTextarea ColumnType = "textarea"
	TypeNumber   ColumnType = "number"
	TypeBoolean  ColumnType = "boolean"
	TypeDate     ColumnType = "date"
	TypeArray    ColumnType = "array"
	TypeSelect   ColumnType = "select"
	TypeImage    ColumnType = "image"
)

// ColumnSpec describes one field of a table.
type ColumnSpec struct {
	Key        string     `json:"key"`
	Label      string     `json:"label"`
	Type       ColumnType `json:"type"`
	Options    []string   `json:"options,omitempty"` // select columns only
	Required   bool       `json:"required"`
	ReadOnly   bool       `json:"read_only"`
	Hidden     bool       `json:"hidden"`
	PrimaryKey bool       `json:"primary_key"`
	Width      int        `json:"width,omitempty"`
}

// TableSchema describes one manageable table. Column order is display order.
type TableSchema struct {
	Table       Table        `json:"table"`
	DisplayName string       `json:"display_name"`
	Description string       `json:"description"`
	Icon        string       `json:"icon"`
	Columns     []ColumnSpec `json:"columns"`
}

// PrimaryKey returns the primary-key column. Every registered schema carries
// exactly one, marked read-only.
func (s *TableSchema) PrimaryKey() ColumnSpec {
	for _, col := range s.Columns {
		if col.PrimaryKey {
			return col
		}
	}
	// Unreachable for registered schemas; registration panics otherwise.
	return ColumnSpec{}
}

// Column returns the spec for a column key, or nil if the table has no such
// column.
func (s *TableSchema) Column(key string) *ColumnSpec {
	for i := range s.Columns {
		if s.Columns[i].Key == key {
			return &s.Columns[i]
		}
	}
	return nil
}

// ValidationResult reports create-time validation of a row.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// =============================================================================
// REGISTRY
// =============================================================================

var registry = map[Table]*TableSchema{}

// priorityTables is the curated, ordered subset surfaced as admin tabs.
var priorityTables = []Table{
	TablePosts,
	TableTeamMembers,
	TableMediaAssets,
	TableIntegrations,
	TableWorkflows,
	TableTelemetryEvents,
}

func register(s *TableSchema) {
	if _, dup := registry[s.Table]; dup {
		panic(fmt.Sprintf("schema: duplicate table %q", s.Table))
	}
	pks := 0
	for _, col := range s.Columns {
		if col.PrimaryKey {
			pks++
			if !col.ReadOnly {
				panic(fmt.Sprintf("schema: primary key %s.%s must be read-only", s.Table, col.Key))
			}
		}
		if col.Type == TypeSelect && len(col.Options) == 0 {
			panic(fmt.Sprintf("schema: select column %s.%s has no options", s.Table, col.Key))
		}
	}
	if pks != 1 {
		panic(fmt.Sprintf("schema: table %q must have exactly one primary key, got %d", s.Table, pks))
	}
	registry[s.Table] = s
}

// Get returns the schema for a table, or nil if it is not registered.
func Get(table Table) *TableSchema {
	return registry[table]
}

// ParseTable resolves a free-form name to a registered table.
func ParseTable(name string) (Table, error) {
	t := Table(name)
	if _, ok := registry[t]; !ok {
		return "", fmt.Errorf("unknown table %q", name)
	}
	return t, nil
}

// Columns returns the ordered column specs for a table. With visibleOnly set,
// columns flagged hidden are excluded. Unknown tables yield nil.
func Columns(table Table, visibleOnly bool) []ColumnSpec {
	s := Get(table)
	if s == nil {
		return nil
	}
	if !visibleOnly {
		out := make([]ColumnSpec, len(s.Columns))
		copy(out, s.Columns)
		return out
	}
	var out []ColumnSpec
	for _, col := range s.Columns {
		if !col.Hidden {
			out = append(out, col)
		}
	}
	return out
}

// RequiredColumns returns the keys of all required columns of a table.
func RequiredColumns(table Table) []string {
	s := Get(table)
	if s == nil {
		return nil
	}
	var keys []string
	for _, col := range s.Columns {
		if col.Required {
			keys = append(keys, col.Key)
		}
	}
	return keys
}

// PriorityTables returns the fixed ordered set of tables surfaced as primary
// tabs in the data manager.
func PriorityTables() []Table {
	out := make([]Table, len(priorityTables))
	copy(out, priorityTables)
	return out
}

// ValidateRow checks a row against the create-time rules of a table: every
// required column must be present and, for string values, non-blank after
// trimming. All failures are reported at once, one message per column,
// referencing the column label.
func ValidateRow(table Table, row map[string]any) ValidationResult {
	s := Get(table)
	if s == nil {
		return ValidationResult{Valid: false, Errors: []string{"Unknown table"}}
	}

	var errs []string
	for _, col := range s.Columns {
		if !col.Required {
			continue
		}
		value, ok := row[col.Key]
		if !ok || value == nil {
			errs = append(errs, fmt.Sprintf("%s is required", col.Label))
			continue
		}
		if str, isStr := value.(string); isStr && strings.TrimSpace(str) == "" {
			errs = append(errs, fmt.Sprintf("%s is required", col.Label))
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// ZeroValue returns the add-row default for a column type: empty string for
// text-like columns, false for booleans, zero for numbers and an empty slice
// for arrays.
func ZeroValue(t ColumnType) any {
	switch t {
	case TypeBoolean:
		return false
	case TypeNumber:
		return float64(0)
	case TypeArray:
		return []string{}
	default:
		return ""
	}
}
