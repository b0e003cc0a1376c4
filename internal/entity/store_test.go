package entity

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/backstage/internal/schema"
)

func testStore() *Store {
	return NewStore(nil, zerolog.Nop())
}

func TestRowID(t *testing.T) {
	assert.Equal(t, "abc", Row{"id": "abc"}.ID())
	assert.Equal(t, "", Row{}.ID())
	assert.Equal(t, "", Row{"id": nil}.ID())
}

func TestWritableValuesStripsServerOwned(t *testing.T) {
	s := testStore()
	ts := schema.Get(schema.TablePosts)
	require.NotNil(t, ts)

	cols, vals := s.writableValues(ts, Row{
		"id":         "should-be-dropped",
		"created_at": time.Now(),
		"updated_at": time.Now(),
		"title":      "Hello",
		"slug":       "hello",
		"unknown":    "also dropped",
	})

	assert.Equal(t, len(cols), len(vals))
	assert.ElementsMatch(t, []string{`"title"`, `"slug"`}, cols)
}

func TestWritableValuesPreservesColumnOrder(t *testing.T) {
	s := testStore()
	ts := schema.Get(schema.TablePosts)

	cols, _ := s.writableValues(ts, Row{"slug": "x", "title": "y"})
	// Schema order, not map iteration order.
	assert.Equal(t, []string{`"title"`, `"slug"`}, cols)
}

func TestEncodeValueArrays(t *testing.T) {
	col := schema.ColumnSpec{Key: "tags", Type: schema.TypeArray}

	// All three accepted input shapes wrap for the driver.
	assert.NotNil(t, encodeValue(col, []string{"a", "b"}))
	assert.NotNil(t, encodeValue(col, []any{"a", 2}))
	assert.NotNil(t, encodeValue(col, "a, b , "))

	// Non-array columns pass through untouched.
	text := schema.ColumnSpec{Key: "title", Type: schema.TypeText}
	assert.Equal(t, "hello", encodeValue(text, "hello"))
	assert.Nil(t, encodeValue(col, nil))
}

func TestEncodeValueBlankDateBecomesNull(t *testing.T) {
	col := schema.ColumnSpec{Key: "published_at", Type: schema.TypeDate}

	assert.Nil(t, encodeValue(col, ""))
	assert.Nil(t, encodeValue(col, "  "))
	assert.Nil(t, encodeValue(col, nil))

	// Real values bind as-is.
	now := time.Now()
	assert.Equal(t, now, encodeValue(col, now))
	assert.Equal(t, "2025-03-09", encodeValue(col, "2025-03-09"))
}

func TestDecodeValue(t *testing.T) {
	tags := &schema.ColumnSpec{Key: "tags", Type: schema.TypeArray}

	assert.Equal(t, []string{"a", "b"}, decodeValue(tags, []byte("{a,b}")))
	assert.Equal(t, []string{"a", "b"}, decodeValue(tags, "{a,b}"))
	assert.Equal(t, []string{}, decodeValue(tags, []byte("{}")))

	title := &schema.ColumnSpec{Key: "title", Type: schema.TypeText}
	assert.Equal(t, "hello", decodeValue(title, []byte("hello")))
	assert.Nil(t, decodeValue(title, nil))
	// Unknown columns still normalize bytes.
	assert.Equal(t, "x", decodeValue(nil, []byte("x")))
}

type fakeRows struct {
	cols []string
	data [][]any
	pos  int
}

func (f *fakeRows) Next() bool {
	if f.pos >= len(f.data) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeRows) Columns() ([]string, error) { return f.cols, nil }

func (f *fakeRows) Scan(dest ...any) error {
	row := f.data[f.pos-1]
	for i := range dest {
		*(dest[i].(*any)) = row[i]
	}
	return nil
}

func (f *fakeRows) Err() error { return nil }

func TestScanRows(t *testing.T) {
	ts := schema.Get(schema.TablePosts)
	rows := &fakeRows{
		cols: []string{"id", "title", "tags"},
		data: [][]any{
			{"id-1", []byte("First"), []byte("{go,web}")},
			{"id-2", []byte("Second"), nil},
		},
	}

	out, err := scanRows(rows, ts)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "First", out[0]["title"])
	assert.Equal(t, []string{"go", "web"}, out[0]["tags"])
	assert.Nil(t, out[1]["tags"])
	assert.Equal(t, "id-2", out[1].ID())
}

func TestListRejectsUnknownSortColumn(t *testing.T) {
	s := testStore()
	_, err := s.List(context.Background(), schema.TablePosts, ListOptions{SortField: "no_such_column"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_such_column")
}

func TestListRejectsUnknownFilterColumn(t *testing.T) {
	s := testStore()
	_, err := s.List(context.Background(), schema.TablePosts, ListOptions{
		Filters: map[string]any{"no_such_column": true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no_such_column")
}

func TestResolveUnknownTable(t *testing.T) {
	s := testStore()
	_, _, err := s.resolve(schema.Table("nonexistent_table"))
	assert.Error(t, err)

	ts, name, err := s.resolve(schema.TableWorkflows)
	require.NoError(t, err)
	assert.Equal(t, `"workflows"`, name)
	assert.Equal(t, schema.TableWorkflows, ts.Table)
}
