// Package grid - read-mode cell formatting, editor selection and sorting.
package grid

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/atelierhq/backstage/internal/entity"
	"github.com/atelierhq/backstage/internal/schema"
)

// textareaPreviewLimit bounds read-mode rendering of long text columns.
const textareaPreviewLimit = 100

// FormatCell renders a value for read mode according to the column type:
// booleans as Yes/No, arrays comma-joined, dates as a readable date,
// textareas truncated, images as their filename.
func FormatCell(col schema.ColumnSpec, value any) string {
	if value == nil {
		return ""
	}

	switch col.Type {
	case schema.TypeBoolean:
		if b, ok := value.(bool); ok && b {
			return "Yes"
		}
		return "No"
	case schema.TypeArray:
		switch v := value.(type) {
		case []string:
			return strings.Join(v, ", ")
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprintf("%v", item))
			}
			return strings.Join(parts, ", ")
		}
		return stringify(value)
	case schema.TypeDate:
		if t, ok := value.(time.Time); ok {
			return t.Format("Jan 2, 2006")
		}
		return stringify(value)
	case schema.TypeTextarea:
		return truncate(stringify(value), textareaPreviewLimit)
	case schema.TypeImage:
		s := stringify(value)
		if s == "" {
			return ""
		}
		return path.Base(s)
	default:
		return stringify(value)
	}
}

// EditorKind names the inline editor widget for a column type.
func EditorKind(col schema.ColumnSpec) string {
	switch col.Type {
	case schema.TypeSelect:
		return "select"
	case schema.TypeTextarea:
		return "textarea"
	case schema.TypeDate:
		return "date"
	case schema.TypeArray:
		return "tags"
	case schema.TypeBoolean:
		return "toggle"
	case schema.TypeNumber:
		return "number"
	case schema.TypeImage:
		return "image"
	default:
		return "text"
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// sortRows orders rows by one column. Rows with a null value in the sort
// column always sort after all non-null rows, in both directions; non-null
// values compare naturally.
func sortRows(rows []entity.Row, column string, asc bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, aOK := rows[i][column]
		b, bOK := rows[j][column]
		aNull := !aOK || a == nil
		bNull := !bOK || b == nil

		if aNull || bNull {
			// Nulls last regardless of direction.
			return !aNull && bNull
		}

		less := compareValues(a, b)
		if asc {
			return less < 0
		}
		return less > 0
	})
}

func compareValues(a, b any) int {
	if af, aOK := toFloat(a); aOK {
		if bf, bOK := toFloat(b); bOK {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}

	if at, aOK := a.(time.Time); aOK {
		if bt, bOK := b.(time.Time); bOK {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}

	if ab, aOK := a.(bool); aOK {
		if bb, bOK := b.(bool); bOK {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			default:
				return 1
			}
		}
	}

	return strings.Compare(stringify(a), stringify(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
