// Package security provides SQL identifier safety for the entity store.
// Table and column names come from the static schema registry, but every name
// is still validated and quoted before it is interpolated into SQL.
package security

import (
	"fmt"
	"regexp"
	"strings"
)

// validIdentifier matches valid PostgreSQL identifiers: lowercase letters,
// digits and underscores, starting with a letter or underscore.
var validIdentifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidateIdentifier checks that a string is usable as a SQL identifier.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 63 {
		return fmt.Errorf("identifier too long (max 63 characters)")
	}
	if !validIdentifier.MatchString(name) {
		return fmt.Errorf("invalid identifier %q: only lowercase letters, digits and underscores, starting with a letter or underscore", name)
	}
	if reservedWords[name] {
		return fmt.Errorf("%q is a reserved SQL keyword", name)
	}
	return nil
}

// QuoteIdentifier quotes a PostgreSQL identifier. Use only after validation.
func QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, `"`, `""`)
	return `"` + escaped + `"`
}

// SafeIdentifier validates and quotes an identifier in one step.
func SafeIdentifier(name string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", err
	}
	return QuoteIdentifier(name), nil
}

// EscapeLikePattern escapes %, _ and \ so a search term matches literally
// inside a LIKE/ILIKE pattern.
func EscapeLikePattern(pattern string) string {
	pattern = strings.ReplaceAll(pattern, `\`, `\\`)
	pattern = strings.ReplaceAll(pattern, `%`, `\%`)
	pattern = strings.ReplaceAll(pattern, `_`, `\_`)
	return pattern
}

var reservedWords = map[string]bool{
	"all": true, "analyse": true, "analyze": true, "and": true, "any": true,
	"array": true, "as": true, "asc": true, "asymmetric": true, "both": true,
	"case": true, "cast": true, "check": true, "collate": true, "column": true,
	"constraint": true, "create": true, "current_catalog": true, "current_date": true,
	"current_role": true, "current_time": true, "current_timestamp": true,
	"current_user": true, "default": true, "deferrable": true, "desc": true,
	"distinct": true, "do": true, "else": true, "end": true, "except": true,
	"false": true, "fetch": true, "for": true, "foreign": true, "from": true,
	"grant": true, "group": true, "having": true, "in": true, "initially": true,
	"intersect": true, "into": true, "lateral": true, "leading": true, "limit": true,
	"localtime": true, "localtimestamp": true, "not": true, "null": true, "offset": true,
	"on": true, "only": true, "or": true, "order": true, "placing": true,
	"primary": true, "references": true, "returning": true, "select": true,
	"session_user": true, "some": true, "symmetric": true, "table": true,
	"then": true, "to": true, "trailing": true, "true": true, "union": true,
	"unique": true, "user": true, "using": true, "variadic": true, "when": true,
	"where": true, "window": true, "with": true,
}
