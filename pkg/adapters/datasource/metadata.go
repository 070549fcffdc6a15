package datasource

import (
	"strings"

	"github.com/spf13/cast"
)

// CatalogRow is one row of a catalog query. Drivers differ in the case of
// column names and in whether text arrives as string or []byte, so lookups
// go through the helpers below.
type CatalogRow map[string]any

// Value returns the value of key, matching the column name case-insensitively.
func (r CatalogRow) Value(key string) (any, bool) {
	if v, ok := r[key]; ok {
		return v, true
	}
	for k, v := range r {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// String returns the value of key as text. Missing and NULL values are "".
func (r CatalogRow) String(key string) string {
	v, ok := r.Value(key)
	if !ok || v == nil {
		return ""
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return cast.ToString(v)
}

// Bool interprets the value of key as a flag. Text values such as "YES",
// "true" and "1" are true.
func (r CatalogRow) Bool(key string) bool {
	v, ok := r.Value(key)
	if !ok || v == nil {
		return false
	}
	s := strings.ToLower(strings.TrimSpace(r.String(key)))
	switch s {
	case "yes", "y":
		return true
	case "no", "n":
		return false
	}
	return cast.ToBool(s)
}

// Int returns the value of key as an int, or 0.
func (r CatalogRow) Int(key string) int {
	v, ok := r.Value(key)
	if !ok || v == nil {
		return 0
	}
	if b, ok := v.([]byte); ok {
		return cast.ToInt(string(b))
	}
	return cast.ToInt(v)
}

// CatalogRows converts a query result into catalog rows.
func CatalogRows(result *QueryExecutionResult) []CatalogRow {
	if result == nil {
		return nil
	}
	rows := make([]CatalogRow, len(result.Rows))
	for i, row := range result.Rows {
		rows[i] = CatalogRow(row)
	}
	return rows
}
