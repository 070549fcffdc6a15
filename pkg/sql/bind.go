package sql

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/ekaya-inc/fmpdb/pkg/apperrors"
	"github.com/ekaya-inc/fmpdb/pkg/models"
)

// Layouts used when rendering time values as ODBC escape literals.
const (
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04:05"
	TimestampLayout = "2006-01-02 15:04:05"
)

// NullLiteral is written for absent or empty values.
const NullLiteral = "NULL"

// QuoteString renders s as a single-quoted SQL string literal, doubling any
// embedded single quotes.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Literal renders a Go value as a self-contained SQL literal.
//
//   - nil, "" and empty byte slices render as NULL
//   - time.Time renders as an ODBC timestamp escape {ts '...'}
//   - slices and arrays render as a comma separated list of literals
//   - an Expression renders as its raw SQL, without binding its parameters
//   - everything else is converted to text and single-quoted
func Literal(value any) string {
	switch v := value.(type) {
	case nil:
		return NullLiteral
	case string:
		if v == "" {
			return NullLiteral
		}
		return QuoteString(v)
	case []byte:
		if len(v) == 0 {
			return NullLiteral
		}
		return QuoteString(string(v))
	case bool:
		if v {
			return "'1'"
		}
		return "'0'"
	case time.Time:
		return "{ts " + QuoteString(v.Format(TimestampLayout)) + "}"
	case models.Expression:
		return v.SQL
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return NullLiteral
		}
		return Literal(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return NullLiteral
		}
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = Literal(rv.Index(i).Interface())
		}
		return strings.Join(parts, ", ")
	}

	s, err := cast.ToStringE(value)
	if err != nil {
		s = fmt.Sprint(value)
	}
	return QuoteString(s)
}

// NormalizeParams strips the leading ':' from parameter names.
func NormalizeParams(params map[string]any) map[string]any {
	normalized := make(map[string]any, len(params))
	for name, value := range params {
		normalized[strings.TrimPrefix(name, ":")] = value
	}
	return normalized
}

// BindValue substitutes a single named parameter. The name may be given with
// or without its leading ':'. Every other slot is left in place.
func BindValue(sqlText, name string, value any) string {
	name = strings.TrimPrefix(name, ":")
	t := Parse(sqlText)
	out, _ := t.Render(map[string]string{name: renderPartial(value)})
	return out
}

// BindValues substitutes every named parameter in one pass and returns a
// self-contained statement. Values that have no slot are ignored. A slot with
// no value fails with apperrors.ErrUnboundParameter.
//
// Example:
//
//	sql, err := BindValues("SELECT * FROM \"Contacts\" WHERE \"Name\" = :name", map[string]any{"name": "O'Hara"})
//	// sql == "SELECT * FROM \"Contacts\" WHERE \"Name\" = 'O''Hara'"
func BindValues(sqlText string, params map[string]any) (string, error) {
	if !strings.Contains(sqlText, ":") {
		return sqlText, nil
	}

	t := Parse(sqlText)
	if !t.HasSlots() {
		return sqlText, nil
	}

	params = NormalizeParams(params)
	rendered := make(map[string]string, len(params))
	for _, name := range t.Names() {
		value, ok := params[name]
		if !ok {
			continue
		}
		lit, err := renderValue(value)
		if err != nil {
			return "", fmt.Errorf("parameter :%s: %w", name, err)
		}
		rendered[name] = lit
	}

	out, missing := t.Render(rendered)
	if len(missing) > 0 {
		return "", unboundError(missing)
	}
	return out, nil
}

// renderValue renders a value for BindValues. An Expression is bound with
// its own parameters before it is spliced in.
func renderValue(value any) (string, error) {
	if expr, ok := value.(models.Expression); ok {
		return BindValues(expr.SQL, expr.Params)
	}
	if expr, ok := value.(*models.Expression); ok && expr != nil {
		return BindValues(expr.SQL, expr.Params)
	}
	return Literal(value), nil
}

// renderPartial renders a value for BindValue, where unbound slots inside an
// Expression are tolerated.
func renderPartial(value any) string {
	var expr *models.Expression
	switch v := value.(type) {
	case models.Expression:
		expr = &v
	case *models.Expression:
		expr = v
	}
	if expr == nil {
		return Literal(value)
	}

	t := Parse(expr.SQL)
	params := NormalizeParams(expr.Params)
	rendered := make(map[string]string, len(params))
	for name, v := range params {
		rendered[name] = renderPartial(v)
	}
	out, _ := t.Render(rendered)
	return out
}

func unboundError(missing []string) error {
	names := make([]string, len(missing))
	for i, name := range missing {
		names[i] = ":" + name
	}
	sort.Strings(names)
	return fmt.Errorf("%w: %s", apperrors.ErrUnboundParameter, strings.Join(names, ", "))
}
