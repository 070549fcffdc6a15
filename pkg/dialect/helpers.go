package dialect

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/ekaya-inc/fmpdb/pkg/apperrors"
)

// MapPhysicalType looks up the first word of logical in types and keeps any
// trailing modifiers, so "string NOT NULL" maps like "string".
func MapPhysicalType(types map[string]string, logical string) string {
	trimmed := strings.TrimSpace(logical)
	word, rest, _ := strings.Cut(trimmed, " ")
	physical, ok := types[strings.ToLower(word)]
	if !ok {
		return logical
	}
	if rest == "" {
		return physical
	}
	return physical + " " + rest
}

// NormalizeType lower-cases a catalog type and drops any size or precision,
// so "VARCHAR(255)" becomes "varchar".
func NormalizeType(physicalType string) string {
	t := strings.ToLower(strings.TrimSpace(physicalType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

// IsEmptyValue reports the values Typecast treats as absent.
func IsEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []byte:
		return len(v) == 0
	case *string:
		return v == nil || *v == ""
	}
	return false
}

// ValueText converts a Go value to the text placed inside a literal. Times use
// layout, booleans become 1 or 0, and everything else goes through cast.
func ValueText(value any, layout string) string {
	switch v := value.(type) {
	case time.Time:
		return v.Format(layout)
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.Format(layout)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case []byte:
		return string(v)
	}
	return cast.ToString(value)
}

// NumericText returns the canonical text of value when it is a valid number.
func NumericText(value any) (string, bool) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v.String(), true
	case bool:
		if v {
			return "1", true
		}
		return "0", true
	}
	text := strings.TrimSpace(ValueText(value, time.RFC3339))
	if text == "" {
		return "", false
	}
	if _, err := decimal.NewFromString(text); err != nil {
		return "", false
	}
	return text, true
}

// QuoteDoubled wraps name in q, doubling any q inside it.
func QuoteDoubled(name string, q string) string {
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// Unsupported returns the error reported for an operation d cannot express.
func Unsupported(d Dialect, op DDLOp) error {
	return &apperrors.UnsupportedOperationError{Dialect: d.Name(), Operation: string(op)}
}
