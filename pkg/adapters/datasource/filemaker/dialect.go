package filemaker

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/fmpdb/pkg/dialect"
	"github.com/ekaya-inc/fmpdb/pkg/models"
	sqlbind "github.com/ekaya-inc/fmpdb/pkg/sql"
)

// DialectName identifies the FileMaker ODBC dialect.
const DialectName = "filemaker"

// columnTypes maps logical column kinds to FileMaker field types.
var columnTypes = map[string]string{
	dialect.LogicalPK:        "text",
	dialect.LogicalString:    "text",
	dialect.LogicalText:      "text",
	dialect.LogicalInteger:   "decimal",
	dialect.LogicalFloat:     "decimal",
	dialect.LogicalDecimal:   "decimal",
	dialect.LogicalDateTime:  "timestamp",
	dialect.LogicalTimestamp: "timestamp",
	dialect.LogicalTime:      "time",
	dialect.LogicalDate:      "date",
	dialect.LogicalBinary:    "blob",
	dialect.LogicalBoolean:   "decimal",
	dialect.LogicalMoney:     "decimal",
}

// Dialect renders SQL for the FileMaker ODBC driver. FileMaker has no
// parameter binding, pages with OFFSET/FETCH FIRST and writes dates as
// ODBC escape sequences.
type Dialect struct{}

var _ dialect.Dialect = (*Dialect)(nil)

// NewDialect returns the FileMaker dialect.
func NewDialect() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Name() string { return DialectName }

// QuoteIdentifier wraps name in double quotes.
func (d *Dialect) QuoteIdentifier(name string) string {
	return dialect.QuoteDoubled(name, `"`)
}

// PhysicalType maps an abstract column kind to its FileMaker field type.
func (d *Dialect) PhysicalType(logical string) string {
	return dialect.MapPhysicalType(columnTypes, logical)
}

// Typecast renders value as a literal for a FileMaker field of physicalType.
//
// Text and container fields are quoted, number fields are written bare, and
// date, time and timestamp fields use the ODBC escapes {d '...'}, {t '...'}
// and {ts '...'}. A value that is not a valid number is quoted rather than
// written bare.
func (d *Dialect) Typecast(value any, physicalType string, allowNull bool) string {
	if allowNull && dialect.IsEmptyValue(value) {
		return ""
	}

	switch dialect.NormalizeType(physicalType) {
	case "text", "varchar", "char", "binary", "blob":
		return sqlbind.QuoteString(dialect.ValueText(value, sqlbind.TimestampLayout))
	case "time":
		return "{t " + sqlbind.QuoteString(dialect.ValueText(value, sqlbind.TimeLayout)) + "}"
	case "date":
		return "{d " + sqlbind.QuoteString(dialect.ValueText(value, sqlbind.DateLayout)) + "}"
	case "timestamp":
		return "{ts " + sqlbind.QuoteString(dialect.ValueText(value, sqlbind.TimestampLayout)) + "}"
	default:
		// decimal and anything the catalog reports that we do not know
		if n, ok := dialect.NumericText(value); ok {
			return n
		}
		return sqlbind.QuoteString(dialect.ValueText(value, sqlbind.TimestampLayout))
	}
}

// SelectColumn casts container fields to text; the driver cannot return
// their binary content in a result set.
func (d *Dialect) SelectColumn(column *models.ColumnMetadata, prefix string) string {
	switch dialect.NormalizeType(column.DBType) {
	case "binary", "blob":
		return "CAST(" + prefix + column.RawName + " AS VARCHAR(255))"
	}
	return prefix + column.RawName
}

// ApplyPagination appends OFFSET n ROWS and FETCH FIRST n ROWS ONLY.
func (d *Dialect) ApplyPagination(sql string, limit, offset int) string {
	if offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d ROWS", offset)
	}
	if limit >= 0 {
		sql += fmt.Sprintf(" FETCH FIRST  %d ROWS ONLY", limit)
	}
	return sql
}

// CompositeInCondition concatenates the key columns with ',' and compares
// the result with the equally concatenated tuples. FileMaker has no row
// value constructors.
func (d *Dialect) CompositeInCondition(columns []string, tuples [][]string) string {
	const sep = "||','||"
	entries := make([]string, len(tuples))
	for i, tuple := range tuples {
		entries[i] = strings.Join(tuple, sep)
	}
	return strings.Join(columns, sep) + " IN (" + strings.Join(entries, ", ") + ")"
}

func (d *Dialect) PrimaryKeyDefaultValue() string { return "NULL" }

// LastInsertFallback reads back the largest key value. FileMaker reports no
// generated keys, so this is the best available answer and is unreliable
// under concurrent inserts.
func (d *Dialect) LastInsertFallback(table *models.TableMetadata) (string, bool) {
	if table == nil || table.SequenceName == nil {
		return "", false
	}
	key, ok := table.SingleKey()
	if !ok {
		return "", false
	}
	return fmt.Sprintf("SELECT MAX(%s) FROM %s", key.RawName, table.RawName), true
}

// SupportsDDL reports CREATE TABLE only. FileMaker ODBC has no ALTER or DROP.
func (d *Dialect) SupportsDDL(op dialect.DDLOp) bool {
	return op == dialect.DDLCreateTable
}
