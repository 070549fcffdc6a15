//go:build postgres || all_adapters

package postgres

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/ekaya-inc/fmpdb/pkg/dialect"
	"github.com/ekaya-inc/fmpdb/pkg/models"
	sqlbind "github.com/ekaya-inc/fmpdb/pkg/sql"
)

// DialectName identifies the PostgreSQL dialect.
const DialectName = "postgres"

var columnTypes = map[string]string{
	dialect.LogicalPK:        "serial NOT NULL PRIMARY KEY",
	dialect.LogicalString:    "varchar(255)",
	dialect.LogicalText:      "text",
	dialect.LogicalInteger:   "integer",
	dialect.LogicalFloat:     "double precision",
	dialect.LogicalDecimal:   "numeric(10,0)",
	dialect.LogicalDateTime:  "timestamp(0)",
	dialect.LogicalTimestamp: "timestamp(0)",
	dialect.LogicalTime:      "time(0)",
	dialect.LogicalDate:      "date",
	dialect.LogicalBinary:    "bytea",
	dialect.LogicalBoolean:   "boolean",
	dialect.LogicalMoney:     "numeric(19,4)",
}

var numericTypes = map[string]bool{
	"smallint": true, "integer": true, "bigint": true,
	"int": true, "int2": true, "int4": true, "int8": true,
	"smallserial": true, "serial": true, "bigserial": true,
	"numeric": true, "decimal": true,
	"real": true, "double precision": true, "float4": true, "float8": true,
}

// Dialect renders SQL for PostgreSQL.
type Dialect struct{}

var _ dialect.Dialect = (*Dialect)(nil)

func NewDialect() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Name() string { return DialectName }

func (d *Dialect) QuoteIdentifier(name string) string {
	return dialect.QuoteDoubled(name, `"`)
}

func (d *Dialect) PhysicalType(logical string) string {
	return dialect.MapPhysicalType(columnTypes, logical)
}

// Typecast renders value for a column of physicalType. Numbers are written
// bare, booleans as TRUE or FALSE, bytea as an escaped hex string and
// everything else quoted.
func (d *Dialect) Typecast(value any, physicalType string, allowNull bool) string {
	if allowNull && dialect.IsEmptyValue(value) {
		return ""
	}

	t := dialect.NormalizeType(physicalType)
	switch {
	case t == "boolean" || t == "bool":
		if cast.ToBool(dialect.ValueText(value, sqlbind.TimestampLayout)) {
			return "TRUE"
		}
		return "FALSE"
	case numericTypes[t]:
		if n, ok := dialect.NumericText(value); ok {
			return n
		}
	case t == "date":
		return sqlbind.QuoteString(dialect.ValueText(value, sqlbind.DateLayout))
	case strings.HasPrefix(t, "timestamp"):
		return sqlbind.QuoteString(dialect.ValueText(value, sqlbind.TimestampLayout))
	case strings.HasPrefix(t, "time"):
		return sqlbind.QuoteString(dialect.ValueText(value, sqlbind.TimeLayout))
	case t == "bytea":
		if b, ok := value.([]byte); ok {
			return `'\x` + hex.EncodeToString(b) + `'`
		}
	}
	return sqlbind.QuoteString(dialect.ValueText(value, sqlbind.TimestampLayout))
}

func (d *Dialect) SelectColumn(column *models.ColumnMetadata, prefix string) string {
	return prefix + column.RawName
}

// ApplyPagination appends LIMIT and OFFSET.
func (d *Dialect) ApplyPagination(sql string, limit, offset int) string {
	if limit >= 0 {
		sql += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d", offset)
	}
	return sql
}

// CompositeInCondition uses row value constructors: (a, b) IN ((1, 2), ...).
func (d *Dialect) CompositeInCondition(columns []string, tuples [][]string) string {
	entries := make([]string, len(tuples))
	for i, tuple := range tuples {
		entries[i] = "(" + strings.Join(tuple, ", ") + ")"
	}
	return "(" + strings.Join(columns, ", ") + ") IN (" + strings.Join(entries, ", ") + ")"
}

func (d *Dialect) PrimaryKeyDefaultValue() string { return "DEFAULT" }

// LastInsertFallback reads the last value handed out by the key's sequence,
// which under concurrent writers may belong to another insert. An empty
// sequence name falls back to MAX() of the key.
func (d *Dialect) LastInsertFallback(table *models.TableMetadata) (string, bool) {
	if table == nil || table.SequenceName == nil {
		return "", false
	}
	if *table.SequenceName != "" {
		// catalog sequence names are already valid regclass text
		return "SELECT last_value FROM " + *table.SequenceName, true
	}
	key, ok := table.SingleKey()
	if !ok {
		return "", false
	}
	return fmt.Sprintf("SELECT MAX(%s) FROM %s", key.RawName, table.RawName), true
}

func (d *Dialect) SupportsDDL(op dialect.DDLOp) bool { return true }
