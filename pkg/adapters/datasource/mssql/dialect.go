//go:build mssql || all_adapters

package mssql

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/ekaya-inc/fmpdb/pkg/dialect"
	"github.com/ekaya-inc/fmpdb/pkg/models"
	sqlbind "github.com/ekaya-inc/fmpdb/pkg/sql"
)

// DialectName identifies the SQL Server dialect.
const DialectName = "mssql"

var columnTypes = map[string]string{
	dialect.LogicalPK:        "int IDENTITY PRIMARY KEY",
	dialect.LogicalString:    "nvarchar(255)",
	dialect.LogicalText:      "nvarchar(max)",
	dialect.LogicalInteger:   "int",
	dialect.LogicalFloat:     "float",
	dialect.LogicalDecimal:   "decimal(18,0)",
	dialect.LogicalDateTime:  "datetime2",
	dialect.LogicalTimestamp: "datetime2",
	dialect.LogicalTime:      "time",
	dialect.LogicalDate:      "date",
	dialect.LogicalBinary:    "varbinary(max)",
	dialect.LogicalBoolean:   "bit",
	dialect.LogicalMoney:     "decimal(19,4)",
}

var numericTypes = map[string]bool{
	"tinyint": true, "smallint": true, "int": true, "bigint": true,
	"decimal": true, "numeric": true, "money": true, "smallmoney": true,
	"float": true, "real": true, "bit": true,
}

var unicodeTypes = map[string]bool{
	"nchar": true, "nvarchar": true, "ntext": true,
}

var orderByPattern = regexp.MustCompile(`(?i)\sORDER\s+BY\s`)

// Dialect renders SQL for SQL Server.
type Dialect struct{}

var _ dialect.Dialect = (*Dialect)(nil)

func NewDialect() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Name() string { return DialectName }

// QuoteIdentifier wraps name in brackets, doubling any ']' like QUOTENAME.
func (d *Dialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d *Dialect) PhysicalType(logical string) string {
	return dialect.MapPhysicalType(columnTypes, logical)
}

// Typecast renders value for a column of physicalType. Unicode columns get
// N'' literals and binary columns 0x hex literals.
func (d *Dialect) Typecast(value any, physicalType string, allowNull bool) string {
	if allowNull && dialect.IsEmptyValue(value) {
		return ""
	}

	t := dialect.NormalizeType(physicalType)
	switch {
	case numericTypes[t]:
		if n, ok := dialect.NumericText(value); ok {
			return n
		}
	case unicodeTypes[t]:
		return "N" + sqlbind.QuoteString(dialect.ValueText(value, sqlbind.TimestampLayout))
	case t == "date":
		return sqlbind.QuoteString(dialect.ValueText(value, sqlbind.DateLayout))
	case t == "time":
		return sqlbind.QuoteString(dialect.ValueText(value, sqlbind.TimeLayout))
	case strings.HasPrefix(t, "datetime") || t == "smalldatetime":
		return sqlbind.QuoteString(dialect.ValueText(value, sqlbind.TimestampLayout))
	case t == "binary" || t == "varbinary" || t == "image":
		if b, ok := value.([]byte); ok {
			return "0x" + hex.EncodeToString(b)
		}
	}
	return sqlbind.QuoteString(dialect.ValueText(value, sqlbind.TimestampLayout))
}

func (d *Dialect) SelectColumn(column *models.ColumnMetadata, prefix string) string {
	return prefix + column.RawName
}

// ApplyPagination appends OFFSET ... ROWS FETCH NEXT ... ROWS ONLY. SQL
// Server only accepts these after an ORDER BY, so one is added when the
// statement has none.
func (d *Dialect) ApplyPagination(sql string, limit, offset int) string {
	if limit < 0 && offset <= 0 {
		return sql
	}
	if !orderByPattern.MatchString(sql) {
		sql += " ORDER BY (SELECT NULL)"
	}
	if offset < 0 {
		offset = 0
	}
	sql += fmt.Sprintf(" OFFSET %d ROWS", offset)
	if limit >= 0 {
		sql += fmt.Sprintf(" FETCH NEXT %d ROWS ONLY", limit)
	}
	return sql
}

// CompositeInCondition expands to an OR of per-tuple equalities; SQL Server
// has no row value IN.
func (d *Dialect) CompositeInCondition(columns []string, tuples [][]string) string {
	entries := make([]string, len(tuples))
	for i, tuple := range tuples {
		parts := make([]string, len(columns))
		for j, column := range columns {
			parts[j] = column + "=" + tuple[j]
		}
		entries[i] = "(" + strings.Join(parts, " AND ") + ")"
	}
	return "(" + strings.Join(entries, " OR ") + ")"
}

func (d *Dialect) PrimaryKeyDefaultValue() string { return "DEFAULT" }

// LastInsertFallback reads IDENT_CURRENT of the table, the last identity
// value generated for it by any session.
func (d *Dialect) LastInsertFallback(table *models.TableMetadata) (string, bool) {
	if table == nil || table.SequenceName == nil {
		return "", false
	}
	key, ok := table.SingleKey()
	if !ok {
		return "", false
	}
	if key.AutoIncrement {
		return "SELECT IDENT_CURRENT(" + sqlbind.QuoteString(table.RawName) + ")", true
	}
	return fmt.Sprintf("SELECT MAX(%s) FROM %s", key.RawName, table.RawName), true
}

// SupportsDDL rejects the operations SQL Server spells with sp_rename or
// needs extra catalog knowledge for.
func (d *Dialect) SupportsDDL(op dialect.DDLOp) bool {
	switch op {
	case dialect.DDLRenameTable, dialect.DDLRenameColumn, dialect.DDLAlterColumn, dialect.DDLDropIndex:
		return false
	}
	return true
}
