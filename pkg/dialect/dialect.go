// Package dialect defines the capabilities a datasource dialect provides to
// the dialect-agnostic command builder.
package dialect

import (
	"github.com/ekaya-inc/fmpdb/pkg/models"
)

// Dialect renders the dialect-specific parts of SQL text.
type Dialect interface {
	// Name identifies the dialect in errors and logs.
	Name() string

	// QuoteIdentifier quotes a single table, column or alias name.
	QuoteIdentifier(name string) string

	// PhysicalType maps a logical column kind (see Logical* constants) to
	// the dialect's physical type. Unknown kinds are returned unchanged.
	PhysicalType(logical string) string

	// Typecast renders value as a literal for a column of physicalType.
	// An absent or empty value for a nullable column renders as "".
	Typecast(value any, physicalType string, allowNull bool) string

	// SelectColumn renders a column in an expanded select list. prefix is
	// either empty or a quoted alias followed by '.'.
	SelectColumn(column *models.ColumnMetadata, prefix string) string

	// ApplyPagination appends the dialect's limit/offset syntax. A negative
	// limit or a non-positive offset disables that part.
	ApplyPagination(sql string, limit, offset int) string

	// CompositeInCondition compares several key columns against several
	// tuples of already rendered literals.
	CompositeInCondition(columns []string, tuples [][]string) string

	// PrimaryKeyDefaultValue is inserted into key columns when an INSERT
	// would otherwise have no fields.
	PrimaryKeyDefaultValue() string

	// LastInsertFallback returns the query that reads back the last
	// inserted key of table, and false if the table has none.
	LastInsertFallback(table *models.TableMetadata) (string, bool)

	// SupportsDDL reports whether the dialect can express op.
	SupportsDDL(op DDLOp) bool
}

// DDLOp names a schema change operation.
type DDLOp string

const (
	DDLCreateTable    DDLOp = "create table"
	DDLTruncateTable  DDLOp = "truncate table"
	DDLRenameTable    DDLOp = "rename table"
	DDLDropColumn     DDLOp = "drop column"
	DDLRenameColumn   DDLOp = "rename column"
	DDLAlterColumn    DDLOp = "alter column"
	DDLAddForeignKey  DDLOp = "add foreign key"
	DDLDropForeignKey DDLOp = "drop foreign key"
	DDLDropIndex      DDLOp = "drop index"
	DDLAddPrimaryKey  DDLOp = "add primary key"
	DDLDropPrimaryKey DDLOp = "drop primary key"
)

// Logical column kinds understood by PhysicalType.
const (
	LogicalPK        = "pk"
	LogicalString    = "string"
	LogicalText      = "text"
	LogicalInteger   = "integer"
	LogicalFloat     = "float"
	LogicalDecimal   = "decimal"
	LogicalDateTime  = "datetime"
	LogicalTimestamp = "timestamp"
	LogicalTime      = "time"
	LogicalDate      = "date"
	LogicalBinary    = "binary"
	LogicalBoolean   = "boolean"
	LogicalMoney     = "money"
)
