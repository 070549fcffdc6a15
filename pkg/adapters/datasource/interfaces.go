package datasource

import (
	"context"

	"github.com/ekaya-inc/fmpdb/pkg/models"
)

// ConnectionTester tests database connectivity.
// Each implementation owns its connection and must be closed when done.
type ConnectionTester interface {
	// TestConnection verifies the database is reachable with valid credentials.
	TestConnection(ctx context.Context) error

	// Close releases the database connection.
	Close() error
}

// RowQuerier runs a self-contained SQL statement and returns its rows.
// Statements never carry a separate parameter list; values have already
// been substituted into the text.
type RowQuerier interface {
	Query(ctx context.Context, sqlQuery string) (*QueryExecutionResult, error)
}

// QueryExecutor executes generated SQL against a datasource.
// Each implementation owns its connection and must be closed when done.
type QueryExecutor interface {
	RowQuerier

	// Execute runs an INSERT, UPDATE, DELETE or DDL statement and reports
	// the number of affected rows.
	Execute(ctx context.Context, sqlStatement string) (*ExecuteResult, error)

	// QuoteIdentifier quotes a table or column name for this datasource.
	QuoteIdentifier(name string) string

	// Close releases any resources held by the executor.
	Close() error
}

// SchemaIntrospector reads table metadata from a datasource catalog.
type SchemaIntrospector interface {
	// FindTableNames returns the distinct base table names.
	FindTableNames(ctx context.Context) ([]string, error)

	// LoadTable builds the metadata of one table. It returns (nil, nil)
	// when the table does not exist.
	LoadTable(ctx context.Context, name string) (*models.TableMetadata, error)

	// Close releases the catalog connection.
	Close() error
}

// ExecuteResult holds the results from executing a DML or DDL statement.
type ExecuteResult struct {
	RowsAffected int64 `json:"rows_affected"`
}

// ColumnInfo describes a result column.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // database type name as reported by the driver
}

// QueryExecutionResult holds the rows returned by a query.
type QueryExecutionResult struct {
	Columns  []ColumnInfo     `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// Scalar returns the first column of the first row.
func (r *QueryExecutionResult) Scalar() (any, bool) {
	if r == nil || len(r.Rows) == 0 || len(r.Columns) == 0 {
		return nil, false
	}
	v, ok := r.Rows[0][r.Columns[0].Name]
	return v, ok
}
