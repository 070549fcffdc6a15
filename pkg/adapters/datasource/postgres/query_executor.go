//go:build postgres || all_adapters

package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"github.com/ekaya-inc/fmpdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/fmpdb/pkg/logging"
	sqlbind "github.com/ekaya-inc/fmpdb/pkg/sql"
)

// QueryExecutor runs generated statements through pgx.
type QueryExecutor struct {
	adapter *Adapter
	dialect *Dialect
	types   *pgtype.Map
	logger  *zap.Logger
}

// NewQueryExecutor creates a PostgreSQL query executor using the connection manager.
func NewQueryExecutor(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, datasourceID uuid.UUID, userID string, logger *zap.Logger) (*QueryExecutor, error) {
	adapter, err := NewAdapter(ctx, cfg, connMgr, datasourceID, userID)
	if err != nil {
		return nil, err
	}
	return NewQueryExecutorFromAdapter(adapter, logger), nil
}

// NewQueryExecutorFromAdapter builds an executor over an existing adapter.
func NewQueryExecutorFromAdapter(adapter *Adapter, logger *zap.Logger) *QueryExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryExecutor{
		adapter: adapter,
		dialect: NewDialect(),
		types:   pgtype.NewMap(),
		logger:  logger.Named("postgres"),
	}
}

// Query runs a SELECT statement and returns all of its rows.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string) (*datasource.QueryExecutionResult, error) {
	validation := sqlbind.ValidateAndNormalize(sqlQuery)
	if validation.Error != nil {
		return nil, validation.Error
	}
	e.logger.Debug("query", zap.String("sql", logging.SanitizeStatement(validation.NormalizedSQL)))

	rows, err := e.adapter.Pool().Query(ctx, validation.NormalizedSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]datasource.ColumnInfo, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = datasource.ColumnInfo{Name: fd.Name, Type: e.typeName(fd.DataTypeOID)}
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}
		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = values[i]
		}
		resultRows = append(resultRows, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &datasource.QueryExecutionResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}

func (e *QueryExecutor) typeName(oid uint32) string {
	if t, ok := e.types.TypeForOID(oid); ok {
		return strings.ToUpper(t.Name)
	}
	return fmt.Sprintf("OID_%d", oid)
}

// Execute runs an INSERT, UPDATE, DELETE or DDL statement.
func (e *QueryExecutor) Execute(ctx context.Context, sqlStatement string) (*datasource.ExecuteResult, error) {
	validation := sqlbind.ValidateAndNormalize(sqlStatement)
	if validation.Error != nil {
		return nil, validation.Error
	}
	if validation.NormalizedSQL == "" {
		return nil, fmt.Errorf("empty statement")
	}
	e.logger.Debug("execute", zap.String("sql", logging.SanitizeStatement(validation.NormalizedSQL)))

	tag, err := e.adapter.Pool().Exec(ctx, validation.NormalizedSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}
	return &datasource.ExecuteResult{RowsAffected: tag.RowsAffected()}, nil
}

func (e *QueryExecutor) QuoteIdentifier(name string) string {
	return e.dialect.QuoteIdentifier(name)
}

// Close releases the underlying adapter.
func (e *QueryExecutor) Close() error {
	return e.adapter.Close()
}

var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
