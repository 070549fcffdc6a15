//go:build mssql || all_adapters

package mssql

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/fmpdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/fmpdb/pkg/logging"
	sqlbind "github.com/ekaya-inc/fmpdb/pkg/sql"
)

// QueryExecutor runs generated statements against SQL Server.
type QueryExecutor struct {
	adapter *Adapter
	dialect *Dialect
	logger  *zap.Logger
}

// NewQueryExecutor creates a SQL Server query executor.
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
		logger:  logger.Named("mssql"),
	}
}

// isTextType reports the character types whose []byte values are text.
func isTextType(dbType string) bool {
	switch strings.ToUpper(dbType) {
	case "CHAR", "NCHAR", "VARCHAR", "NVARCHAR", "TEXT", "NTEXT", "DECIMAL", "NUMERIC", "MONEY", "SMALLMONEY":
		return true
	}
	return false
}

// Query runs a SELECT statement and returns all of its rows.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string) (*datasource.QueryExecutionResult, error) {
	validation := sqlbind.ValidateAndNormalize(sqlQuery)
	if validation.Error != nil {
		return nil, validation.Error
	}

	e.logger.Debug("query", zap.String("sql", logging.SanitizeStatement(validation.NormalizedSQL)))
	return datasource.SQLQuery(ctx, e.adapter.DB(), validation.NormalizedSQL, isTextType)
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
	return datasource.SQLExec(ctx, e.adapter.DB(), validation.NormalizedSQL)
}

func (e *QueryExecutor) QuoteIdentifier(name string) string {
	return e.dialect.QuoteIdentifier(name)
}

// Close releases the underlying adapter.
func (e *QueryExecutor) Close() error {
	return e.adapter.Close()
}

var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
