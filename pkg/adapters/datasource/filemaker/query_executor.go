package filemaker

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

// QueryExecutor runs generated statements against FileMaker.
type QueryExecutor struct {
	adapter *Adapter
	dialect *Dialect
	logger  *zap.Logger
}

// NewQueryExecutor creates a FileMaker query executor.
func NewQueryExecutor(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, datasourceID uuid.UUID, userID string, logger *zap.Logger) (*QueryExecutor, error) {
	adapter, err := NewAdapter(ctx, cfg, connMgr, datasourceID, userID)
	if err != nil {
		return nil, err
	}
	return newQueryExecutor(adapter, logger), nil
}

func newQueryExecutor(adapter *Adapter, logger *zap.Logger) *QueryExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryExecutor{
		adapter: adapter,
		dialect: NewDialect(),
		logger:  logger.Named("filemaker"),
	}
}

// NewQueryExecutorFromAdapter builds an executor over an existing adapter.
func NewQueryExecutorFromAdapter(adapter *Adapter, logger *zap.Logger) *QueryExecutor {
	return newQueryExecutor(adapter, logger)
}

// isTextType reports driver type names whose []byte values are text.
// Container fields arrive as BINARY/LONGVARBINARY and stay as bytes.
func isTextType(dbType string) bool {
	t := strings.ToUpper(dbType)
	return !strings.Contains(t, "BINARY") && !strings.Contains(t, "BLOB")
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

// Execute runs an INSERT, UPDATE, DELETE or CREATE TABLE statement.
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

// QuoteIdentifier wraps a name in double quotes.
func (e *QueryExecutor) QuoteIdentifier(name string) string {
	return e.dialect.QuoteIdentifier(name)
}

// Close releases the underlying adapter.
func (e *QueryExecutor) Close() error {
	return e.adapter.Close()
}

var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
