package services

import (
	"context"
	"fmt"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/ekaya-inc/fmpdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/fmpdb/pkg/apperrors"
	"github.com/ekaya-inc/fmpdb/pkg/builder"
	"github.com/ekaya-inc/fmpdb/pkg/logging"
	"github.com/ekaya-inc/fmpdb/pkg/models"
)

// RecordService reads and writes table rows through generated statements.
type RecordService interface {
	Find(ctx context.Context, table string, criteria *models.QueryCriteria) (*datasource.QueryExecutionResult, error)
	FindByPK(ctx context.Context, table string, keys []any) (*datasource.QueryExecutionResult, error)
	// Count returns the number of rows criteria selects. Grouped criteria
	// are rejected with apperrors.ErrUnsupportedOperation.
	Count(ctx context.Context, table string, criteria *models.QueryCriteria) (int64, error)

	// Insert adds one row and returns the key it was given when the
	// dialect can read it back.
	Insert(ctx context.Context, table string, data models.ColumnValues) (any, bool, error)
	InsertMany(ctx context.Context, table string, rows []models.ColumnValues) (int64, error)
	Update(ctx context.Context, table string, data models.ColumnValues, criteria *models.QueryCriteria) (int64, error)
	Delete(ctx context.Context, table string, criteria *models.QueryCriteria) (int64, error)
}

type recordService struct {
	builder  *builder.Builder
	executor datasource.QueryExecutor
	logger   *zap.Logger
}

// NewRecordService creates a record service that builds statements with b
// and runs them on executor.
func NewRecordService(b *builder.Builder, executor datasource.QueryExecutor, logger *zap.Logger) RecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &recordService{
		builder:  b,
		executor: executor,
		logger:   logger.Named("records"),
	}
}

func (s *recordService) query(ctx context.Context, cmd *builder.Command) (*datasource.QueryExecutionResult, error) {
	s.logger.Debug("Running query",
		zap.String("table", cmd.Table.Name),
		zap.String("sql", logging.SanitizeStatement(cmd.SQL)))

	result, err := s.executor.Query(ctx, cmd.SQL)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", cmd.Table.Name, err)
	}
	return result, nil
}

func (s *recordService) execute(ctx context.Context, cmd *builder.Command) (int64, error) {
	s.logger.Debug("Running statement",
		zap.String("table", cmd.Table.Name),
		zap.String("sql", logging.SanitizeStatement(cmd.SQL)))

	result, err := s.executor.Execute(ctx, cmd.SQL)
	if err != nil {
		return 0, fmt.Errorf("execute on %s: %w", cmd.Table.Name, err)
	}
	return result.RowsAffected, nil
}

func (s *recordService) Find(ctx context.Context, table string, criteria *models.QueryCriteria) (*datasource.QueryExecutionResult, error) {
	cmd, err := s.builder.CreateFindCommand(ctx, table, criteria, builder.DefaultAlias)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, cmd)
}

// FindByPK selects the rows whose primary key is one of keys. Composite
// keys are given as maps of key column to value.
func (s *recordService) FindByPK(ctx context.Context, table string, keys []any) (*datasource.QueryExecutionResult, error) {
	prefix := s.builder.Dialect().QuoteIdentifier(builder.DefaultAlias) + "."
	condition, err := s.builder.CreatePKCondition(ctx, table, keys, &prefix)
	if err != nil {
		return nil, err
	}

	criteria := models.NewQueryCriteria()
	criteria.Condition = condition
	return s.Find(ctx, table, criteria)
}

func (s *recordService) Count(ctx context.Context, table string, criteria *models.QueryCriteria) (int64, error) {
	if criteria != nil && criteria.Group != "" {
		return 0, fmt.Errorf("count %s: a grouped count has one row per group: %w", table, apperrors.ErrUnsupportedOperation)
	}
	cmd, err := s.builder.CreateCountCommand(ctx, table, criteria, builder.DefaultAlias)
	if err != nil {
		return 0, err
	}
	result, err := s.query(ctx, cmd)
	if err != nil {
		return 0, err
	}

	value, ok := result.Scalar()
	if !ok {
		return 0, fmt.Errorf("count %s: no result row", table)
	}
	n, err := cast.ToInt64E(value)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func (s *recordService) Insert(ctx context.Context, table string, data models.ColumnValues) (any, bool, error) {
	cmd, err := s.builder.CreateInsertCommand(ctx, table, data)
	if err != nil {
		return nil, false, err
	}
	if _, err := s.execute(ctx, cmd); err != nil {
		return nil, false, err
	}

	id, ok, err := s.builder.GetLastInsertID(ctx, s.executor, table)
	if err != nil {
		// the row is written; only the key lookup failed
		s.logger.Warn("Failed to read last insert id",
			zap.String("table", table),
			zap.String("error", logging.SanitizeError(err)))
		return nil, false, nil
	}
	return id, ok, nil
}

func (s *recordService) InsertMany(ctx context.Context, table string, rows []models.ColumnValues) (int64, error) {
	cmd, err := s.builder.CreateMultipleInsertCommand(ctx, table, rows)
	if err != nil {
		return 0, err
	}
	return s.execute(ctx, cmd)
}

func (s *recordService) Update(ctx context.Context, table string, data models.ColumnValues, criteria *models.QueryCriteria) (int64, error) {
	cmd, err := s.builder.CreateUpdateCommand(ctx, table, data, criteria)
	if err != nil {
		return 0, err
	}
	return s.execute(ctx, cmd)
}

func (s *recordService) Delete(ctx context.Context, table string, criteria *models.QueryCriteria) (int64, error) {
	cmd, err := s.builder.CreateDeleteCommand(ctx, table, criteria)
	if err != nil {
		return 0, err
	}
	return s.execute(ctx, cmd)
}
