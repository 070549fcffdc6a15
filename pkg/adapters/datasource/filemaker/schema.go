package filemaker

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/fmpdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/fmpdb/pkg/apperrors"
	"github.com/ekaya-inc/fmpdb/pkg/logging"
	"github.com/ekaya-inc/fmpdb/pkg/models"
	"github.com/ekaya-inc/fmpdb/pkg/retry"
	sqlbind "github.com/ekaya-inc/fmpdb/pkg/sql"
)

const (
	tablesQuery = "SELECT DISTINCT(BaseTableName) FROM FileMaker_Tables"
	fieldsQuery = "SELECT * FROM FileMaker_Fields WHERE TableName = %s"

	primaryKeyPrefix = "zkp"
	foreignKeyPrefix = "zkf"

	// ReferencedKeyColumn is the column a zkf or zkp_ field is assumed to reference.
	ReferencedKeyColumn = "zkp"
)

// keyFieldPattern extracts the table token of zkf_Table_... and zkp_Table_...
var keyFieldPattern = regexp.MustCompile(`^(zkf|zkp)_([^_]*).*`)

// SchemaIntrospector reads table metadata from the FileMaker_Tables and
// FileMaker_Fields system tables. FileMaker has no key constraints; key
// roles come from the zkp/zkf naming convention.
type SchemaIntrospector struct {
	querier     datasource.RowQuerier
	closer      io.Closer
	dialect     *Dialect
	retryConfig *retry.Config
	logger      *zap.Logger
}

// NewSchemaIntrospector reads the catalog through querier.
func NewSchemaIntrospector(querier datasource.RowQuerier, logger *zap.Logger) *SchemaIntrospector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaIntrospector{
		querier:     querier,
		dialect:     NewDialect(),
		retryConfig: retry.DefaultConfig(),
		logger:      logger.Named("filemaker-schema"),
	}
}

// NewSchemaIntrospectorFromConfig connects and returns an introspector that
// closes its executor on Close.
func NewSchemaIntrospectorFromConfig(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, datasourceID uuid.UUID, userID string, logger *zap.Logger) (*SchemaIntrospector, error) {
	executor, err := NewQueryExecutor(ctx, cfg, connMgr, datasourceID, userID, logger)
	if err != nil {
		return nil, err
	}
	s := NewSchemaIntrospector(executor, logger)
	s.closer = executor
	return s, nil
}

// query runs a catalog query, retrying transient driver failures.
func (s *SchemaIntrospector) query(ctx context.Context, sqlQuery string) (*datasource.QueryExecutionResult, error) {
	var result *datasource.QueryExecutionResult
	err := retry.DoIfRetryable(ctx, s.retryConfig, func() error {
		var err error
		result, err = s.querier.Query(ctx, sqlQuery)
		return err
	})
	return result, err
}

// FindTableNames returns the base table names of the database, in catalog order.
func (s *SchemaIntrospector) FindTableNames(ctx context.Context) ([]string, error) {
	result, err := s.query(ctx, tablesQuery)
	if err != nil {
		s.logger.Error("failed to list tables", zap.String("error", logging.SanitizeError(err)))
		return nil, apperrors.NewSchemaError("", fmt.Errorf("list tables: %w", err))
	}

	var names []string
	for _, row := range datasource.CatalogRows(result) {
		if name := row.String("BaseTableName"); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// LoadTable builds the metadata of table name. It returns (nil, nil) when
// the catalog has no fields for it.
func (s *SchemaIntrospector) LoadTable(ctx context.Context, name string) (*models.TableMetadata, error) {
	result, err := s.query(ctx, fmt.Sprintf(fieldsQuery, sqlbind.QuoteString(name)))
	if err != nil {
		s.logger.Error("failed to read fields",
			zap.String("table", name),
			zap.String("error", logging.SanitizeError(err)))
		return nil, apperrors.NewSchemaError(name, fmt.Errorf("read fields: %w", err))
	}

	rows := datasource.CatalogRows(result)
	if len(rows) == 0 {
		return nil, nil
	}

	table := models.NewTableMetadata(name, s.dialect.QuoteIdentifier(name))
	for _, row := range rows {
		fieldName := row.String("FieldName")
		if fieldName == "" {
			continue
		}

		column := &models.ColumnMetadata{
			Name:         fieldName,
			RawName:      s.dialect.QuoteIdentifier(fieldName),
			DBType:       strings.ToLower(row.String("FieldType")),
			AllowNull:    true, // FileMaker_Fields carries no nullability
			IsCalculated: isCalculatedClass(row.String("FieldClass")),
		}
		column.Role, column.ReferencedTable = ClassifyColumn(fieldName)
		table.AddColumn(column)

		if column.IsPrimaryKey() {
			table.PrimaryKey = append(table.PrimaryKey, fieldName)
		}
	}

	if key, ok := table.SingleKey(); ok {
		// Keys are assigned by FileMaker auto-enter options, which ODBC
		// cannot report back; MAX() is the fallback.
		key.AutoIncrement = false
		sequence := ""
		table.SequenceName = &sequence
	}

	s.findConstraints(table)

	s.logger.Debug("loaded table",
		zap.String("table", name),
		zap.Int("columns", len(table.Columns)),
		zap.Strings("primaryKey", table.PrimaryKey))
	return table, nil
}

// findConstraints records a foreign key for every zkf column and for every
// zkp_ column, which names the table it keys.
func (s *SchemaIntrospector) findConstraints(table *models.TableMetadata) {
	for _, column := range table.Columns {
		if column.IsForeignKey() || column.ReferencedTable != "" {
			table.ForeignKeys[column.Name] = models.ForeignKeyRef{
				Table:  column.ReferencedTable,
				Column: ReferencedKeyColumn,
			}
		}
	}
}

// ClassifyColumn derives a key role from a FileMaker field name. A zkp
// prefix marks a primary key and takes precedence; a zkf prefix marks a
// foreign key. The referenced table is the token after the first '_' and is
// also returned for zkp_ keys, which reference the table they name.
func ClassifyColumn(name string) (models.KeyRole, string) {
	switch {
	case strings.HasPrefix(name, primaryKeyPrefix+"_"):
		return models.KeyRolePrimaryKey, referencedTable(name)
	case strings.HasPrefix(name, primaryKeyPrefix):
		return models.KeyRolePrimaryKey, ""
	case strings.HasPrefix(name, foreignKeyPrefix):
		return models.KeyRoleForeignKey, referencedTable(name)
	}
	return models.KeyRolePlain, ""
}

func referencedTable(name string) string {
	if keyFieldPattern.MatchString(name) {
		return keyFieldPattern.ReplaceAllString(name, "$2")
	}
	return strings.TrimPrefix(name, foreignKeyPrefix)
}

func isCalculatedClass(fieldClass string) bool {
	return strings.EqualFold(fieldClass, "Calculated") || strings.EqualFold(fieldClass, "Summary")
}

// Close releases the catalog connection if the introspector opened it.
func (s *SchemaIntrospector) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

var _ datasource.SchemaIntrospector = (*SchemaIntrospector)(nil)
