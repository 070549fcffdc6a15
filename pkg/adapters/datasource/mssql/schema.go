//go:build mssql || all_adapters

package mssql

import (
	"context"
	"fmt"
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
	tablesQuery = `SELECT t.name AS table_name
FROM sys.tables t
WHERE t.is_ms_shipped = 0 AND SCHEMA_NAME(t.schema_id) = %s
ORDER BY t.name`

	columnsQuery = `SELECT
    c.name AS column_name,
    tp.name AS data_type,
    c.is_nullable,
    c.is_identity,
    c.is_computed,
    OBJECT_DEFINITION(c.default_object_id) AS column_default,
    CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END AS is_primary_key,
    pk.key_ordinal
FROM sys.columns c
INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
LEFT JOIN (
    SELECT ic.object_id, ic.column_id, ic.key_ordinal
    FROM sys.index_columns ic
    INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
    WHERE i.is_primary_key = 1
) pk ON c.object_id = pk.object_id AND c.column_id = pk.column_id
WHERE c.object_id = OBJECT_ID(QUOTENAME(%s) + N'.' + QUOTENAME(%s))
ORDER BY c.column_id`

	foreignKeyQuery = `SELECT
    COL_NAME(fkc.parent_object_id, fkc.parent_column_id) AS column_name,
    OBJECT_NAME(fk.referenced_object_id) AS referenced_table,
    COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id) AS referenced_column
FROM sys.foreign_keys fk
INNER JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
WHERE fk.parent_object_id = OBJECT_ID(QUOTENAME(%s) + N'.' + QUOTENAME(%s))
ORDER BY fk.name, fkc.constraint_column_id`
)

// SchemaIntrospector reads table metadata from the sys catalog views.
type SchemaIntrospector struct {
	querier     datasource.RowQuerier
	closer      interface{ Close() error }
	dialect     *Dialect
	schema      string
	retryConfig *retry.Config
	logger      *zap.Logger
}

// NewSchemaIntrospector reads the catalog of schemaName through querier.
func NewSchemaIntrospector(querier datasource.RowQuerier, schemaName string, logger *zap.Logger) *SchemaIntrospector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schemaName == "" {
		schemaName = DefaultSchema
	}
	return &SchemaIntrospector{
		querier:     querier,
		dialect:     NewDialect(),
		schema:      schemaName,
		retryConfig: retry.DefaultConfig(),
		logger:      logger.Named("mssql-schema"),
	}
}

// NewSchemaIntrospectorFromConfig connects and returns an introspector that
// closes its executor on Close.
func NewSchemaIntrospectorFromConfig(ctx context.Context, cfg *Config, connMgr *datasource.ConnectionManager, datasourceID uuid.UUID, userID string, logger *zap.Logger) (*SchemaIntrospector, error) {
	executor, err := NewQueryExecutor(ctx, cfg, connMgr, datasourceID, userID, logger)
	if err != nil {
		return nil, err
	}
	s := NewSchemaIntrospector(executor, cfg.Schema, logger)
	s.closer = executor
	return s, nil
}

func (s *SchemaIntrospector) query(ctx context.Context, format string, args ...string) ([]datasource.CatalogRow, error) {
	quoted := make([]any, len(args))
	for i, arg := range args {
		quoted[i] = "N" + sqlbind.QuoteString(arg)
	}
	sqlQuery := fmt.Sprintf(format, quoted...)

	var result *datasource.QueryExecutionResult
	err := retry.DoIfRetryable(ctx, s.retryConfig, func() error {
		var err error
		result, err = s.querier.Query(ctx, sqlQuery)
		return err
	})
	if err != nil {
		return nil, err
	}
	return datasource.CatalogRows(result), nil
}

// rawName quotes a table name, qualifying it outside the dbo schema.
func (s *SchemaIntrospector) rawName(name string) string {
	if strings.EqualFold(s.schema, DefaultSchema) {
		return s.dialect.QuoteIdentifier(name)
	}
	return s.dialect.QuoteIdentifier(s.schema) + "." + s.dialect.QuoteIdentifier(name)
}

// FindTableNames returns the user tables of the schema, sorted by name.
func (s *SchemaIntrospector) FindTableNames(ctx context.Context) ([]string, error) {
	rows, err := s.query(ctx, tablesQuery, s.schema)
	if err != nil {
		s.logger.Error("failed to list tables", zap.String("error", logging.SanitizeError(err)))
		return nil, apperrors.NewSchemaError("", fmt.Errorf("list tables: %w", err))
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.String("table_name"))
	}
	return names, nil
}

// LoadTable builds the metadata of table name. It returns (nil, nil) when
// the table does not exist.
func (s *SchemaIntrospector) LoadTable(ctx context.Context, name string) (*models.TableMetadata, error) {
	rows, err := s.query(ctx, columnsQuery, s.schema, name)
	if err != nil {
		return nil, s.fail(name, "read columns", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	table := models.NewTableMetadata(name, s.rawName(name))
	keyOrder := make(map[int]string)
	for _, row := range rows {
		columnName := row.String("column_name")
		column := &models.ColumnMetadata{
			Name:          columnName,
			RawName:       s.dialect.QuoteIdentifier(columnName),
			DBType:        strings.ToLower(row.String("data_type")),
			AllowNull:     row.Bool("is_nullable"),
			IsCalculated:  row.Bool("is_computed"),
			AutoIncrement: row.Bool("is_identity"),
			DefaultValue:  row.String("column_default"),
		}
		if row.Bool("is_primary_key") {
			column.Role = models.KeyRolePrimaryKey
			keyOrder[row.Int("key_ordinal")] = columnName
		}
		table.AddColumn(column)
	}
	for i := 1; i <= len(keyOrder); i++ {
		if key, ok := keyOrder[i]; ok {
			table.PrimaryKey = append(table.PrimaryKey, key)
		}
	}

	if err := s.findConstraints(ctx, table); err != nil {
		return nil, s.fail(name, "read foreign keys", err)
	}

	// identity keys are read back with IDENT_CURRENT, which needs no name
	if key, ok := table.SingleKey(); ok && key.AutoIncrement {
		empty := ""
		table.SequenceName = &empty
	}

	s.logger.Debug("loaded table",
		zap.String("table", name),
		zap.Int("columns", len(table.Columns)),
		zap.Strings("primaryKey", table.PrimaryKey))
	return table, nil
}

func (s *SchemaIntrospector) fail(table, what string, err error) error {
	s.logger.Error("failed to "+what,
		zap.String("table", table),
		zap.String("error", logging.SanitizeError(err)))
	return apperrors.NewSchemaError(table, fmt.Errorf("%s: %w", what, err))
}

// findConstraints records foreign keys. A column that is also part of the
// primary key keeps its primary key role.
func (s *SchemaIntrospector) findConstraints(ctx context.Context, table *models.TableMetadata) error {
	rows, err := s.query(ctx, foreignKeyQuery, s.schema, table.Name)
	if err != nil {
		return err
	}
	for _, row := range rows {
		name := row.String("column_name")
		column := table.Column(name)
		if column == nil {
			continue
		}
		ref := models.ForeignKeyRef{
			Table:  row.String("referenced_table"),
			Column: row.String("referenced_column"),
		}
		table.ForeignKeys[name] = ref
		if !column.IsPrimaryKey() {
			column.Role = models.KeyRoleForeignKey
			column.ReferencedTable = ref.Table
		}
	}
	return nil
}

// Close releases the catalog connection if the introspector opened it.
func (s *SchemaIntrospector) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

var _ datasource.SchemaIntrospector = (*SchemaIntrospector)(nil)
