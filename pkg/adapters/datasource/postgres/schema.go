//go:build postgres || all_adapters

package postgres

import (
	"context"
	"fmt"
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
	tablesQuery = `SELECT table_name FROM information_schema.tables
WHERE table_schema = %s AND table_type = 'BASE TABLE'
ORDER BY table_name`

	columnsQuery = `SELECT column_name, data_type, udt_name, is_nullable, column_default, is_identity, is_generated
FROM information_schema.columns
WHERE table_schema = %s AND table_name = %s
ORDER BY ordinal_position`

	primaryKeyQuery = `SELECT kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = %s AND tc.table_name = %s
ORDER BY kcu.ordinal_position`

	foreignKeyQuery = `SELECT kcu.column_name, ccu.table_name AS referenced_table, ccu.column_name AS referenced_column
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = %s AND tc.table_name = %s
ORDER BY kcu.ordinal_position`

	serialSequenceQuery = `SELECT pg_get_serial_sequence(%s, %s) AS sequence_name`
)

// nextvalPattern extracts the sequence of a serial column default.
var nextvalPattern = regexp.MustCompile(`^nextval\('(.+)'::regclass\)$`)

// SchemaIntrospector reads table metadata from information_schema.
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
		logger:      logger.Named("postgres-schema"),
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
		quoted[i] = sqlbind.QuoteString(arg)
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

// rawName quotes a table name, qualifying it outside the public schema.
func (s *SchemaIntrospector) rawName(name string) string {
	if s.schema == DefaultSchema {
		return s.dialect.QuoteIdentifier(name)
	}
	return s.dialect.QuoteIdentifier(s.schema) + "." + s.dialect.QuoteIdentifier(name)
}

// FindTableNames returns the base tables of the schema, sorted by name.
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

// LoadTable builds the metadata of table name from its columns and key
// constraints. It returns (nil, nil) when the table has no columns.
func (s *SchemaIntrospector) LoadTable(ctx context.Context, name string) (*models.TableMetadata, error) {
	rows, err := s.query(ctx, columnsQuery, s.schema, name)
	if err != nil {
		return nil, s.fail(name, "read columns", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	table := models.NewTableMetadata(name, s.rawName(name))
	sequences := make(map[string]string)
	for _, row := range rows {
		columnName := row.String("column_name")
		column := &models.ColumnMetadata{
			Name:         columnName,
			RawName:      s.dialect.QuoteIdentifier(columnName),
			DBType:       columnType(row),
			AllowNull:    row.Bool("is_nullable"),
			IsCalculated: strings.EqualFold(row.String("is_generated"), "ALWAYS"),
		}

		def := row.String("column_default")
		if m := nextvalPattern.FindStringSubmatch(def); m != nil {
			column.AutoIncrement = true
			sequences[columnName] = m[1]
		} else {
			column.DefaultValue = def
		}
		if row.Bool("is_identity") {
			column.AutoIncrement = true
		}
		table.AddColumn(column)
	}

	if err := s.findPrimaryKey(ctx, table); err != nil {
		return nil, s.fail(name, "read primary key", err)
	}
	if err := s.findConstraints(ctx, table); err != nil {
		return nil, s.fail(name, "read foreign keys", err)
	}
	if err := s.findSequence(ctx, table, sequences); err != nil {
		return nil, s.fail(name, "read sequence", err)
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

// columnType prefers udt_name for arrays and user-defined types, where
// data_type only says "ARRAY" or "USER-DEFINED".
func columnType(row datasource.CatalogRow) string {
	dataType := strings.ToLower(row.String("data_type"))
	if dataType == "array" || dataType == "user-defined" {
		return strings.ToLower(row.String("udt_name"))
	}
	return dataType
}

func (s *SchemaIntrospector) findPrimaryKey(ctx context.Context, table *models.TableMetadata) error {
	rows, err := s.query(ctx, primaryKeyQuery, s.schema, table.Name)
	if err != nil {
		return err
	}
	for _, row := range rows {
		name := row.String("column_name")
		if column := table.Column(name); column != nil {
			column.Role = models.KeyRolePrimaryKey
			table.PrimaryKey = append(table.PrimaryKey, name)
		}
	}
	return nil
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

// findSequence sets the sequence of a single-column key, from its serial
// default or, for identity columns, from pg_get_serial_sequence.
func (s *SchemaIntrospector) findSequence(ctx context.Context, table *models.TableMetadata, sequences map[string]string) error {
	key, ok := table.SingleKey()
	if !ok || !key.AutoIncrement {
		return nil
	}
	if seq, ok := sequences[key.Name]; ok {
		table.SequenceName = &seq
		return nil
	}

	qualified := s.dialect.QuoteIdentifier(s.schema) + "." + s.dialect.QuoteIdentifier(table.Name)
	rows, err := s.query(ctx, serialSequenceQuery, qualified, key.Name)
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		if seq := rows[0].String("sequence_name"); seq != "" {
			table.SequenceName = &seq
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
