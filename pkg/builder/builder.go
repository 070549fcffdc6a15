// Package builder synthesises self-contained SQL statements for a table
// from criteria and column data. Dialect differences (quoting, literals,
// pagination, composite keys, last insert id) come from a dialect.Dialect.
package builder

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/fmpdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/fmpdb/pkg/apperrors"
	"github.com/ekaya-inc/fmpdb/pkg/dialect"
	"github.com/ekaya-inc/fmpdb/pkg/logging"
	"github.com/ekaya-inc/fmpdb/pkg/models"
	sqlbind "github.com/ekaya-inc/fmpdb/pkg/sql"
)

// DefaultAlias is the table alias of find and count commands.
const DefaultAlias = "t"

// TableResolver supplies table metadata. It returns (nil, nil) or an error
// for tables that do not exist.
type TableResolver interface {
	Table(ctx context.Context, name string) (*models.TableMetadata, error)
}

// Binder substitutes named parameters into SQL text.
type Binder interface {
	BindValues(sqlText string, params map[string]any) (string, error)
}

type defaultBinder struct{}

func (defaultBinder) BindValues(sqlText string, params map[string]any) (string, error) {
	return sqlbind.BindValues(sqlText, params)
}

// Command is a generated statement. Its SQL carries every value inline.
type Command struct {
	SQL   string
	Table *models.TableMetadata
}

func (c *Command) String() string { return c.SQL }

// Builder creates commands for one dialect.
type Builder struct {
	dialect  dialect.Dialect
	resolver TableResolver
	binder   Binder
	logger   *zap.Logger
}

// New creates a Builder. A nil binder uses sqlbind.BindValues without
// screening.
func New(d dialect.Dialect, resolver TableResolver, binder Binder, logger *zap.Logger) *Builder {
	if binder == nil {
		binder = defaultBinder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		dialect:  d,
		resolver: resolver,
		binder:   binder,
		logger:   logger.Named("builder"),
	}
}

// Dialect returns the dialect commands are rendered for.
func (b *Builder) Dialect() dialect.Dialect { return b.dialect }

func (b *Builder) resolve(ctx context.Context, name string) (*models.TableMetadata, error) {
	table, err := b.resolver.Table(ctx, name)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, apperrors.NewSchemaError(name, apperrors.ErrNotFound)
	}
	return table, nil
}

func (b *Builder) finish(table *models.TableMetadata, sql string, params map[string]any) (*Command, error) {
	bound, err := b.binder.BindValues(sql, params)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("built command",
		zap.String("table", table.Name),
		zap.String("sql", logging.SanitizeStatement(bound)))
	return &Command{SQL: bound, Table: table}, nil
}

func criteriaOrDefault(criteria *models.QueryCriteria) *models.QueryCriteria {
	if criteria == nil {
		return models.NewQueryCriteria()
	}
	return criteria
}

// CreateFindCommand builds a SELECT. A "*" select list expands to every
// column through the dialect so container fields can be cast; with a join
// the expanded columns are qualified with the alias.
func (b *Builder) CreateFindCommand(ctx context.Context, tableName string, criteria *models.QueryCriteria, alias string) (*Command, error) {
	table, err := b.resolve(ctx, tableName)
	if err != nil {
		return nil, err
	}
	criteria = criteriaOrDefault(criteria)
	quotedAlias := b.dialect.QuoteIdentifier(pickAlias(criteria, alias))

	sql := "SELECT "
	if criteria.Distinct {
		sql = "SELECT DISTINCT "
	}
	sql += b.selectList(table, criteria, quotedAlias) + " FROM " + table.RawName + " " + quotedAlias
	sql = applyJoin(sql, criteria.Join)
	sql = applyCondition(sql, criteria.Condition)
	sql = applyGroup(sql, criteria.Group)
	sql = applyHaving(sql, criteria.Having)
	sql = applyOrder(sql, criteria.Order)
	sql = b.ApplyLimit(sql, criteria.Limit, criteria.Offset)

	return b.finish(table, sql, criteria.Params)
}

// CreateCountCommand builds a SELECT COUNT over the rows criteria selects.
// A distinct count of all columns counts distinct primary key values and is
// rejected with an UnsupportedOperationError when the table has no
// single-column primary key.
func (b *Builder) CreateCountCommand(ctx context.Context, tableName string, criteria *models.QueryCriteria, alias string) (*Command, error) {
	table, err := b.resolve(ctx, tableName)
	if err != nil {
		return nil, err
	}
	criteria = criteriaOrDefault(criteria)
	quotedAlias := b.dialect.QuoteIdentifier(pickAlias(criteria, alias))

	count := "COUNT(*)"
	if criteria.Distinct {
		if !criteria.SelectsAll() {
			count = "COUNT(DISTINCT " + strings.Join(criteria.Select, ", ") + ")"
		} else {
			key, ok := table.SingleKey()
			if !ok {
				return nil, &apperrors.UnsupportedOperationError{
					Dialect:   b.dialect.Name(),
					Operation: "distinct count of " + table.Name + " without a single-column primary key",
				}
			}
			count = "COUNT(DISTINCT " + quotedAlias + "." + key.RawName + ")"
		}
	}

	sql := "SELECT " + count + " FROM " + table.RawName + " " + quotedAlias
	sql = applyJoin(sql, criteria.Join)
	sql = applyCondition(sql, criteria.Condition)
	sql = applyGroup(sql, criteria.Group)
	sql = applyHaving(sql, criteria.Having)

	return b.finish(table, sql, criteria.Params)
}

func pickAlias(criteria *models.QueryCriteria, alias string) string {
	if criteria.Alias != "" {
		return criteria.Alias
	}
	if alias == "" {
		return DefaultAlias
	}
	return alias
}

func (b *Builder) selectList(table *models.TableMetadata, criteria *models.QueryCriteria, quotedAlias string) string {
	if !criteria.SelectsAll() {
		return strings.Join(criteria.Select, ", ")
	}
	if len(table.Columns) == 0 {
		return "*"
	}
	prefix := ""
	if criteria.Join != "" {
		prefix = quotedAlias + "."
	}
	columns := make([]string, len(table.Columns))
	for i, column := range table.Columns {
		columns[i] = b.dialect.SelectColumn(column, prefix)
	}
	return strings.Join(columns, ", ")
}

// ApplyLimit appends the dialect's pagination clause.
func (b *Builder) ApplyLimit(sql string, limit, offset int) string {
	return b.dialect.ApplyPagination(sql, limit, offset)
}

func applyJoin(sql, join string) string {
	if join == "" {
		return sql
	}
	return sql + " " + join
}

func applyCondition(sql, condition string) string {
	if condition == "" {
		return sql
	}
	return sql + " WHERE " + condition
}

func applyGroup(sql, group string) string {
	if group == "" {
		return sql
	}
	return sql + " GROUP BY " + group
}

func applyHaving(sql, having string) string {
	if having == "" {
		return sql
	}
	return sql + " HAVING " + having
}

func applyOrder(sql, order string) string {
	if order == "" {
		return sql
	}
	return sql + " ORDER BY " + order
}

// GetLastInsertID reads back the key of the last inserted row of a table
// with the dialect's fallback query. The boolean is false when the dialect
// has no way to tell or the table is empty.
func (b *Builder) GetLastInsertID(ctx context.Context, querier datasource.RowQuerier, tableName string) (any, bool, error) {
	table, err := b.resolve(ctx, tableName)
	if err != nil {
		return nil, false, err
	}
	query, ok := b.dialect.LastInsertFallback(table)
	if !ok {
		return nil, false, nil
	}

	result, err := querier.Query(ctx, query)
	if err != nil {
		return nil, false, fmt.Errorf("read last insert id of %s: %w", table.Name, err)
	}
	value, ok := result.Scalar()
	if !ok || value == nil {
		return nil, false, nil
	}
	return value, true, nil
}
