package builder

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/fmpdb/pkg/apperrors"
	"github.com/ekaya-inc/fmpdb/pkg/models"
	sqlbind "github.com/ekaya-inc/fmpdb/pkg/sql"
)

// writableColumn returns the column data may be written to, or nil when the
// value must be skipped: the column is unknown or calculated, or the value
// is nil for a column that does not allow NULL.
func (b *Builder) writableColumn(table *models.TableMetadata, name string, value any) *models.ColumnMetadata {
	column := table.Column(name)
	if column == nil {
		b.logger.Debug("ignoring unknown column", zap.String("table", table.Name), zap.String("column", name))
		return nil
	}
	if !column.Writable() {
		return nil
	}
	if value == nil && !column.AllowNull {
		return nil
	}
	return column
}

// valueSQL renders a value for column. Expressions are spliced as SQL and
// their parameters collected into params.
func (b *Builder) valueSQL(column *models.ColumnMetadata, value any, params map[string]any) string {
	switch v := value.(type) {
	case models.Expression:
		maps.Copy(params, v.Params)
		return v.SQL
	case *models.Expression:
		if v != nil {
			maps.Copy(params, v.Params)
			return v.SQL
		}
	}
	literal := b.dialect.Typecast(value, column.DBType, column.AllowNull)
	if literal == "" {
		return sqlbind.NullLiteral
	}
	return literal
}

// CreateInsertCommand builds an INSERT from data in the caller's order.
// When no column is writable the primary key columns are inserted with the
// dialect's default key value.
func (b *Builder) CreateInsertCommand(ctx context.Context, tableName string, data models.ColumnValues) (*Command, error) {
	table, err := b.resolve(ctx, tableName)
	if err != nil {
		return nil, err
	}

	params := make(map[string]any)
	var fields, values []string
	for _, cv := range data {
		column := b.writableColumn(table, cv.Column, cv.Value)
		if column == nil {
			continue
		}
		fields = append(fields, column.RawName)
		values = append(values, b.valueSQL(column, cv.Value, params))
	}

	if len(fields) == 0 {
		for _, key := range table.PrimaryKey {
			column := table.Column(key)
			if column == nil {
				continue
			}
			fields = append(fields, column.RawName)
			values = append(values, b.dialect.PrimaryKeyDefaultValue())
		}
	}
	if len(fields) == 0 {
		return nil, &apperrors.NoUpdatableColumnsError{Table: table.Name}
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table.RawName, strings.Join(fields, ", "), strings.Join(values, ", "))
	return b.finish(table, sql, params)
}

// CreateMultipleInsertCommand inserts several rows with one statement of
// the form INSERT INTO t (cols) SELECT v AS c, ... UNION SELECT .... The
// columns are the writable columns of the first row; later rows that lack
// one of them insert NULL.
func (b *Builder) CreateMultipleInsertCommand(ctx context.Context, tableName string, rows []models.ColumnValues) (*Command, error) {
	table, err := b.resolve(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &apperrors.NoUpdatableColumnsError{Table: table.Name}
	}

	var columns []*models.ColumnMetadata
	for _, cv := range rows[0] {
		if column := b.writableColumn(table, cv.Column, cv.Value); column != nil {
			columns = append(columns, column)
		}
	}
	if len(columns) == 0 {
		return nil, &apperrors.NoUpdatableColumnsError{Table: table.Name}
	}

	fields := make([]string, len(columns))
	for i, column := range columns {
		fields[i] = column.RawName
	}

	params := make(map[string]any)
	selects := make([]string, len(rows))
	for r, row := range rows {
		parts := make([]string, len(columns))
		for i, column := range columns {
			value, _ := row.Get(column.Name)
			literal := sqlbind.NullLiteral
			if value != nil || column.AllowNull {
				literal = b.valueSQL(column, value, params)
			}
			parts[i] = literal + " AS " + column.RawName
		}
		selects[r] = "SELECT " + strings.Join(parts, ", ")
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) %s",
		table.RawName, strings.Join(fields, ", "), strings.Join(selects, " UNION "))
	return b.finish(table, sql, params)
}

// CreateUpdateCommand builds an UPDATE of the rows criteria selects.
func (b *Builder) CreateUpdateCommand(ctx context.Context, tableName string, data models.ColumnValues, criteria *models.QueryCriteria) (*Command, error) {
	table, err := b.resolve(ctx, tableName)
	if err != nil {
		return nil, err
	}
	criteria = criteriaOrDefault(criteria)

	params := make(map[string]any)
	var assignments []string
	for _, cv := range data {
		column := b.writableColumn(table, cv.Column, cv.Value)
		if column == nil {
			continue
		}
		assignments = append(assignments, column.RawName+"="+b.valueSQL(column, cv.Value, params))
	}
	if len(assignments) == 0 {
		return nil, &apperrors.NoUpdatableColumnsError{Table: table.Name}
	}
	// Criteria params take precedence over expression params of the same name.
	maps.Copy(params, criteria.Params)

	sql := "UPDATE " + table.RawName + " SET " + strings.Join(assignments, ", ")
	sql = applyJoin(sql, criteria.Join)
	sql = applyCondition(sql, criteria.Condition)
	sql = applyOrder(sql, criteria.Order)
	sql = b.ApplyLimit(sql, criteria.Limit, criteria.Offset)

	return b.finish(table, sql, params)
}

// CreateDeleteCommand builds a DELETE of the rows criteria selects.
func (b *Builder) CreateDeleteCommand(ctx context.Context, tableName string, criteria *models.QueryCriteria) (*Command, error) {
	table, err := b.resolve(ctx, tableName)
	if err != nil {
		return nil, err
	}
	criteria = criteriaOrDefault(criteria)

	sql := "DELETE FROM " + table.RawName
	sql = applyJoin(sql, criteria.Join)
	sql = applyCondition(sql, criteria.Condition)
	sql = applyGroup(sql, criteria.Group)
	sql = applyHaving(sql, criteria.Having)
	sql = applyOrder(sql, criteria.Order)
	sql = b.ApplyLimit(sql, criteria.Limit, criteria.Offset)

	return b.finish(table, sql, criteria.Params)
}
