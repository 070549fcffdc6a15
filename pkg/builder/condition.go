package builder

import (
	"context"
	"errors"
	"strings"

	"github.com/ekaya-inc/fmpdb/pkg/apperrors"
	"github.com/ekaya-inc/fmpdb/pkg/models"
	sqlbind "github.com/ekaya-inc/fmpdb/pkg/sql"
)

// matchNothing is the condition for an empty value list.
const matchNothing = "0=1"

// ErrNoPrimaryKey is returned when a key lookup targets a table without a primary key.
var ErrNoPrimaryKey = errors.New("table has no primary key")

// CreateInCondition builds a condition matching rows whose columns equal one
// of the value tuples. Each tuple maps column name to value. prefix
// qualifies the columns and defaults to the table's raw name and a '.'.
func (b *Builder) CreateInCondition(ctx context.Context, tableName string, columns []string, values []map[string]any, prefix *string) (string, error) {
	table, err := b.resolve(ctx, tableName)
	if err != nil {
		return "", err
	}
	return b.inCondition(table, columns, values, prefix)
}

func (b *Builder) inCondition(table *models.TableMetadata, columnNames []string, values []map[string]any, prefix *string) (string, error) {
	if len(values) == 0 || len(columnNames) == 0 {
		return matchNothing, nil
	}

	p := table.RawName + "."
	if prefix != nil {
		p = *prefix
	}

	columns := make([]*models.ColumnMetadata, len(columnNames))
	for i, name := range columnNames {
		column := table.Column(name)
		if column == nil {
			return "", &apperrors.UnknownColumnError{Table: table.Name, Column: name}
		}
		columns[i] = column
	}

	// literal tuples, in column order
	tuples := make([][]string, len(values))
	for r, tuple := range values {
		row := make([]string, len(columns))
		for i, column := range columns {
			value, ok := tuple[column.Name]
			if !ok {
				return "", &apperrors.MissingKeyValueError{Table: table.Name, Column: column.Name}
			}
			row[i] = b.keyLiteral(column, value)
		}
		tuples[r] = row
	}

	if len(columns) == 1 {
		ref := p + columns[0].RawName
		if len(tuples) == 1 {
			return equals(ref, tuples[0][0]), nil
		}
		entries := make([]string, len(tuples))
		for i, row := range tuples {
			entries[i] = row[0]
		}
		return ref + " IN (" + strings.Join(entries, ", ") + ")", nil
	}

	refs := make([]string, len(columns))
	for i, column := range columns {
		refs[i] = p + column.RawName
	}
	if len(tuples) == 1 {
		parts := make([]string, len(refs))
		for i, ref := range refs {
			parts[i] = equals(ref, tuples[0][i])
		}
		return strings.Join(parts, " AND "), nil
	}
	return b.dialect.CompositeInCondition(refs, tuples), nil
}

func (b *Builder) keyLiteral(column *models.ColumnMetadata, value any) string {
	if value == nil {
		return sqlbind.NullLiteral
	}
	literal := b.dialect.Typecast(value, column.DBType, column.AllowNull)
	if literal == "" {
		return sqlbind.NullLiteral
	}
	return literal
}

func equals(ref, literal string) string {
	if literal == sqlbind.NullLiteral {
		return ref + " IS NULL"
	}
	return ref + "=" + literal
}

// CreatePKCondition builds the condition selecting rows by primary key. For
// a single key each element of keys is a key value; for a composite key
// each element is a map of key column to value.
func (b *Builder) CreatePKCondition(ctx context.Context, tableName string, keys []any, prefix *string) (string, error) {
	table, err := b.resolve(ctx, tableName)
	if err != nil {
		return "", err
	}
	if !table.HasPrimaryKey() {
		return "", apperrors.NewSchemaError(table.Name, ErrNoPrimaryKey)
	}

	values := make([]map[string]any, len(keys))
	for i, key := range keys {
		if tuple, ok := key.(map[string]any); ok {
			values[i] = tuple
			continue
		}
		if table.IsCompositeKey() {
			return "", &apperrors.MissingKeyValueError{Table: table.Name, Column: table.PrimaryKey[1]}
		}
		values[i] = map[string]any{table.PrimaryKey[0]: key}
	}
	return b.inCondition(table, table.PrimaryKey, values, prefix)
}
