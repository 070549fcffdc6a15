//go:build mssql || all_adapters

package mssql

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/fmpdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/fmpdb/pkg/apperrors"
	"github.com/ekaya-inc/fmpdb/pkg/models"
)

// fakeCatalog answers catalog queries by the first marker the query contains.
type fakeCatalog struct {
	responses map[string][]map[string]any
	fail      map[string]error
	queries   []string
}

var markers = []string{"sys.foreign_keys", "sys.columns", "sys.tables"}

func (c *fakeCatalog) Query(ctx context.Context, sqlQuery string) (*datasource.QueryExecutionResult, error) {
	c.queries = append(c.queries, sqlQuery)
	for _, marker := range markers {
		if !strings.Contains(sqlQuery, marker) {
			continue
		}
		if err := c.fail[marker]; err != nil {
			return nil, err
		}
		rows := c.responses[marker]
		return &datasource.QueryExecutionResult{Rows: rows, RowCount: len(rows)}, nil
	}
	return nil, errors.New("unexpected query")
}

func linesCatalog() *fakeCatalog {
	return &fakeCatalog{
		responses: map[string][]map[string]any{
			"sys.tables": {{"table_name": "OrderLines"}, {"table_name": "Orders"}},
			"sys.columns": {
				{"column_name": "line_no", "data_type": "int", "is_nullable": false, "is_identity": false, "is_computed": false, "is_primary_key": 1, "key_ordinal": 2},
				{"column_name": "order_id", "data_type": "int", "is_nullable": false, "is_identity": false, "is_computed": false, "is_primary_key": 1, "key_ordinal": 1},
				{"column_name": "product_id", "data_type": "INT", "is_nullable": true, "is_identity": false, "is_computed": false, "is_primary_key": 0, "key_ordinal": nil},
				{"column_name": "amount", "data_type": "decimal", "is_nullable": true, "is_identity": false, "is_computed": true, "is_primary_key": 0, "key_ordinal": nil, "column_default": nil},
				{"column_name": "note", "data_type": "nvarchar", "is_nullable": true, "is_identity": false, "is_computed": false, "is_primary_key": 0, "key_ordinal": nil, "column_default": "(N'')"},
			},
			"sys.foreign_keys": {
				{"column_name": "order_id", "referenced_table": "Orders", "referenced_column": "id"},
				{"column_name": "product_id", "referenced_table": "Products", "referenced_column": "id"},
			},
		},
		fail: map[string]error{},
	}
}

func TestSchemaIntrospector_FindTableNames(t *testing.T) {
	catalog := linesCatalog()
	s := NewSchemaIntrospector(catalog, "", zaptest.NewLogger(t))

	names, err := s.FindTableNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"OrderLines", "Orders"}, names)
	assert.Contains(t, catalog.queries[0], "SCHEMA_NAME(t.schema_id) = N'dbo'")
}

func TestSchemaIntrospector_LoadTable(t *testing.T) {
	catalog := linesCatalog()
	s := NewSchemaIntrospector(catalog, DefaultSchema, zaptest.NewLogger(t))

	table, err := s.LoadTable(context.Background(), "OrderLines")
	require.NoError(t, err)
	require.NotNil(t, table)

	assert.Equal(t, "[OrderLines]", table.RawName)
	assert.Equal(t, []string{"order_id", "line_no"}, table.PrimaryKey)
	assert.True(t, table.IsCompositeKey())
	assert.Nil(t, table.SequenceName)

	order := table.Column("order_id")
	assert.True(t, order.IsPrimaryKey())
	assert.Equal(t, "[order_id]", order.RawName)
	assert.Contains(t, table.ForeignKeys, "order_id")

	product := table.Column("product_id")
	assert.Equal(t, models.KeyRoleForeignKey, product.Role)
	assert.Equal(t, "Products", product.ReferencedTable)
	assert.Equal(t, "int", product.DBType)
	assert.True(t, product.AllowNull)

	assert.True(t, table.Column("amount").IsCalculated)
	assert.Equal(t, "(N'')", table.Column("note").DefaultValue)

	assert.Contains(t, catalog.queries[0], "QUOTENAME(N'dbo') + N'.' + QUOTENAME(N'OrderLines')")
}

func TestSchemaIntrospector_IdentityKey(t *testing.T) {
	catalog := linesCatalog()
	catalog.responses["sys.columns"] = []map[string]any{
		{"column_name": "id", "data_type": "int", "is_nullable": false, "is_identity": true, "is_computed": false, "is_primary_key": 1, "key_ordinal": 1},
	}
	catalog.responses["sys.foreign_keys"] = nil
	s := NewSchemaIntrospector(catalog, "crm", nil)

	table, err := s.LoadTable(context.Background(), "Orders")
	require.NoError(t, err)
	assert.Equal(t, "[crm].[Orders]", table.RawName)
	require.NotNil(t, table.SequenceName)
	assert.Empty(t, *table.SequenceName)
	assert.True(t, table.Column("id").AutoIncrement)

	sql, ok := NewDialect().LastInsertFallback(table)
	assert.True(t, ok)
	assert.Equal(t, "SELECT IDENT_CURRENT('[crm].[Orders]')", sql)
}

func TestSchemaIntrospector_MissingTable(t *testing.T) {
	catalog := linesCatalog()
	catalog.responses["sys.columns"] = nil
	s := NewSchemaIntrospector(catalog, "", nil)

	table, err := s.LoadTable(context.Background(), "Ghost")
	require.NoError(t, err)
	assert.Nil(t, table)
}

func TestSchemaIntrospector_Errors(t *testing.T) {
	catalog := linesCatalog()
	catalog.fail["sys.foreign_keys"] = errors.New("VIEW DEFINITION permission denied")
	s := NewSchemaIntrospector(catalog, "", zaptest.NewLogger(t))

	_, err := s.LoadTable(context.Background(), "OrderLines")
	require.ErrorIs(t, err, apperrors.ErrSchema)
	assert.ErrorContains(t, err, "read foreign keys")

	catalog.fail["sys.tables"] = errors.New("login failed")
	_, err = s.FindTableNames(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrSchema)
}

func TestSchemaIntrospector_EscapesNames(t *testing.T) {
	catalog := linesCatalog()
	s := NewSchemaIntrospector(catalog, "", nil)

	_, err := s.LoadTable(context.Background(), "o'brien")
	require.NoError(t, err)
	assert.Contains(t, catalog.queries[0], "QUOTENAME(N'o''brien')")
}
