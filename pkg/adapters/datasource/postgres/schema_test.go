//go:build postgres || all_adapters

package postgres

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

var markers = []string{
	"information_schema.tables",
	"'PRIMARY KEY'",
	"'FOREIGN KEY'",
	"pg_get_serial_sequence",
	"information_schema.columns",
}

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

func ordersCatalog() *fakeCatalog {
	return &fakeCatalog{
		responses: map[string][]map[string]any{
			"information_schema.tables": {{"table_name": "customers"}, {"table_name": "orders"}},
			"information_schema.columns": {
				{"column_name": "id", "data_type": "integer", "udt_name": "int4", "is_nullable": "NO", "column_default": "nextval('orders_id_seq'::regclass)", "is_identity": "NO", "is_generated": "NEVER"},
				{"column_name": "customer_id", "data_type": "integer", "udt_name": "int4", "is_nullable": "YES", "column_default": nil, "is_identity": "NO", "is_generated": "NEVER"},
				{"column_name": "status", "data_type": "USER-DEFINED", "udt_name": "order_status", "is_nullable": "NO", "column_default": "'new'::order_status", "is_identity": "NO", "is_generated": "NEVER"},
				{"column_name": "total", "data_type": "numeric", "udt_name": "numeric", "is_nullable": "YES", "column_default": nil, "is_identity": "NO", "is_generated": "ALWAYS"},
			},
			"'PRIMARY KEY'": {{"column_name": "id"}},
			"'FOREIGN KEY'": {{"column_name": "customer_id", "referenced_table": "customers", "referenced_column": "id"}},
		},
		fail: map[string]error{},
	}
}

func TestSchemaIntrospector_FindTableNames(t *testing.T) {
	catalog := ordersCatalog()
	s := NewSchemaIntrospector(catalog, "", zaptest.NewLogger(t))

	names, err := s.FindTableNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"customers", "orders"}, names)
	assert.Contains(t, catalog.queries[0], "table_schema = 'public'")
}

func TestSchemaIntrospector_LoadTable(t *testing.T) {
	catalog := ordersCatalog()
	s := NewSchemaIntrospector(catalog, DefaultSchema, zaptest.NewLogger(t))

	table, err := s.LoadTable(context.Background(), "orders")
	require.NoError(t, err)
	require.NotNil(t, table)

	assert.Equal(t, `"orders"`, table.RawName)
	assert.Equal(t, []string{"id", "customer_id", "status", "total"}, table.ColumnNames())
	assert.Equal(t, []string{"id"}, table.PrimaryKey)
	require.NotNil(t, table.SequenceName)
	assert.Equal(t, "orders_id_seq", *table.SequenceName)

	id := table.Column("id")
	assert.True(t, id.IsPrimaryKey())
	assert.True(t, id.AutoIncrement)
	assert.False(t, id.AllowNull)
	assert.Empty(t, id.DefaultValue)

	customer := table.Column("customer_id")
	assert.Equal(t, models.KeyRoleForeignKey, customer.Role)
	assert.Equal(t, "customers", customer.ReferencedTable)
	assert.True(t, customer.AllowNull)
	assert.Equal(t, models.ForeignKeyRef{Table: "customers", Column: "id"}, table.ForeignKeys["customer_id"])

	status := table.Column("status")
	assert.Equal(t, "order_status", status.DBType)
	assert.Equal(t, "'new'::order_status", status.DefaultValue)

	assert.True(t, table.Column("total").IsCalculated)

	for _, q := range catalog.queries {
		assert.NotContains(t, q, "pg_get_serial_sequence")
	}
}

func TestSchemaIntrospector_IdentityKey(t *testing.T) {
	catalog := ordersCatalog()
	catalog.responses["information_schema.columns"] = []map[string]any{
		{"column_name": "id", "data_type": "bigint", "is_nullable": "NO", "column_default": nil, "is_identity": "YES"},
	}
	catalog.responses["'FOREIGN KEY'"] = nil
	catalog.responses["pg_get_serial_sequence"] = []map[string]any{{"sequence_name": "crm.orders_id_seq"}}
	s := NewSchemaIntrospector(catalog, "crm", nil)

	table, err := s.LoadTable(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, `"crm"."orders"`, table.RawName)
	require.NotNil(t, table.SequenceName)
	assert.Equal(t, "crm.orders_id_seq", *table.SequenceName)
	assert.Contains(t, catalog.queries[len(catalog.queries)-1], `pg_get_serial_sequence('"crm"."orders"', 'id')`)
}

func TestSchemaIntrospector_PrimaryKeyWinsOverForeignKey(t *testing.T) {
	catalog := ordersCatalog()
	catalog.responses["'PRIMARY KEY'"] = []map[string]any{{"column_name": "id"}, {"column_name": "customer_id"}}
	s := NewSchemaIntrospector(catalog, "", nil)

	table, err := s.LoadTable(context.Background(), "orders")
	require.NoError(t, err)
	assert.True(t, table.IsCompositeKey())
	assert.Nil(t, table.SequenceName)
	assert.True(t, table.Column("customer_id").IsPrimaryKey())
	assert.Contains(t, table.ForeignKeys, "customer_id")
}

func TestSchemaIntrospector_MissingTable(t *testing.T) {
	catalog := ordersCatalog()
	catalog.responses["information_schema.columns"] = nil
	s := NewSchemaIntrospector(catalog, "", nil)

	table, err := s.LoadTable(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, table)
}

func TestSchemaIntrospector_Errors(t *testing.T) {
	catalog := ordersCatalog()
	catalog.fail["'FOREIGN KEY'"] = errors.New("permission denied for schema crm")
	s := NewSchemaIntrospector(catalog, "", zaptest.NewLogger(t))

	_, err := s.LoadTable(context.Background(), "orders")
	require.ErrorIs(t, err, apperrors.ErrSchema)
	assert.ErrorContains(t, err, "read foreign keys")

	catalog.fail["information_schema.tables"] = errors.New("permission denied")
	_, err = s.FindTableNames(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrSchema)
}

func TestSchemaIntrospector_EscapesNames(t *testing.T) {
	catalog := ordersCatalog()
	s := NewSchemaIntrospector(catalog, "", nil)

	_, err := s.LoadTable(context.Background(), "o'brien")
	require.NoError(t, err)
	assert.Contains(t, catalog.queries[0], "table_name = 'o''brien'")
}
