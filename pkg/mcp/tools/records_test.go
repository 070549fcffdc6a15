package tools

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ekaya-inc/fmpdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/fmpdb/pkg/apperrors"
	"github.com/ekaya-inc/fmpdb/pkg/builder"
	"github.com/ekaya-inc/fmpdb/pkg/models"
	sqlbind "github.com/ekaya-inc/fmpdb/pkg/sql"
)

func TestRecordTools_ParamsDescription(t *testing.T) {
	tools := listedTools(t, newTestServer(&mockSchemaService{}, &mockRecordService{}))

	find, ok := tools["find_rows"]
	if !ok {
		t.Fatal("find_rows is not registered")
	}
	if !strings.Contains(find.Description, "not converted to the column's type") {
		t.Errorf("find_rows description claims typed binding: %q", find.Description)
	}

	for _, name := range []string{"find_rows", "count_rows", "update_rows", "delete_rows"} {
		params, ok := tools[name].InputSchema.Properties["params"].(map[string]any)
		if !ok {
			t.Fatalf("%s has no params property", name)
		}
		description, _ := params["description"].(string)
		if !strings.Contains(description, "quoted text") || !strings.Contains(description, "{d '") {
			t.Errorf("%s params description = %q", name, description)
		}
	}
}

func contactRows() *datasource.QueryExecutionResult {
	return &datasource.QueryExecutionResult{
		Columns:  []datasource.ColumnInfo{{Name: "ID", Type: "DECIMAL"}, {Name: "Name", Type: "VARCHAR"}},
		Rows:     []map[string]any{{"ID": "1", "Name": "Ada"}},
		RowCount: 1,
	}
}

func TestFindRowsTool(t *testing.T) {
	records := &mockRecordService{result: contactRows()}
	mcpServer := newTestServer(&mockSchemaService{}, records)

	response := callTool(t, mcpServer, "find_rows", map[string]any{
		"table":    "Contacts",
		"columns":  []any{"ID", "Name"},
		"where":    "Name = :name",
		"params":   map[string]any{"name": "Ada"},
		"order":    "Name DESC",
		"limit":    10,
		"offset":   20,
		"distinct": true,
	})
	if response.Result.IsError {
		t.Fatalf("unexpected error: %s", response.text())
	}

	var result datasource.QueryExecutionResult
	decodeText(t, response, &result)
	if result.RowCount != 1 || result.Rows[0]["Name"] != "Ada" {
		t.Errorf("unexpected rows: %+v", result)
	}

	c := records.criteria
	if records.table != "Contacts" {
		t.Errorf("expected table Contacts, got %q", records.table)
	}
	if c.Condition != "Name = :name" || c.Params["name"] != "Ada" {
		t.Errorf("unexpected condition %q params %v", c.Condition, c.Params)
	}
	if len(c.Select) != 2 || c.Select[1] != "Name" {
		t.Errorf("unexpected select list %q", c.Select)
	}
	if c.Order != "Name DESC" || !c.Distinct {
		t.Errorf("unexpected order %q distinct %v", c.Order, c.Distinct)
	}
	if c.Limit != 10 || c.Offset != 20 {
		t.Errorf("expected limit 10 offset 20, got %d %d", c.Limit, c.Offset)
	}
}

func TestFindRowsTool_LimitDefaults(t *testing.T) {
	tests := []struct {
		name      string
		args      map[string]any
		wantLimit int
	}{
		{"default", map[string]any{"table": "Contacts"}, defaultRowLimit},
		{"capped", map[string]any{"table": "Contacts", "limit": 50000}, maxRowLimit},
		{"non-positive", map[string]any{"table": "Contacts", "limit": 0}, defaultRowLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := &mockRecordService{result: contactRows()}
			callTool(t, newTestServer(&mockSchemaService{}, records), "find_rows", tt.args)

			if records.criteria.Limit != tt.wantLimit {
				t.Errorf("expected limit %d, got %d", tt.wantLimit, records.criteria.Limit)
			}
			if records.criteria.Offset != models.NoLimit {
				t.Errorf("expected no offset, got %d", records.criteria.Offset)
			}
			if !records.criteria.SelectsAll() {
				t.Errorf("expected all columns, got %q", records.criteria.Select)
			}
		})
	}
}

func TestFindRowsTool_InvalidColumns(t *testing.T) {
	records := &mockRecordService{}
	mcpServer := newTestServer(&mockSchemaService{}, records)

	response := callTool(t, mcpServer, "find_rows", map[string]any{"table": "Contacts", "columns": map[string]any{"a": 1}})
	expectErrorCode(t, response, "invalid_parameters")
	if records.table != "" {
		t.Error("service must not be called with invalid arguments")
	}
}

func TestFindByKeyTool(t *testing.T) {
	records := &mockRecordService{result: contactRows()}
	mcpServer := newTestServer(&mockSchemaService{}, records)

	response := callTool(t, mcpServer, "find_by_key", map[string]any{
		"table": "LineItems",
		"keys":  []any{map[string]any{"OrderID": 1, "Line": 2}, 7},
	})
	if response.Result.IsError {
		t.Fatalf("unexpected error: %s", response.text())
	}
	if len(records.keys) != 2 {
		t.Fatalf("expected 2 keys, got %v", records.keys)
	}
	if tuple, ok := records.keys[0].(map[string]any); !ok || tuple["Line"] != float64(2) {
		t.Errorf("expected composite key map, got %#v", records.keys[0])
	}

	expectErrorCode(t, callTool(t, mcpServer, "find_by_key", map[string]any{"table": "LineItems", "keys": []any{}}), "invalid_parameters")
	expectErrorCode(t, callTool(t, mcpServer, "find_by_key", map[string]any{"table": "LineItems", "keys": "1"}), "invalid_parameters")
}

func TestFindByKeyTool_NoPrimaryKey(t *testing.T) {
	records := &mockRecordService{err: apperrors.NewSchemaError("Log", builder.ErrNoPrimaryKey)}
	mcpServer := newTestServer(&mockSchemaService{}, records)

	expectErrorCode(t, callTool(t, mcpServer, "find_by_key", map[string]any{"table": "Log", "keys": []any{1}}), "no_primary_key")
}

func TestCountRowsTool(t *testing.T) {
	records := &mockRecordService{count: 42}
	mcpServer := newTestServer(&mockSchemaService{}, records)

	var result struct {
		Table string `json:"table"`
		Count int64  `json:"count"`
	}
	decodeText(t, callTool(t, mcpServer, "count_rows", map[string]any{
		"table":  "Contacts",
		"where":  "Status = :status",
		"params": map[string]any{"status": "Active"},
	}), &result)

	if result.Count != 42 || result.Table != "Contacts" {
		t.Errorf("unexpected result: %+v", result)
	}
	if records.criteria.Params["status"] != "Active" {
		t.Errorf("params not forwarded: %v", records.criteria.Params)
	}
}

func TestInsertRowTool(t *testing.T) {
	records := &mockRecordService{id: int64(17), idOK: true}
	mcpServer := newTestServer(&mockSchemaService{}, records)

	var result map[string]any
	decodeText(t, callTool(t, mcpServer, "insert_row", map[string]any{
		"table":  "Contacts",
		"values": map[string]any{"Name": "Ada", "City": "London"},
	}), &result)

	if result["inserted"] != true || result["id"] != float64(17) {
		t.Errorf("unexpected result: %v", result)
	}
	if len(records.data) != 2 || records.data[0].Column != "City" || records.data[1].Value != "Ada" {
		t.Errorf("expected values ordered by column, got %+v", records.data)
	}
}

func TestInsertRowTool_KeyUnavailable(t *testing.T) {
	mcpServer := newTestServer(&mockSchemaService{}, &mockRecordService{})

	var result map[string]any
	decodeText(t, callTool(t, mcpServer, "insert_row", map[string]any{
		"table":  "Log",
		"values": map[string]any{"Message": "hello"},
	}), &result)

	if _, ok := result["id"]; ok {
		t.Errorf("expected no id, got %v", result)
	}
	expectErrorCode(t, callTool(t, mcpServer, "insert_row", map[string]any{"table": "Log"}), "invalid_parameters")
}

func TestUpdateRowsTool(t *testing.T) {
	records := &mockRecordService{affected: 3}
	mcpServer := newTestServer(&mockSchemaService{}, records)

	var result map[string]any
	decodeText(t, callTool(t, mcpServer, "update_rows", map[string]any{
		"table":  "Contacts",
		"values": map[string]any{"Status": "Closed"},
		"where":  "City = :city",
		"params": map[string]any{"city": "London"},
	}), &result)

	if result["rows_affected"] != float64(3) {
		t.Errorf("unexpected result: %v", result)
	}
	if records.criteria.Condition != "City = :city" {
		t.Errorf("unexpected condition %q", records.criteria.Condition)
	}
	if v, _ := records.data.Get("Status"); v != "Closed" {
		t.Errorf("unexpected data %+v", records.data)
	}
}

func TestWriteToolsRequireWhere(t *testing.T) {
	records := &mockRecordService{}
	mcpServer := newTestServer(&mockSchemaService{}, records)

	expectErrorCode(t, callTool(t, mcpServer, "update_rows", map[string]any{
		"table":  "Contacts",
		"values": map[string]any{"Status": "Closed"},
	}), "invalid_parameters")
	expectErrorCode(t, callTool(t, mcpServer, "delete_rows", map[string]any{"table": "Contacts", "where": " "}), "invalid_parameters")

	if records.table != "" {
		t.Error("service must not be called without a condition")
	}
}

func TestDeleteRowsTool(t *testing.T) {
	records := &mockRecordService{affected: 1}
	mcpServer := newTestServer(&mockSchemaService{}, records)

	var result map[string]any
	decodeText(t, callTool(t, mcpServer, "delete_rows", map[string]any{
		"table":  "Contacts",
		"where":  "ID = :id",
		"params": map[string]any{"id": 5},
	}), &result)

	if result["rows_affected"] != float64(1) {
		t.Errorf("unexpected result: %v", result)
	}
	if records.criteria.Params["id"] != float64(5) {
		t.Errorf("params not forwarded: %v", records.criteria.Params)
	}
}

func TestRecordTools_InputErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"unknown table", apperrors.NewSchemaError("Nope", apperrors.ErrNotFound), "table_not_found"},
		{"unbound parameter", fmt.Errorf("bind: %w", apperrors.ErrUnboundParameter), "unbound_parameter"},
		{"suspicious value", apperrors.ErrSuspiciousValue, "suspicious_value"},
		{"no updatable columns", &apperrors.NoUpdatableColumnsError{Table: "Contacts"}, "no_updatable_columns"},
		{"multiple statements", sqlbind.ErrMultipleStatements, "multiple_statements"},
		{"unsupported count", &apperrors.UnsupportedOperationError{Dialect: "filemaker", Operation: "distinct count of T without a single-column primary key"}, "unsupported_operation"},
		{"sql syntax", errors.New(`failed to execute statement: ERROR: syntax error at or near "FROM" (SQLSTATE 42601)`), "syntax_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mcpServer := newTestServer(&mockSchemaService{}, &mockRecordService{err: tt.err})
			response := callTool(t, mcpServer, "update_rows", map[string]any{
				"table":  "Contacts",
				"values": map[string]any{"Status": "Closed"},
				"where":  "ID = 1",
			})
			expectErrorCode(t, response, tt.code)
		})
	}
}

func TestRecordTools_ServerErrorIsProtocolError(t *testing.T) {
	mcpServer := newTestServer(&mockSchemaService{}, &mockRecordService{err: errors.New("08S01 communication link failure")})

	response := callTool(t, mcpServer, "count_rows", map[string]any{"table": "Contacts"})
	if response.Error == nil {
		t.Fatalf("expected JSON-RPC error, got %s", response.text())
	}
}
