package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/fmpdb/pkg/models"
)

// RegisterRecordTools adds the row tools: find_rows, find_by_key,
// count_rows, insert_row, update_rows and delete_rows.
func RegisterRecordTools(s *server.MCPServer, deps *Deps) {
	registerFindRowsTool(s, deps)
	registerFindByKeyTool(s, deps)
	registerCountRowsTool(s, deps)
	registerInsertRowTool(s, deps)
	registerUpdateRowsTool(s, deps)
	registerDeleteRowsTool(s, deps)
}

func whereOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("where",
			mcp.Description(`Optional WHERE condition using :name placeholders (e.g., "Status = :status")`),
		),
		mcp.WithObject("params",
			mcp.Description(`Values for the placeholders in where (e.g., {"status": "Active"}). Every value is bound as quoted text; write date and time comparisons with ODBC escapes in where (e.g., "Created >= {d '2024-01-05'}")`),
		),
	}
}

func toolDefinition(name, description string, readOnly bool, extra ...mcp.ToolOption) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("Table name as returned by list_tables"),
		),
	}
	opts = append(opts, extra...)
	opts = append(opts,
		mcp.WithReadOnlyHintAnnotation(readOnly),
		mcp.WithDestructiveHintAnnotation(!readOnly),
		mcp.WithIdempotentHintAnnotation(readOnly),
		mcp.WithOpenWorldHintAnnotation(false),
	)
	return mcp.NewTool(name, opts...)
}

// criteriaFromRequest reads the where, params, columns, order and distinct
// arguments.
func criteriaFromRequest(req mcp.CallToolRequest) (*models.QueryCriteria, error) {
	criteria := models.NewQueryCriteria()
	criteria.Condition = getOptionalString(req, "where")
	criteria.Order = getOptionalString(req, "order")
	criteria.Distinct = getOptionalBool(req, "distinct")
	for name, value := range getOptionalObject(req, "params") {
		criteria.Params[name] = value
	}

	columns, err := getOptionalStringSlice(req, "columns")
	if err != nil {
		return nil, err
	}
	criteria.Select = columns
	return criteria, nil
}

func registerFindRowsTool(s *server.MCPServer, deps *Deps) {
	opts := append(whereOptions(),
		mcp.WithArray("columns",
			mcp.Description("Columns to return; omit for all columns"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("order",
			mcp.Description(`ORDER BY clause without the keywords (e.g., "LastName ASC")`),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum rows to return (default: %d, max: %d)", defaultRowLimit, maxRowLimit)),
		),
		mcp.WithNumber("offset",
			mcp.Description("Rows to skip before returning results"),
		),
		mcp.WithBoolean("distinct",
			mcp.Description("Return only distinct rows"),
		),
	)
	tool := toolDefinition("find_rows",
		"Reads rows from a table. Values in params are bound as plain literals, not converted to the column's type.",
		true, opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, errResult := requireTable(req)
		if errResult != nil {
			return errResult, nil
		}
		criteria, err := criteriaFromRequest(req)
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		criteria.Limit = rowLimit(req)
		if offset, ok := getOptionalFloat(req, "offset"); ok && offset > 0 {
			criteria.Offset = int(offset)
		}

		result, err := deps.Records.Find(ctx, table, criteria)
		if err != nil {
			return deps.toolFailure("find_rows", err)
		}
		return jsonResult(result)
	})
}

func registerFindByKeyTool(s *server.MCPServer, deps *Deps) {
	tool := toolDefinition("find_by_key",
		"Reads rows by primary key. Each element of keys is one key value, or an object of "+
			"column values for tables with a composite key.",
		true,
		mcp.WithArray("keys",
			mcp.Required(),
			mcp.Description(`Primary key values (e.g., [1, 2] or [{"OrderID": 1, "Line": 2}])`),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, errResult := requireTable(req)
		if errResult != nil {
			return errResult, nil
		}
		keys, ok := arguments(req)["keys"].([]any)
		if !ok || len(keys) == 0 {
			return NewErrorResult("invalid_parameters", "parameter 'keys' must be a non-empty array"), nil
		}

		result, err := deps.Records.FindByPK(ctx, table, keys)
		if err != nil {
			return deps.toolFailure("find_by_key", err)
		}
		return jsonResult(result)
	})
}

func registerCountRowsTool(s *server.MCPServer, deps *Deps) {
	opts := append(whereOptions(),
		mcp.WithBoolean("distinct",
			mcp.Description("Count distinct primary key values; the table needs a single-column primary key"),
		),
	)
	tool := toolDefinition("count_rows", "Counts the rows of a table matching an optional condition.", true, opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, errResult := requireTable(req)
		if errResult != nil {
			return errResult, nil
		}
		criteria, err := criteriaFromRequest(req)
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		count, err := deps.Records.Count(ctx, table, criteria)
		if err != nil {
			return deps.toolFailure("count_rows", err)
		}
		return jsonResult(map[string]any{"table": table, "count": count})
	})
}

func registerInsertRowTool(s *server.MCPServer, deps *Deps) {
	tool := toolDefinition("insert_row",
		"Inserts one row. Unknown and calculated columns are ignored. Returns the new primary key "+
			"when the database can report it.",
		false,
		mcp.WithObject("values",
			mcp.Required(),
			mcp.Description(`Column values (e.g., {"FirstName": "Ada", "LastName": "Lovelace"})`),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, errResult := requireTable(req)
		if errResult != nil {
			return errResult, nil
		}
		values := getOptionalObject(req, "values")
		if len(values) == 0 {
			return NewErrorResult("invalid_parameters", "parameter 'values' must be a non-empty object"), nil
		}

		id, ok, err := deps.Records.Insert(ctx, table, models.ColumnValuesFromMap(values))
		if err != nil {
			return deps.toolFailure("insert_row", err)
		}
		resp := map[string]any{"table": table, "inserted": true}
		if ok {
			resp["id"] = id
		}
		return jsonResult(resp)
	})
}

// requireWhere rejects unconditional writes.
func requireWhere(req mcp.CallToolRequest, tool string) *mcp.CallToolResult {
	if getOptionalString(req, "where") == "" {
		return NewErrorResult("invalid_parameters",
			fmt.Sprintf("parameter 'where' is required for %s", tool))
	}
	return nil
}

func registerUpdateRowsTool(s *server.MCPServer, deps *Deps) {
	opts := append(whereOptions(),
		mcp.WithObject("values",
			mcp.Required(),
			mcp.Description(`Column values to set (e.g., {"Status": "Closed"})`),
		),
	)
	tool := toolDefinition("update_rows",
		"Updates the rows matching where. Unknown and calculated columns are ignored; where is required.",
		false, opts...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, errResult := requireTable(req)
		if errResult != nil {
			return errResult, nil
		}
		if errResult := requireWhere(req, "update_rows"); errResult != nil {
			return errResult, nil
		}
		values := getOptionalObject(req, "values")
		if len(values) == 0 {
			return NewErrorResult("invalid_parameters", "parameter 'values' must be a non-empty object"), nil
		}
		criteria, err := criteriaFromRequest(req)
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		affected, err := deps.Records.Update(ctx, table, models.ColumnValuesFromMap(values), criteria)
		if err != nil {
			return deps.toolFailure("update_rows", err)
		}
		return jsonResult(map[string]any{"table": table, "rows_affected": affected})
	})
}

func registerDeleteRowsTool(s *server.MCPServer, deps *Deps) {
	tool := toolDefinition("delete_rows", "Deletes the rows matching where; where is required.", false, whereOptions()...)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, errResult := requireTable(req)
		if errResult != nil {
			return errResult, nil
		}
		if errResult := requireWhere(req, "delete_rows"); errResult != nil {
			return errResult, nil
		}
		criteria, err := criteriaFromRequest(req)
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}

		affected, err := deps.Records.Delete(ctx, table, criteria)
		if err != nil {
			return deps.toolFailure("delete_rows", err)
		}
		return jsonResult(map[string]any{"table": table, "rows_affected": affected})
	})
}
