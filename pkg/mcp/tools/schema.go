package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// RegisterSchemaTools adds the catalog tools: list_tables, describe_table
// and refresh_schema.
func RegisterSchemaTools(s *server.MCPServer, deps *Deps) {
	registerListTablesTool(s, deps)
	registerDescribeTableTool(s, deps)
	registerRefreshSchemaTool(s, deps)
}

func registerListTablesTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"list_tables",
		mcp.WithDescription("Lists the user tables of the connected database. System tables are excluded."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		names, err := deps.Schema.ListTables(ctx)
		if err != nil {
			return deps.toolFailure("list_tables", err)
		}
		if names == nil {
			names = []string{}
		}
		return jsonResult(map[string]any{
			"tables": names,
			"count":  len(names),
		})
	})
}

func registerDescribeTableTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"describe_table",
		mcp.WithDescription(
			"Describes one table: columns with their abstract and database types, nullability, "+
				"defaults, primary key and foreign key references.",
		),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("Table name as returned by list_tables"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: json (default) or yaml"),
			mcp.Enum("json", "yaml"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, errResult := requireTable(req)
		if errResult != nil {
			return errResult, nil
		}

		format := getOptionalString(req, "format")
		if format != "" && format != "json" && format != "yaml" {
			return NewErrorResult("invalid_parameters",
				fmt.Sprintf("invalid format %q: must be json or yaml", format)), nil
		}

		desc, err := deps.Schema.DescribeTable(ctx, table)
		if err != nil {
			return deps.toolFailure("describe_table", err)
		}

		if format == "yaml" {
			out, err := yaml.Marshal(desc)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal table description: %w", err)
			}
			return mcp.NewToolResultText(string(out)), nil
		}
		return jsonResult(desc)
	})
}

func registerRefreshSchemaTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"refresh_schema",
		mcp.WithDescription(
			"Drops cached table metadata so the next call reads the catalog again. "+
				"Omit table to drop everything.",
		),
		mcp.WithString("table",
			mcp.Description("Table to refresh; omit to refresh all tables"),
		),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table := getOptionalString(req, "table")
		deps.Schema.Refresh(table)
		deps.Logger.Info("Schema cache refreshed", zap.String("table", table))

		scope := table
		if scope == "" {
			scope = "all"
		}
		return jsonResult(map[string]any{"refreshed": scope})
	})
}
