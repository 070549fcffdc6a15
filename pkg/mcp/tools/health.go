package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type healthResult struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Dialect string `json:"dialect,omitempty"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server status, version and datasource dialect.
func RegisterHealthTool(s *server.MCPServer, version, dialectName string) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status, version and the SQL dialect in use"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(healthResult{Status: "ok", Version: version, Dialect: dialectName})
	})
}
