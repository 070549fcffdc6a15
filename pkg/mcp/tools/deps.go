package tools

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/fmpdb/pkg/logging"
	"github.com/ekaya-inc/fmpdb/pkg/services"
)

// Deps contains the services the MCP tools call into.
type Deps struct {
	Schema  services.SchemaService
	Records services.RecordService
	// Dialect names the SQL dialect of the connected datasource.
	Dialect string
	Version string
	Logger  *zap.Logger
}

// RegisterTools adds every tool to the MCP server.
func RegisterTools(s *server.MCPServer, deps *Deps) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	RegisterHealthTool(s, deps.Version, deps.Dialect)
	RegisterSchemaTools(s, deps)
	RegisterRecordTools(s, deps)
}

// toolFailure converts err into a structured result when the caller can fix
// it, and otherwise returns it as a Go error.
func (d *Deps) toolFailure(tool string, err error) (*mcp.CallToolResult, error) {
	if result := NewInputErrorResult(err); result != nil {
		d.Logger.Debug("Tool rejected input",
			zap.String("tool", tool),
			zap.String("error", logging.SanitizeError(err)))
		return result, nil
	}
	d.Logger.Error("Tool failed",
		zap.String("tool", tool),
		zap.String("error", logging.SanitizeError(err)))
	return nil, err
}
