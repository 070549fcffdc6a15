package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/fmpdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/fmpdb/pkg/models"
	"github.com/ekaya-inc/fmpdb/pkg/services"
)

type mockSchemaService struct {
	tables    []string
	desc      *services.TableDescription
	err       error
	refreshed []string
}

func (m *mockSchemaService) ListTables(ctx context.Context) ([]string, error) {
	return m.tables, m.err
}

func (m *mockSchemaService) DescribeTable(ctx context.Context, name string) (*services.TableDescription, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.desc, nil
}

func (m *mockSchemaService) Refresh(name string) {
	m.refreshed = append(m.refreshed, name)
}

type mockRecordService struct {
	table    string
	criteria *models.QueryCriteria
	data     models.ColumnValues
	keys     []any

	result   *datasource.QueryExecutionResult
	count    int64
	id       any
	idOK     bool
	affected int64
	err      error
}

func (m *mockRecordService) Find(ctx context.Context, table string, criteria *models.QueryCriteria) (*datasource.QueryExecutionResult, error) {
	m.table, m.criteria = table, criteria
	return m.result, m.err
}

func (m *mockRecordService) FindByPK(ctx context.Context, table string, keys []any) (*datasource.QueryExecutionResult, error) {
	m.table, m.keys = table, keys
	return m.result, m.err
}

func (m *mockRecordService) Count(ctx context.Context, table string, criteria *models.QueryCriteria) (int64, error) {
	m.table, m.criteria = table, criteria
	return m.count, m.err
}

func (m *mockRecordService) Insert(ctx context.Context, table string, data models.ColumnValues) (any, bool, error) {
	m.table, m.data = table, data
	return m.id, m.idOK, m.err
}

func (m *mockRecordService) InsertMany(ctx context.Context, table string, rows []models.ColumnValues) (int64, error) {
	m.table = table
	return int64(len(rows)), m.err
}

func (m *mockRecordService) Update(ctx context.Context, table string, data models.ColumnValues, criteria *models.QueryCriteria) (int64, error) {
	m.table, m.data, m.criteria = table, data, criteria
	return m.affected, m.err
}

func (m *mockRecordService) Delete(ctx context.Context, table string, criteria *models.QueryCriteria) (int64, error) {
	m.table, m.criteria = table, criteria
	return m.affected, m.err
}

func newTestServer(schema *mockSchemaService, records *mockRecordService) *server.MCPServer {
	mcpServer := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterTools(mcpServer, &Deps{
		Schema:  schema,
		Records: records,
		Dialect: "filemaker",
		Version: "1.2.3",
		Logger:  zap.NewNop(),
	})
	return mcpServer
}

// toolResponse is the parsed JSON-RPC response of a tools/call request.
type toolResponse struct {
	Result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (r toolResponse) text() string {
	if len(r.Result.Content) == 0 {
		return ""
	}
	return r.Result.Content[0].Text
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) toolResponse {
	t.Helper()

	request := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	}
	reqBytes, err := json.Marshal(request)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}

	result := s.HandleMessage(context.Background(), reqBytes)
	resultBytes, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("failed to marshal result: %v", err)
	}

	var response toolResponse
	if err := json.Unmarshal(resultBytes, &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return response
}

// listedTools returns the tools/list result keyed by tool name.
func listedTools(t *testing.T, s *server.MCPServer) map[string]mcp.Tool {
	t.Helper()

	reqBytes, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 1, "method": "tools/list"})
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	resultBytes, err := json.Marshal(s.HandleMessage(context.Background(), reqBytes))
	if err != nil {
		t.Fatalf("failed to marshal result: %v", err)
	}

	var response struct {
		Result mcp.ListToolsResult `json:"result"`
	}
	if err := json.Unmarshal(resultBytes, &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	tools := make(map[string]mcp.Tool, len(response.Result.Tools))
	for _, tool := range response.Result.Tools {
		tools[tool.Name] = tool
	}
	return tools
}

func decodeText(t *testing.T, response toolResponse, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(response.text()), v); err != nil {
		t.Fatalf("failed to parse tool text %q: %v", response.text(), err)
	}
}

func expectErrorCode(t *testing.T, response toolResponse, code string) {
	t.Helper()
	if !response.Result.IsError {
		t.Fatalf("expected error result, got %q", response.text())
	}
	var errResp ErrorResponse
	decodeText(t, response, &errResp)
	if errResp.Code != code {
		t.Errorf("expected code %q, got %q (%s)", code, errResp.Code, errResp.Message)
	}
}
