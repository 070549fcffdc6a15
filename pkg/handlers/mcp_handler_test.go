package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ekaya-inc/fmpdb/pkg/mcp"
	"github.com/ekaya-inc/fmpdb/pkg/mcp/tools"
)

func newTestMux(t *testing.T, basePath string) *http.ServeMux {
	t.Helper()
	logger := zap.NewNop()
	mcpServer := mcp.NewServer("test", "test-version", logger)
	tools.RegisterHealthTool(mcpServer.MCP(), "test-version", "filemaker")

	mux := http.NewServeMux()
	NewMCPHandler(mcpServer, logger).RegisterRoutes(mux, basePath)
	return mux
}

func TestNewMCPHandler(t *testing.T) {
	logger := zap.NewNop()
	handler := NewMCPHandler(mcp.NewServer("test", "1.0.0", logger), logger)

	if handler.httpServer == nil {
		t.Fatal("expected non-nil http server")
	}
	if handler.logger != logger {
		t.Error("expected logger to be set")
	}
}

func TestMCPHandler_ToolsCall(t *testing.T) {
	mux := newTestMux(t, "/mcp")

	body := `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"health"},"id":1}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response struct {
		JSONRPC string `json:"jsonrpc"`
		Result  struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Result.Content) == 0 {
		t.Fatal("expected content in response")
	}

	var health struct {
		Status  string `json:"status"`
		Dialect string `json:"dialect"`
	}
	if err := json.Unmarshal([]byte(response.Result.Content[0].Text), &health); err != nil {
		t.Fatalf("failed to unmarshal health result: %v", err)
	}
	if health.Status != "ok" || health.Dialect != "filemaker" {
		t.Errorf("unexpected health result: %+v", health)
	}
}

func TestMCPHandler_CustomBasePath(t *testing.T) {
	mux := newTestMux(t, "/tools")

	body := `{"jsonrpc":"2.0","method":"tools/list","id":1}`
	req := httptest.NewRequest(http.MethodPost, "/tools", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body)))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected /mcp to be unrouted, got %d", rec.Code)
	}
}

func TestMCPHandler_RejectsNonPOST(t *testing.T) {
	mux := newTestMux(t, "/mcp")

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(method, "/mcp", nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
		}
		if allow := rec.Header().Get("Allow"); allow != "POST" {
			t.Errorf("%s: expected Allow header POST, got %q", method, allow)
		}
	}
}
