package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/ekaya-inc/fmpdb/pkg/adapters/datasource"
)

type stubTester struct{ err error }

func (s *stubTester) TestConnection(ctx context.Context) error { return s.err }
func (s *stubTester) Close() error                            { return nil }

func TestHealthHandler_Health_WithoutConnManager(t *testing.T) {
	handler := NewHealthHandler("test-version", "filemaker", nil, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", response.Status)
	}
	if response.Connections != nil {
		t.Error("expected no connection stats without a connection manager")
	}
}

func TestHealthHandler_Health_WithConnManager(t *testing.T) {
	connMgr := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{
		TTLMinutes:            5,
		MaxConnectionsPerUser: 3,
	}, zap.NewNop())
	defer connMgr.Close()

	handler := NewHealthHandler("test-version", "filemaker", connMgr, nil, zap.NewNop())
	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var response HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Connections == nil {
		t.Fatal("expected connection stats")
	}
	if response.Connections.TotalConnections != 0 {
		t.Errorf("expected 0 connections, got %d", response.Connections.TotalConnections)
	}
	if response.Connections.MaxConnectionsPerUser != 3 {
		t.Errorf("expected max 3 per user, got %d", response.Connections.MaxConnectionsPerUser)
	}
}

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name   string
		tester datasource.ConnectionTester
		want   int
	}{
		{"no tester", nil, http.StatusOK},
		{"reachable", &stubTester{}, http.StatusOK},
		{"unreachable", &stubTester{err: errors.New("dial tcp: connection refused")}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler("v", "filemaker", nil, tt.tester, zap.NewNop())
			rec := httptest.NewRecorder()
			handler.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestHealthHandler_Ping(t *testing.T) {
	handler := NewHealthHandler("1.2.3", "mssql", nil, nil, nil)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}

	var response PingResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Version != "1.2.3" || response.Service != "fmpdb" || response.Dialect != "mssql" {
		t.Errorf("unexpected ping response: %+v", response)
	}
	if response.GoVersion == "" {
		t.Error("expected go version")
	}
}
