package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/fmpdb/pkg/adapters/datasource"
	"github.com/ekaya-inc/fmpdb/pkg/logging"
)

const readyTimeout = 5 * time.Second

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string                      `json:"status"`
	Connections *datasource.ConnectionStats `json:"connections,omitempty"`
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Dialect   string `json:"dialect"`
	GoVersion string `json:"go_version"`
	Hostname  string `json:"hostname"`
}

// HealthHandler serves the liveness, readiness and ping endpoints.
type HealthHandler struct {
	version string
	dialect string
	connMgr *datasource.ConnectionManager
	tester  datasource.ConnectionTester
	logger  *zap.Logger
}

// NewHealthHandler creates a HealthHandler. connMgr and tester may be nil,
// in which case pool stats are omitted and /ready always succeeds.
func NewHealthHandler(version, dialect string, connMgr *datasource.ConnectionManager, tester datasource.ConnectionTester, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		version: version,
		dialect: dialect,
		connMgr: connMgr,
		tester:  tester,
		logger:  logger,
	}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health reports liveness along with connection pool statistics.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "ok"}
	if h.connMgr != nil {
		stats := h.connMgr.GetStats()
		response.Connections = &stats
	}
	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ready checks that the datasource answers.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.tester != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := h.tester.TestConnection(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("error", logging.SanitizeError(err)))
			if err := ErrorResponse(w, http.StatusServiceUnavailable, "datasource_unavailable", "datasource is not reachable"); err != nil {
				h.logger.Error("Failed to encode readiness response", zap.Error(err))
			}
			return
		}
	}
	if err := WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"}); err != nil {
		h.logger.Error("Failed to encode readiness response", zap.Error(err))
	}
}

// Ping returns service information including version and dialect.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:    "ok",
		Version:   h.version,
		Service:   "fmpdb",
		Dialect:   h.dialect,
		GoVersion: runtime.Version(),
		Hostname:  hostname,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
