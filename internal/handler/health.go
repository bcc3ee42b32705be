package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ready(ctx context.Context) error
}

// HealthHandler serves the plain-text probe endpoints.
//
//	GET /health   → "ok" while the process is up
//	GET /version  → the configured version string
//	GET /ready    → "ready", or 503 when storage cannot be reached
type HealthHandler struct {
	version string
	storage Pinger
	logger  *slog.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(version string, storage Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{version: version, storage: storage, logger: logger}
}

func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func (h *HealthHandler) HandleVersion(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, h.version)
}

func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.storage.Ready(ctx); err != nil {
		h.logger.Warn("readiness check failed", slog.String("error", err.Error()))
		writeText(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	writeText(w, http.StatusOK, "ready")
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
