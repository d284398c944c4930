package api

import (
	"net/http"

	"github.com/parley0/parley/internal/chat"
	"github.com/parley0/parley/internal/log"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	store  chat.Store
	logger log.Logger
}

// NewHealthHandler creates a health handler backed by the given store.
func NewHealthHandler(store chat.Store, logger log.Logger) *HealthHandler {
	return &HealthHandler{store: store, logger: logger}
}

// RegisterRoutes registers the probe endpoints on the mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /ready", h.ready)
}

// health reports process liveness. It never touches dependencies.
func (h *HealthHandler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ready reports whether the conversation store is reachable.
func (h *HealthHandler) ready(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
