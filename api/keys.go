package api

import (
	"encoding/json"
	"net/http"

	"github.com/parley0/parley/internal/keys"
	"github.com/parley0/parley/internal/log"
	"github.com/parley0/parley/internal/registry"
)

// KeyHandler serves provider credential status and updates. Key material
// never leaves the server; responses only say configured or not.
type KeyHandler struct {
	keys     *keys.Store
	registry *registry.Registry
	logger   log.Logger
}

// NewKeyHandler creates a key handler backed by the given stores.
func NewKeyHandler(ks *keys.Store, reg *registry.Registry, logger log.Logger) *KeyHandler {
	return &KeyHandler{keys: ks, registry: reg, logger: logger}
}

// RegisterRoutes registers the credential endpoints on the mux.
func (h *KeyHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/keys", h.status)
	mux.HandleFunc("POST /api/keys", h.update)
}

func (h *KeyHandler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.keys.Configured(h.registry.Providers()))
}

func (h *KeyHandler) update(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Keys map[string]string `json:"keys"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.keys.Set(body.Keys); err != nil {
		h.logger.Error("save keys", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save keys")
		return
	}
	writeJSON(w, http.StatusOK, h.keys.Configured(h.registry.Providers()))
}
