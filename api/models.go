package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/parley0/parley/internal/chat"
	"github.com/parley0/parley/internal/keys"
	"github.com/parley0/parley/internal/log"
	"github.com/parley0/parley/internal/registry"
)

// modelsFetchTimeout bounds the upstream model-listing call.
const modelsFetchTimeout = 15 * time.Second

// ModelHandler serves the cached upstream model listing and registry model
// management.
type ModelHandler struct {
	registry  *registry.Registry
	keys      *keys.Store
	cache     *registry.ModelCache
	modelsURL string
	client    *http.Client
	logger    log.Logger
}

// NewModelHandler creates a model handler. modelsURL is the upstream
// model-listing endpoint proxied by GET /api/models.
func NewModelHandler(reg *registry.Registry, ks *keys.Store, cache *registry.ModelCache, modelsURL string, logger log.Logger) *ModelHandler {
	if cache == nil {
		cache = registry.NewModelCache(10 * time.Minute)
	}
	return &ModelHandler{
		registry:  reg,
		keys:      ks,
		cache:     cache,
		modelsURL: modelsURL,
		client:    &http.Client{Timeout: modelsFetchTimeout},
		logger:    logger,
	}
}

// RegisterRoutes registers the model endpoints on the mux.
func (h *ModelHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/models", h.list)
	mux.HandleFunc("POST /api/providers/{provider}/models", h.add)
	mux.HandleFunc("PUT /api/providers/{provider}/models/reorder", h.reorder)
	mux.HandleFunc("DELETE /api/providers/{provider}/models/{id...}", h.remove)
}

// list proxies the upstream model listing, caching the raw document so
// repeated opens of the model picker do not hammer the upstream.
func (h *ModelHandler) list(w http.ResponseWriter, r *http.Request) {
	if data, ok := h.cache.Get(time.Now()); ok {
		writeJSON(w, http.StatusOK, map[string]json.RawMessage{"data": data})
		return
	}

	apiKey := h.keys.Get(chat.DefaultProvider)
	if apiKey == "" {
		writeError(w, http.StatusUnauthorized, "no API key configured")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, h.modelsURL, nil)
	if err != nil {
		h.logger.Error("build models request", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build upstream request")
		return
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("fetch models", "error", err)
		writeError(w, http.StatusBadGateway, "failed to fetch models")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		writeError(w, resp.StatusCode, "upstream model listing failed")
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.logger.Warn("read models response", "error", err)
		writeError(w, http.StatusBadGateway, "failed to read models response")
		return
	}
	var parsed struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Data) == 0 {
		writeError(w, http.StatusBadGateway, "malformed models response")
		return
	}

	h.cache.Set(parsed.Data, time.Now())
	writeJSON(w, http.StatusOK, map[string]json.RawMessage{"data": parsed.Data})
}

func (h *ModelHandler) add(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	var model registry.Model
	if err := json.NewDecoder(r.Body).Decode(&model); err != nil || model.ID == "" {
		writeError(w, http.StatusBadRequest, "invalid model")
		return
	}

	p, err := h.registry.AddModel(provider, model)
	if err != nil {
		h.writeRegistryError(w, provider, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ModelHandler) remove(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	modelID := r.PathValue("id")

	p, err := h.registry.RemoveModel(provider, modelID)
	if err != nil {
		h.writeRegistryError(w, provider, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ModelHandler) reorder(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	var body struct {
		Models []string `json:"models"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.registry.ReorderModels(provider, body.Models)
	if err != nil {
		h.writeRegistryError(w, provider, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ModelHandler) writeRegistryError(w http.ResponseWriter, provider string, err error) {
	switch {
	case errors.Is(err, registry.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider not found")
	case errors.Is(err, registry.ErrModelNotFound):
		writeError(w, http.StatusNotFound, "model not found")
	case errors.Is(err, registry.ErrModelExists):
		writeError(w, http.StatusConflict, "model already exists")
	default:
		h.logger.Error("registry update", "provider", provider, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update registry")
	}
}
