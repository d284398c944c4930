// Package api provides the HTTP surface of parley.
//
// Endpoints:
//
//	GET    /health                                  liveness probe
//	GET    /ready                                   readiness probe
//	GET    /api/chats                               list conversations
//	GET    /api/chats/search                        search conversations
//	POST   /api/chats                               create conversation
//	GET    /api/chats/{id}                          fetch one conversation
//	PUT    /api/chats/{id}                          update conversation
//	DELETE /api/chats/{id}                          delete conversation
//	POST   /api/chats/{id}/generate                 stream a model reply (SSE)
//	POST   /api/chats/{id}/upload                   upload an attachment
//	GET    /api/chats/{id}/files/{filename}         serve attachment bytes
//	GET    /api/keys                                provider key status
//	POST   /api/keys                                save/clear provider keys
//	GET    /api/models                              upstream model listing (cached)
//	POST   /api/providers/{provider}/models         add a registry model
//	DELETE /api/providers/{provider}/models/{id...} remove a registry model
//	PUT    /api/providers/{provider}/models/reorder reorder registry models
//	GET    /static/..., GET /                       browser bundle
//
// File structure mirrors the handler split: server.go (setup),
// middleware.go, response.go, health.go, chats.go, generate.go, files.go,
// keys.go, models.go, static.go.
package api

import (
	"fmt"
	"net/http"

	"github.com/parley0/parley/internal/chat"
	"github.com/parley0/parley/internal/keys"
	"github.com/parley0/parley/internal/log"
	"github.com/parley0/parley/internal/registry"
	"github.com/parley0/parley/internal/relay"
)

// ServerConfig carries the collaborators the HTTP layer serves.
type ServerConfig struct {
	Logger     log.Logger
	Store      chat.Store
	Files      *chat.Files
	Registry   *registry.Registry
	Keys       *keys.Store
	Engine     *relay.Engine
	ModelCache *registry.ModelCache

	// ModelsURL is the upstream model-listing endpoint proxied by
	// GET /api/models.
	ModelsURL string

	// StaticDir holds index.html and the /static tree.
	StaticDir string

	// RateBurst bounds bursts of generation calls; zero disables
	// limiting.
	RateBurst int
}

// Server is the HTTP server for parley's REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("api: store is required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("api: relay engine is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()
	s := &Server{mux: mux, logger: logger}

	NewHealthHandler(cfg.Store, logger).RegisterRoutes(mux)
	NewChatHandler(cfg.Store, logger).RegisterRoutes(mux)
	NewGenerateHandler(cfg.Store, cfg.Engine, cfg.RateBurst, logger).RegisterRoutes(mux)
	NewFileHandler(cfg.Store, cfg.Files, logger).RegisterRoutes(mux)
	NewKeyHandler(cfg.Keys, cfg.Registry, logger).RegisterRoutes(mux)
	NewModelHandler(cfg.Registry, cfg.Keys, cfg.ModelCache, cfg.ModelsURL, logger).RegisterRoutes(mux)
	NewStaticHandler(cfg.StaticDir).RegisterRoutes(mux)

	return s, nil
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware, loggingMiddleware(s.logger))
}
