package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/parley0/parley/internal/chat"
	"github.com/parley0/parley/internal/log"
	"github.com/parley0/parley/internal/relay"
)

// GenerateHandler serves the streaming generation endpoint.
type GenerateHandler struct {
	store   chat.Store
	engine  *relay.Engine
	limiter *rate.Limiter
	logger  log.Logger
}

// NewGenerateHandler creates the generation handler. burst bounds how many
// generation calls may start back to back; zero disables limiting.
func NewGenerateHandler(store chat.Store, engine *relay.Engine, burst int, logger log.Logger) *GenerateHandler {
	var limiter *rate.Limiter
	if burst > 0 {
		limiter = rate.NewLimiter(rate.Limit(1), burst)
	}
	return &GenerateHandler{store: store, engine: engine, limiter: limiter, logger: logger}
}

// RegisterRoutes registers the generation endpoint on the mux.
func (h *GenerateHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chats/{id}/generate", h.generate)
}

func (h *GenerateHandler) generate(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "too many generation requests")
		return
	}

	id := r.PathValue("id")
	conv, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		h.logger.Error("get conversation", "conversation", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load chat")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	h.engine.Generate(r.Context(), conv, &sseSink{w: w, flusher: flusher})
}

// sseSink adapts a ResponseWriter to the relay sink: every upstream line is
// written back verbatim and flushed, and error frames are synthesized as
// named SSE events.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) ForwardLine(line string) {
	fmt.Fprintf(s.w, "%s\n", line)
	s.flusher.Flush()
}

func (s *sseSink) SendError(message string, statusCode int) {
	payload, err := json.Marshal(map[string]any{
		"error":       message,
		"status_code": statusCode,
	})
	if err != nil {
		return
	}
	fmt.Fprintf(s.w, "event: error\ndata: %s\n\n", payload)
	s.flusher.Flush()
}
