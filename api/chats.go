package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/parley0/parley/internal/chat"
	"github.com/parley0/parley/internal/log"
)

// ChatHandler serves conversation CRUD and search.
type ChatHandler struct {
	store  chat.Store
	logger log.Logger
}

// NewChatHandler creates a chat handler backed by the given store.
func NewChatHandler(store chat.Store, logger log.Logger) *ChatHandler {
	return &ChatHandler{store: store, logger: logger}
}

// RegisterRoutes registers the conversation endpoints on the mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/chats", h.list)
	mux.HandleFunc("GET /api/chats/search", h.search)
	mux.HandleFunc("POST /api/chats", h.create)
	mux.HandleFunc("GET /api/chats/{id}", h.get)
	mux.HandleFunc("PUT /api/chats/{id}", h.update)
	mux.HandleFunc("DELETE /api/chats/{id}", h.delete)
}

func (h *ChatHandler) list(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("list conversations", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list chats")
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *ChatHandler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	mode := chat.SearchMode(r.URL.Query().Get("mode"))

	results, err := chat.Search(r.Context(), h.store, query, mode)
	if err != nil {
		h.logger.Error("search conversations", "query", query, "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *ChatHandler) create(w http.ResponseWriter, r *http.Request) {
	conv, err := h.store.Create(r.Context())
	if err != nil {
		h.logger.Error("create conversation", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create chat")
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (h *ChatHandler) get(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, conv)
}

// ChatUpdate is the PUT request body. Absent fields leave the stored value
// untouched; present fields replace it wholesale.
type ChatUpdate struct {
	Title      *string         `json:"title"`
	Settings   *chat.Settings  `json:"settings"`
	Bookmarked *bool           `json:"bookmarked"`
	Messages   *[]chat.Message `json:"messages"`
}

func (h *ChatHandler) update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var upd ChatUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

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

	if upd.Title != nil {
		conv.Title = *upd.Title
	}
	if upd.Settings != nil {
		conv.Settings = *upd.Settings
	}
	if upd.Bookmarked != nil {
		conv.Bookmarked = *upd.Bookmarked
	}
	if upd.Messages != nil {
		msgs := *upd.Messages
		for i := range msgs {
			if msgs[i].ID == "" {
				msgs[i].ID = uuid.NewString()
			}
		}
		conv.Messages = msgs
	}

	if err := h.store.Put(r.Context(), conv); err != nil {
		h.logger.Error("update conversation", "conversation", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save chat")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *ChatHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		h.logger.Error("delete conversation", "conversation", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete chat")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
