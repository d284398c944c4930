package api

import (
	"errors"
	"net/http"

	"github.com/parley0/parley/internal/chat"
	"github.com/parley0/parley/internal/log"
)

// maxUploadSize bounds a single attachment upload.
const maxUploadSize = 64 << 20

// FileHandler serves attachment upload and download.
type FileHandler struct {
	store  chat.Store
	files  *chat.Files
	logger log.Logger
}

// NewFileHandler creates a file handler backed by the given stores.
func NewFileHandler(store chat.Store, files *chat.Files, logger log.Logger) *FileHandler {
	return &FileHandler{store: store, files: files, logger: logger}
}

// RegisterRoutes registers the attachment endpoints on the mux.
func (h *FileHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chats/{id}/upload", h.upload)
	mux.HandleFunc("GET /api/chats/{id}/files/{filename}", h.serve)
}

func (h *FileHandler) upload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.store.Get(r.Context(), id); err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		h.logger.Error("get conversation", "conversation", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load chat")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer func() { _ = file.Close() }()

	att, err := h.files.Save(id, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		h.logger.Error("save attachment", "conversation", id, "name", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save file")
		return
	}
	writeJSON(w, http.StatusCreated, att)
}

func (h *FileHandler) serve(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	filename := r.PathValue("filename")

	path, err := h.files.Path(id, filename)
	if err != nil {
		if errors.Is(err, chat.ErrFileNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		h.logger.Error("resolve attachment", "conversation", id, "filename", filename, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load file")
		return
	}
	http.ServeFile(w, r, path)
}
