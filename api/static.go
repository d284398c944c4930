package api

import (
	"net/http"
	"path/filepath"
)

// StaticHandler serves the browser bundle: index.html at the root and the
// asset tree under /static/.
type StaticHandler struct {
	dir string
}

// NewStaticHandler creates a static handler rooted at dir.
func NewStaticHandler(dir string) *StaticHandler {
	return &StaticHandler{dir: dir}
}

// RegisterRoutes registers the static endpoints on the mux.
func (h *StaticHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(h.dir))))
	mux.HandleFunc("GET /{$}", h.index)
}

func (h *StaticHandler) index(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(h.dir, "index.html"))
}
