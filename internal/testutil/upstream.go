package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// UpstreamScript describes one canned upstream response.
type UpstreamScript struct {
	// Status, when not 200, short-circuits: Body is written with this
	// status and no streaming happens.
	Status int
	Body   string

	// Lines are written one per line and flushed individually, mimicking
	// a chat-completions SSE stream.
	Lines []string

	// DropAfter, when positive, aborts the connection after that many
	// lines, mimicking a mid-stream network failure.
	DropAfter int
}

// NewUpstream starts a scripted stand-in for the chat-completions endpoint.
// The last request body is captured into gotBody when non-nil.
func NewUpstream(t *testing.T, script UpstreamScript, gotBody *[]byte) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotBody != nil {
			body, _ := io.ReadAll(r.Body)
			*gotBody = body
		}

		if script.Status != 0 && script.Status != http.StatusOK {
			w.WriteHeader(script.Status)
			fmt.Fprint(w, script.Body)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for i, line := range script.Lines {
			if script.DropAfter > 0 && i == script.DropAfter {
				panic(http.ErrAbortHandler)
			}
			fmt.Fprintf(w, "%s\n", line)
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// ChunkLine builds one "data:" line carrying a delta with the given
// content and reasoning text. Empty fields are omitted.
func ChunkLine(t *testing.T, content, reasoning string) string {
	t.Helper()

	delta := map[string]any{}
	if content != "" {
		delta["content"] = content
	}
	if reasoning != "" {
		delta["reasoning"] = reasoning
	}
	payload, err := json.Marshal(map[string]any{
		"choices": []map[string]any{{"delta": delta}},
	})
	if err != nil {
		t.Fatalf("encoding chunk: %v", err)
	}
	return "data: " + string(payload)
}
