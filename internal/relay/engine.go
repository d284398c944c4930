// Package relay implements the streaming generation pipeline: it projects
// a stored conversation into an upstream request, relays the upstream SSE
// stream to the caller verbatim while extracting generated and reasoning
// text, and persists the assembled assistant turn exactly once when the
// stream ends, however it ends.
package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parley0/parley/internal/chat"
	"github.com/parley0/parley/internal/log"
	"github.com/parley0/parley/internal/registry"
)

const (
	// dataPrefix marks SSE payload lines on the upstream stream.
	dataPrefix = "data: "

	// doneSentinel is the upstream's end-of-stream marker. Once seen, no
	// further line is decoded into the accumulators.
	doneSentinel = "[DONE]"

	// maxErrorBody bounds how much of an upstream error response is read.
	maxErrorBody = 1 << 20

	// maxLineSize bounds a single SSE line from upstream.
	maxLineSize = 2 << 20

	// DefaultUpstreamTimeout bounds the whole upstream call.
	DefaultUpstreamTimeout = 90 * time.Second
)

// Sink receives the relayed stream. The HTTP layer adapts a ResponseWriter
// to it; tests capture lines directly.
type Sink interface {
	// ForwardLine delivers one raw upstream line (without its trailing
	// newline) and flushes it to the client immediately.
	ForwardLine(line string)

	// SendError delivers one synthesized error event frame carrying the
	// message and status code.
	SendError(message string, statusCode int)
}

// MessageAppender is the slice of the conversation store finalization
// needs.
type MessageAppender interface {
	AppendMessage(ctx context.Context, id string, msg chat.Message) error
}

// CapabilityResolver is the slice of the registry projection needs.
type CapabilityResolver interface {
	Capabilities(provider, model string) registry.Capabilities
}

// KeyProvider resolves upstream credentials.
type KeyProvider interface {
	Get(provider string) string
}

// Engine runs generation calls against one upstream endpoint.
type Engine struct {
	store    MessageAppender
	files    AttachmentSource
	registry CapabilityResolver
	keys     KeyProvider
	client   *http.Client
	url      string
	logger   log.Logger
}

// NewEngine creates a relay engine. url is the upstream chat-completions
// endpoint; timeout bounds the whole upstream call (zero means
// DefaultUpstreamTimeout).
func NewEngine(store MessageAppender, files AttachmentSource, reg CapabilityResolver, keys KeyProvider, url string, timeout time.Duration, logger log.Logger) *Engine {
	if timeout <= 0 {
		timeout = DefaultUpstreamTimeout
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Engine{
		store:    store,
		files:    files,
		registry: reg,
		keys:     keys,
		client:   &http.Client{Timeout: timeout},
		url:      url,
		logger:   logger,
	}
}

// Generate runs one generation call for the conversation, streaming to the
// sink. Whatever way the call ends — clean sentinel, upstream rejection,
// transport failure, client disconnect — finalization runs exactly once
// and persists any accumulated content as one new model turn.
func (e *Engine) Generate(ctx context.Context, conv *chat.Conversation, sink Sink) {
	var content, thoughts strings.Builder
	defer e.finalize(conv.ID, &content, &thoughts)

	apiKey := e.keys.Get(chat.DefaultProvider)
	if apiKey == "" {
		sink.SendError("No API key configured for OpenRouter. Add one under key settings.", http.StatusUnauthorized)
		return
	}

	caps := e.registry.Capabilities(conv.Settings.Provider, conv.Settings.Model)
	body := BuildRequest(conv.Settings, ProjectMessages(conv.Messages, conv.ID, e.files, caps))

	payload, err := json.Marshal(body)
	if err != nil {
		// Request bodies are built from decoded JSON; this is a bug, not
		// an upstream condition.
		e.logger.Error("encode upstream request", "conversation", conv.ID, "error", err)
		sink.SendError("failed to encode upstream request", http.StatusInternalServerError)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		e.logger.Error("build upstream request", "conversation", conv.ID, "error", err)
		sink.SendError("failed to build upstream request", http.StatusInternalServerError)
		return
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.sendNetworkError(ctx, sink, conv.ID, err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		sink.SendError(readUpstreamError(resp), resp.StatusCode)
		return
	}

	e.relay(ctx, resp.Body, sink, conv.ID, &content, &thoughts)
}

// relay is the STREAMING state: one sequential loop that forwards each
// upstream line verbatim and, for data lines before the end sentinel,
// decodes the frame and feeds the accumulators.
func (e *Engine) relay(ctx context.Context, body io.Reader, sink Sink, convID string, content, thoughts *strings.Builder) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	decoding := true
	for scanner.Scan() {
		line := scanner.Text()
		sink.ForwardLine(line)

		if !decoding || !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := strings.TrimSpace(line[len(dataPrefix):])
		if payload == doneSentinel {
			decoding = false
			continue
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// Malformed frames are the upstream's problem, not a reason
			// to kill the stream.
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		d := chunk.Choices[0].Delta
		if text := d.Content.Text(); text != "" {
			content.WriteString(text)
		}
		if reasoning := d.reasoningText(); reasoning != "" {
			thoughts.WriteString(reasoning)
		}
	}

	if err := scanner.Err(); err != nil {
		e.sendNetworkError(ctx, sink, convID, err)
	}
}

// sendNetworkError reports a transport failure as one 502 error event.
// A canceled context means the client went away; there is nobody left to
// tell, so it is only logged.
func (e *Engine) sendNetworkError(ctx context.Context, sink Sink, convID string, err error) {
	if ctx.Err() != nil {
		e.logger.Info("client disconnected during generation", "conversation", convID)
		return
	}
	e.logger.Warn("upstream network failure", "conversation", convID, "error", err)
	sink.SendError(fmt.Sprintf("Network failure while calling upstream: %v", err), http.StatusBadGateway)
}

// readUpstreamError extracts a human-readable message from an upstream
// error response. Best effort: a structured {"error": {"message": ...}} or
// {"error": "..."} body wins, anything else falls back to a generic
// message built from the status code.
func readUpstreamError(resp *http.Response) string {
	message := fmt.Sprintf("Upstream request failed with status %d", resp.StatusCode)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return message
	}
	var parsed struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil || len(parsed.Error) == 0 {
		return message
	}

	var asString string
	if err := json.Unmarshal(parsed.Error, &asString); err == nil && asString != "" {
		return asString
	}
	var asObject struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(parsed.Error, &asObject); err == nil && asObject.Message != "" {
		return asObject.Message
	}
	return message
}

// finalize persists the accumulated turn, exactly once per call. Runs on
// every exit path; with nothing accumulated there is nothing to write.
// Uses a fresh context because the request context may already be
// canceled, and a partial generation must survive the disconnect.
func (e *Engine) finalize(convID string, content, thoughts *strings.Builder) {
	text := strings.TrimSpace(content.String())
	reasoning := strings.TrimSpace(thoughts.String())
	if text == "" && reasoning == "" {
		return
	}

	msg := chat.Message{
		ID:       uuid.NewString(),
		Role:     chat.RoleModel,
		Content:  text,
		Thoughts: reasoning,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.store.AppendMessage(ctx, convID, msg); err != nil {
		e.logger.Error("persist generated turn", "conversation", convID, "error", err)
		return
	}
	e.logger.Debug("persisted generated turn",
		"conversation", convID,
		"content_len", len(text),
		"thoughts_len", len(reasoning))
}
