package relay

import (
	"strings"

	"github.com/parley0/parley/internal/chat"
)

// BuildRequest assembles the upstream request body from the conversation's
// settings and the projected messages.
//
// The stored settings are never mutated: typed parameters are copied into
// a fresh map, the thinking toggle is translated into the provider's
// reasoning-effort directive, the remaining tool toggles are dropped, and
// unknown parameter keys pass through untouched.
func BuildRequest(settings chat.Settings, msgs []WireMessage) map[string]any {
	body := map[string]any{
		"model":    settings.ResolvedModel(),
		"messages": msgs,
		"stream":   true,
	}

	if system := strings.TrimSpace(settings.SystemInstructions); system != "" {
		body["system"] = system
	}

	for k, v := range settings.Params.UpstreamParams() {
		body[k] = v
	}

	if settings.Params.ThinkingEnabled() {
		body["reasoning"] = map[string]any{"effort": "high"}
	}

	return body
}
