package relay

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/parley0/parley/internal/chat"
	"github.com/parley0/parley/internal/registry"
)

// AttachmentSource resolves stored attachment bytes. chat.Files satisfies
// it; tests substitute an in-memory map.
type AttachmentSource interface {
	Read(convID, filename string) ([]byte, error)
}

// Part is one element of structured wire content.
type Part struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL wraps an inline data URL, the OpenAI-compatible media shape.
type ImageURL struct {
	URL string `json:"url"`
}

// Content is a wire message body: either a plain string or an ordered
// part list. A message only becomes structured when attachment parts
// exist; an empty structured list is never emitted.
type Content struct {
	Plain string
	Parts []Part
}

// MarshalJSON emits the string form unless parts are present.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.Parts == nil {
		return json.Marshal(c.Plain)
	}
	return json.Marshal(c.Parts)
}

// WireMessage is one upstream-shaped conversation turn.
type WireMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// textExtensions is the allow-list of file extensions treated as readable
// text and inlined into the prompt.
var textExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".html": true, ".htm": true, ".css": true, ".scss": true,
	".json": true, ".xml": true, ".yaml": true, ".yml": true, ".toml": true,
	".ini": true, ".cfg": true, ".conf": true,
	".md": true, ".txt": true, ".csv": true, ".log": true,
	".sh": true, ".bash": true, ".zsh": true, ".bat": true, ".ps1": true,
	".c": true, ".cpp": true, ".h": true, ".hpp": true, ".java": true,
	".kt": true, ".go": true, ".rs": true, ".rb": true,
	".php": true, ".pl": true, ".r": true, ".sql": true, ".swift": true,
	".dart": true, ".lua": true, ".ex": true, ".exs": true,
	".vue": true, ".svelte": true, ".astro": true, ".env": true,
	".gitignore": true, ".dockerfile": true,
}

// textMIMEMarkers flag MIME types that are text no matter the extension.
var textMIMEMarkers = []string{"json", "xml", "yaml", "javascript", "typescript"}

// isTextFile reports whether an attachment should be inlined as text.
func isTextFile(filename, mimeType string) bool {
	if textExtensions[strings.ToLower(filepath.Ext(filename))] {
		return true
	}
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	for _, marker := range textMIMEMarkers {
		if strings.Contains(mimeType, marker) {
			return true
		}
	}
	return false
}

// mediaCategories are MIME top-level types inlined as base64 media when
// the model declares the capability.
var mediaCategories = map[string]bool{
	registry.CapabilityImage: true,
	registry.CapabilityVideo: true,
	registry.CapabilityAudio: true,
}

// sanitizeText replaces invalid UTF-8 so a binary-ish "text" file can
// never fail projection.
func sanitizeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}

// ProjectMessages converts stored messages into the upstream wire shape.
//
// Turns with unrecognized roles are dropped. Attachments are handled in
// order: missing bytes are skipped silently; media is inlined as base64
// only when its category is in the capability set (otherwise dropped
// entirely); text files are inlined with delimiters; anything else becomes
// a one-line placeholder naming the file.
func ProjectMessages(msgs []chat.Message, convID string, files AttachmentSource, caps registry.Capabilities) []WireMessage {
	converted := make([]WireMessage, 0, len(msgs))
	for _, msg := range msgs {
		var role string
		switch msg.Role {
		case chat.RoleUser:
			role = "user"
		case chat.RoleModel, chat.Role("assistant"):
			role = "assistant"
		default:
			continue
		}

		var extraParts []Part
		for _, f := range msg.Files {
			name := f.Name
			if name == "" {
				name = f.Filename
			}
			category, _, _ := strings.Cut(f.Type, "/")

			data, err := files.Read(convID, f.Filename)
			if err != nil {
				continue
			}

			switch {
			case mediaCategories[category]:
				if !caps.Has(category) {
					continue
				}
				encoded := base64.StdEncoding.EncodeToString(data)
				extraParts = append(extraParts, Part{
					Type:     "image_url",
					ImageURL: &ImageURL{URL: fmt.Sprintf("data:%s;base64,%s", f.Type, encoded)},
				})
			case isTextFile(name, f.Type):
				extraParts = append(extraParts, Part{
					Type: "text",
					Text: fmt.Sprintf("--- File: %s ---\n%s\n--- End of %s ---", name, sanitizeText(data), name),
				})
			default:
				extraParts = append(extraParts, Part{
					Type: "text",
					Text: fmt.Sprintf("[Attached file: %s (%s, %d bytes) — binary file, content not shown]", name, f.Type, f.Size),
				})
			}
		}

		content := Content{Plain: msg.Content}
		if len(extraParts) > 0 {
			parts := make([]Part, 0, len(extraParts)+1)
			if msg.Content != "" {
				parts = append(parts, Part{Type: "text", Text: msg.Content})
			}
			parts = append(parts, extraParts...)
			content = Content{Parts: parts}
		}
		converted = append(converted, WireMessage{Role: role, Content: content})
	}
	return converted
}
