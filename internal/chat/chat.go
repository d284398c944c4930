// Package chat defines the conversation data model and its persistence
// contracts.
//
// A Conversation is one whole persisted record: metadata, generation
// settings and the ordered message sequence. Stores read and write whole
// records; message order is semantically meaningful and survives every
// round-trip. Attachment bytes live outside the record, in a side store
// keyed by conversation id (see Files).
package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks a message written by the person using the client.
	RoleUser Role = "user"

	// RoleModel marks a message produced by the upstream model.
	RoleModel Role = "model"
)

// DefaultProvider is the upstream relay provider. Model ids from other
// providers are qualified with their provider key when the request is built.
const DefaultProvider = "openrouter"

// DefaultModel is used for newly created conversations.
const DefaultModel = "google/gemini-3-pro-preview"

// Attachment is file metadata carried on a message. The bytes themselves
// are stored separately; an Attachment whose bytes are missing is skipped
// silently when the conversation is projected for generation.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"` // MIME type
	Size int64  `json:"size"` // bytes

	// Filename is the storage-internal name used to locate the bytes.
	Filename string `json:"filename"`
}

// Message is one turn of a conversation.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// Thoughts holds reasoning text produced by the model for this turn.
	// Empty for user messages.
	Thoughts string `json:"thoughts"`

	Files []Attachment `json:"files,omitempty"`
}

// Params holds the generation parameters of a conversation. Known fields
// are typed; anything else the client stored is kept in Extra and passed
// through to the upstream request unexamined.
//
// Pointer fields distinguish "not set" from an explicit zero so records
// round-trip exactly.
type Params struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int

	// Tool toggles. These are client-side switches, not raw upstream
	// parameters; the request builder strips them all and translates
	// Thinking into the provider's reasoning-effort directive.
	Thinking         *bool
	StructuredOutput *bool
	CodeExecution    *bool
	URLContext       *bool

	// Extra carries unknown parameter keys untouched, so newer client
	// knobs keep working without a backend change.
	Extra map[string]any
}

// Parameter keys recognized by the typed fields above.
const (
	keyTemperature      = "temperature"
	keyTopP             = "top_p"
	keyMaxTokens        = "max_tokens"
	keyThinking         = "thinking"
	keyStructuredOutput = "structured_output"
	keyCodeExecution    = "code_execution"
	keyURLContext       = "url_context"
)

// DefaultParams returns the parameters assigned to new conversations.
func DefaultParams() Params {
	temp := 1.0
	topP := 1.0
	maxTokens := 4096
	return Params{
		Temperature: &temp,
		TopP:        &topP,
		MaxTokens:   &maxTokens,
	}
}

// ThinkingEnabled reports whether the thinking toggle is set and true.
func (p Params) ThinkingEnabled() bool {
	return p.Thinking != nil && *p.Thinking
}

// MarshalJSON flattens the typed fields and Extra into one JSON object,
// the same shape clients send.
func (p Params) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+7)
	for k, v := range p.Extra {
		out[k] = v
	}
	if p.Temperature != nil {
		out[keyTemperature] = *p.Temperature
	}
	if p.TopP != nil {
		out[keyTopP] = *p.TopP
	}
	if p.MaxTokens != nil {
		out[keyMaxTokens] = *p.MaxTokens
	}
	if p.Thinking != nil {
		out[keyThinking] = *p.Thinking
	}
	if p.StructuredOutput != nil {
		out[keyStructuredOutput] = *p.StructuredOutput
	}
	if p.CodeExecution != nil {
		out[keyCodeExecution] = *p.CodeExecution
	}
	if p.URLContext != nil {
		out[keyURLContext] = *p.URLContext
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return data, nil
}

// UnmarshalJSON pulls known keys into the typed fields and keeps the rest
// in Extra.
func (p *Params) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal params: %w", err)
	}

	*p = Params{}
	for k, v := range raw {
		var err error
		switch k {
		case keyTemperature:
			p.Temperature = new(float64)
			err = json.Unmarshal(v, p.Temperature)
		case keyTopP:
			p.TopP = new(float64)
			err = json.Unmarshal(v, p.TopP)
		case keyMaxTokens:
			p.MaxTokens = new(int)
			err = json.Unmarshal(v, p.MaxTokens)
		case keyThinking:
			p.Thinking = new(bool)
			err = json.Unmarshal(v, p.Thinking)
		case keyStructuredOutput:
			p.StructuredOutput = new(bool)
			err = json.Unmarshal(v, p.StructuredOutput)
		case keyCodeExecution:
			p.CodeExecution = new(bool)
			err = json.Unmarshal(v, p.CodeExecution)
		case keyURLContext:
			p.URLContext = new(bool)
			err = json.Unmarshal(v, p.URLContext)
		default:
			var val any
			if err = json.Unmarshal(v, &val); err == nil {
				if p.Extra == nil {
					p.Extra = make(map[string]any)
				}
				p.Extra[k] = val
			}
		}
		if err != nil {
			return fmt.Errorf("param %q: %w", k, err)
		}
	}
	return nil
}

// UpstreamParams returns the raw upstream parameters: the typed sampling
// fields plus every Extra key. Tool toggles are excluded since they are
// not upstream parameters. The receiver is never mutated.
func (p Params) UpstreamParams() map[string]any {
	out := make(map[string]any, len(p.Extra)+3)
	for k, v := range p.Extra {
		out[k] = v
	}
	if p.Temperature != nil {
		out[keyTemperature] = *p.Temperature
	}
	if p.TopP != nil {
		out[keyTopP] = *p.TopP
	}
	if p.MaxTokens != nil {
		out[keyMaxTokens] = *p.MaxTokens
	}
	return out
}

// Settings holds a conversation's generation configuration.
type Settings struct {
	Provider           string `json:"provider"`
	Model              string `json:"model"`
	SystemInstructions string `json:"system_instructions"`
	Params             Params `json:"params"`
}

// DefaultSettings returns the settings assigned to new conversations.
func DefaultSettings() Settings {
	return Settings{
		Provider: DefaultProvider,
		Model:    DefaultModel,
		Params:   DefaultParams(),
	}
}

// ResolvedModel returns the provider-qualified model id for the upstream
// request. A model id that already contains "/" is used verbatim; otherwise
// a non-default provider prefixes the id with its key.
func (s Settings) ResolvedModel() string {
	model := strings.TrimSpace(s.Model)
	if model == "" {
		model = DefaultModel
	}
	if strings.Contains(model, "/") {
		return model
	}
	provider := strings.TrimSpace(s.Provider)
	if provider != "" && provider != DefaultProvider {
		return provider + "/" + model
	}
	return model
}

// Conversation is one whole persisted chat record.
type Conversation struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Settings   Settings  `json:"settings"`
	Bookmarked bool      `json:"bookmarked"`
	Messages   []Message `json:"messages"`
}

// Summary is the listing view of a conversation, without its messages.
type Summary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Bookmarked bool      `json:"bookmarked"`
}

// Summary returns the listing view of the conversation.
func (c *Conversation) Summary() Summary {
	return Summary{
		ID:         c.ID,
		Title:      c.Title,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
		Bookmarked: c.Bookmarked,
	}
}
