package relay

import "encoding/json"

// TextKind tags the decoded shape of a delta text field.
type TextKind int

const (
	// TextAbsent means the field was missing, null, or an unrecognized
	// shape. Absence is never an error; the frame is simply not
	// accumulated.
	TextAbsent TextKind = iota

	// TextPlain means the field was a plain JSON string.
	TextPlain

	// TextParts means the field was a list of typed parts.
	TextParts
)

// TextPart is one element of a part-list text field.
type TextPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextValue is the tagged decoding of an upstream delta field that may be
// either a plain string or a list of typed parts. The extractor switches
// on Kind rather than re-inspecting runtime shape.
type TextValue struct {
	Kind  TextKind
	Plain string
	Parts []TextPart
}

// UnmarshalJSON accepts a string, a part list, or anything else (decoded
// as absent). Malformed part entries are tolerated by the permissive
// struct decoding; genuinely unreadable shapes degrade to TextAbsent.
func (v *TextValue) UnmarshalJSON(data []byte) error {
	*v = TextValue{}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		v.Kind = TextPlain
		v.Plain = s
	case '[':
		var parts []TextPart
		if err := json.Unmarshal(data, &parts); err != nil {
			return nil
		}
		v.Kind = TextParts
		v.Parts = parts
	}
	return nil
}

// Text extracts the generated text: the string itself, or the ordered
// concatenation of text-typed parts.
func (v TextValue) Text() string {
	switch v.Kind {
	case TextPlain:
		return v.Plain
	case TextParts:
		var out string
		for _, p := range v.Parts {
			if p.Type == "text" {
				out += p.Text
			}
		}
		return out
	default:
		return ""
	}
}

// delta is the per-frame payload fragment the extractor inspects.
// Reasoning text may arrive under either of two field names.
type delta struct {
	Content   TextValue `json:"content"`
	Reasoning TextValue `json:"reasoning"`
	Thinking  TextValue `json:"thinking"`
}

// reasoningText returns the frame's reasoning text, preferring the
// "reasoning" field and falling back to "thinking".
func (d delta) reasoningText() string {
	if text := d.Reasoning.Text(); text != "" {
		return text
	}
	return d.Thinking.Text()
}

// streamChunk is one decoded SSE data payload.
type streamChunk struct {
	Choices []struct {
		Delta delta `json:"delta"`
	} `json:"choices"`
}
