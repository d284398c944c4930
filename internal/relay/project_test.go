package relay

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley0/parley/internal/chat"
	"github.com/parley0/parley/internal/registry"
)

// mapSource is an in-memory AttachmentSource keyed by storage filename.
type mapSource map[string][]byte

func (m mapSource) Read(_, filename string) ([]byte, error) {
	data, ok := m[filename]
	if !ok {
		return nil, chat.ErrFileNotFound
	}
	return data, nil
}

func TestProjectMessagesRoles(t *testing.T) {
	t.Parallel()

	msgs := []chat.Message{
		{Role: chat.RoleUser, Content: "question"},
		{Role: chat.RoleModel, Content: "answer"},
		{Role: chat.Role("assistant"), Content: "legacy answer"},
		{Role: chat.Role("system"), Content: "dropped"},
	}

	wire := ProjectMessages(msgs, "c1", mapSource{}, nil)
	require.Len(t, wire, 3)
	assert.Equal(t, "user", wire[0].Role)
	assert.Equal(t, "assistant", wire[1].Role)
	assert.Equal(t, "assistant", wire[2].Role)
}

func TestProjectMessagesPlainContent(t *testing.T) {
	t.Parallel()

	wire := ProjectMessages([]chat.Message{{Role: chat.RoleUser, Content: "hi"}}, "c1", mapSource{}, nil)
	require.Len(t, wire, 1)

	// No attachments means plain string content on the wire.
	data, err := json.Marshal(wire[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":"hi"}`, string(data))
}

func TestProjectMessagesMediaCapabilityGate(t *testing.T) {
	t.Parallel()

	png := []byte{0x89, 0x50, 0x4e, 0x47}
	msgs := []chat.Message{{
		Role:    chat.RoleUser,
		Content: "look at this",
		Files: []chat.Attachment{
			{Name: "pic.png", Type: "image/png", Size: 4, Filename: "f1_pic.png"},
		},
	}}
	source := mapSource{"f1_pic.png": png}

	t.Run("capable model gets inline base64", func(t *testing.T) {
		t.Parallel()
		wire := ProjectMessages(msgs, "c1", source, registry.Capabilities{"image": true})
		require.Len(t, wire, 1)
		parts := wire[0].Content.Parts
		require.Len(t, parts, 2)
		assert.Equal(t, "text", parts[0].Type)
		assert.Equal(t, "look at this", parts[0].Text)
		require.Equal(t, "image_url", parts[1].Type)
		wantURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
		assert.Equal(t, wantURL, parts[1].ImageURL.URL)
	})

	t.Run("incapable model drops the media silently", func(t *testing.T) {
		t.Parallel()
		wire := ProjectMessages(msgs, "c1", source, registry.Capabilities{})
		require.Len(t, wire, 1)
		assert.Nil(t, wire[0].Content.Parts, "no parts means plain string content")
		assert.Equal(t, "look at this", wire[0].Content.Plain)
	})
}

func TestProjectMessagesTextFileInlined(t *testing.T) {
	t.Parallel()

	msgs := []chat.Message{{
		Role:    chat.RoleUser,
		Content: "review this",
		Files: []chat.Attachment{
			{Name: "main.go", Type: "text/plain", Size: 12, Filename: "f1_main.go"},
		},
	}}
	source := mapSource{"f1_main.go": []byte("package main")}

	wire := ProjectMessages(msgs, "c1", source, nil)
	require.Len(t, wire, 1)
	parts := wire[0].Content.Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "--- File: main.go ---\npackage main\n--- End of main.go ---", parts[1].Text)
}

func TestProjectMessagesBinaryPlaceholder(t *testing.T) {
	t.Parallel()

	msgs := []chat.Message{{
		Role:    chat.RoleUser,
		Content: "summarize",
		Files: []chat.Attachment{
			{Name: "report.pdf", Type: "application/pdf", Size: 2048, Filename: "f1_report.pdf"},
		},
	}}
	source := mapSource{"f1_report.pdf": []byte("%PDF-")}

	wire := ProjectMessages(msgs, "c1", source, nil)
	require.Len(t, wire, 1)
	parts := wire[0].Content.Parts
	require.Len(t, parts, 2)
	assert.Equal(t,
		"[Attached file: report.pdf (application/pdf, 2048 bytes) — binary file, content not shown]",
		parts[1].Text)
}

func TestProjectMessagesMissingBytesSkipped(t *testing.T) {
	t.Parallel()

	msgs := []chat.Message{{
		Role:    chat.RoleUser,
		Content: "hi",
		Files: []chat.Attachment{
			{Name: "gone.txt", Type: "text/plain", Filename: "f1_gone.txt"},
		},
	}}

	wire := ProjectMessages(msgs, "c1", mapSource{}, nil)
	require.Len(t, wire, 1)
	assert.Nil(t, wire[0].Content.Parts)
	assert.Equal(t, "hi", wire[0].Content.Plain)
}

func TestProjectMessagesEmptyTextNoLeadingPart(t *testing.T) {
	t.Parallel()

	msgs := []chat.Message{{
		Role: chat.RoleUser,
		Files: []chat.Attachment{
			{Name: "notes.txt", Type: "text/plain", Filename: "f1_notes.txt"},
		},
	}}
	source := mapSource{"f1_notes.txt": []byte("content")}

	wire := ProjectMessages(msgs, "c1", source, nil)
	require.Len(t, wire, 1)
	parts := wire[0].Content.Parts
	require.Len(t, parts, 1, "no empty leading text part")
	assert.Contains(t, parts[0].Text, "--- File: notes.txt ---")
}

func TestProjectMessagesInvalidUTF8Sanitized(t *testing.T) {
	t.Parallel()

	msgs := []chat.Message{{
		Role:    chat.RoleUser,
		Content: "x",
		Files: []chat.Attachment{
			{Name: "weird.txt", Type: "text/plain", Filename: "f1_weird.txt"},
		},
	}}
	source := mapSource{"f1_weird.txt": {0x61, 0xff, 0xfe, 0x62}}

	wire := ProjectMessages(msgs, "c1", source, nil)
	parts := wire[0].Content.Parts
	require.Len(t, parts, 2)
	assert.True(t, json.Valid(mustMarshal(t, parts[1])), "sanitized text must encode cleanly")
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestIsTextFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		filename string
		mimeType string
		want     bool
	}{
		{"script.py", "application/octet-stream", true},
		{"README", "text/plain", true},
		{"data", "application/json", true},
		{"conf", "application/x-yaml", true},
		{"photo.jpg", "image/jpeg", false},
		{"archive.zip", "application/zip", false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%s", tt.filename, tt.mimeType), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isTextFile(tt.filename, tt.mimeType))
		})
	}
}
