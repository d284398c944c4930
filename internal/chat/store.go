package chat

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound indicates the requested conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// Store persists whole conversation records.
//
// Writes overwrite the complete record and stamp UpdatedAt; a crash
// mid-write must never leave a half-written record observable to a
// subsequent read. Implementations serialize AppendMessage against
// concurrent writes to the same conversation so a finalization append is
// never lost to an interleaved read-modify-write.
type Store interface {
	// Create persists a new empty conversation with default settings.
	Create(ctx context.Context) (*Conversation, error)

	// Get returns the conversation with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (*Conversation, error)

	// Put overwrites the whole record and stamps UpdatedAt.
	Put(ctx context.Context, conv *Conversation) error

	// AppendMessage re-reads the record, appends one message and persists
	// it, all under the conversation's write lock.
	AppendMessage(ctx context.Context, id string, msg Message) error

	// Delete removes the record and its attachment byte store.
	// Returns ErrNotFound when the conversation does not exist.
	Delete(ctx context.Context, id string) error

	// List returns summaries of all conversations, newest update first.
	// Corrupt records are skipped, not fatal.
	List(ctx context.Context) ([]Summary, error)

	// Ping reports whether the backing storage is usable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// SearchMode selects which conversation fields a search inspects.
type SearchMode string

const (
	SearchTitle   SearchMode = "title"
	SearchContent SearchMode = "content"
	SearchAll     SearchMode = "all"
)

// SearchResult is one conversation matching a search query.
type SearchResult struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Snippet context sizes around a content match, in bytes.
const (
	snippetBefore = 30
	snippetAfter  = 50
)

// Search scans all conversations for the query, case-insensitively.
// Content matches carry a snippet of the text surrounding the first hit.
// A blank query matches nothing.
func Search(ctx context.Context, store Store, query string, mode SearchMode) ([]SearchResult, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []SearchResult{}, nil
	}
	if mode != SearchTitle && mode != SearchContent && mode != SearchAll {
		mode = SearchAll
	}

	summaries, err := store.List(ctx)
	if err != nil {
		return nil, err
	}

	results := []SearchResult{}
	for _, s := range summaries {
		conv, err := store.Get(ctx, s.ID)
		if err != nil {
			// Listed a moment ago but unreadable now; skip like a
			// corrupt record.
			continue
		}

		titleMatch := strings.Contains(strings.ToLower(conv.Title), query)

		contentMatch := false
		snippet := ""
		if mode == SearchContent || mode == SearchAll {
			for _, msg := range conv.Messages {
				if idx := strings.Index(strings.ToLower(msg.Content), query); idx >= 0 {
					contentMatch = true
					snippet = extractSnippet(msg.Content, idx, len(query))
					break
				}
			}
		}

		switch {
		case mode == SearchTitle && titleMatch:
			results = append(results, SearchResult{ID: conv.ID, Title: conv.Title})
		case mode == SearchContent && contentMatch:
			results = append(results, SearchResult{ID: conv.ID, Title: conv.Title, Snippet: snippet})
		case mode == SearchAll && (titleMatch || contentMatch):
			r := SearchResult{ID: conv.ID, Title: conv.Title}
			if contentMatch {
				r.Snippet = snippet
			}
			results = append(results, r)
		}
	}
	return results, nil
}

// extractSnippet returns the text around a match with ellipses where the
// snippet is cut short.
func extractSnippet(text string, idx, matchLen int) string {
	start := max(0, idx-snippetBefore)
	end := min(len(text), idx+matchLen+snippetAfter)

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(text[start:end])
	if end < len(text) {
		b.WriteString("...")
	}
	return b.String()
}
