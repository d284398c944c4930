package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/parley0/parley/internal/log"
)

// FileStore persists each conversation as one JSON file:
// <root>/<id>.json, with attachment bytes alongside under <root>/<id>/.
//
// Writes go through a temp file and rename, so a crash mid-write leaves
// either the old record or the new one, never a torn file. A per-
// conversation flock serializes read-modify-write sequences; concurrent
// finalizations against the same conversation interleave instead of losing
// an append.
type FileStore struct {
	root   string
	logger log.Logger
}

// NewFileStore creates a file-backed conversation store rooted at dir.
func NewFileStore(dir string, logger log.Logger) (*FileStore, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{root: dir, logger: logger}, nil
}

// path returns the record path for an id, or ErrNotFound for ids that are
// not UUIDs (which also rules out path traversal).
func (s *FileStore) path(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrNotFound
	}
	return filepath.Join(s.root, id+".json"), nil
}

// lock takes the conversation's write lock. The returned function releases
// it.
func (s *FileStore) lock(id string) (func(), error) {
	fl := flock.New(filepath.Join(s.root, id+".lock"))
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("lock conversation %s: %w", id, err)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("unlock conversation failed", "id", id, "error", err)
		}
	}, nil
}

// Create persists a new empty conversation with default settings.
func (s *FileStore) Create(ctx context.Context) (*Conversation, error) {
	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.NewString(),
		Title:     "Untitled chat",
		CreatedAt: now,
		UpdatedAt: now,
		Settings:  DefaultSettings(),
		Messages:  []Message{},
	}
	if err := s.Put(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Get returns the conversation with the given id, or ErrNotFound.
func (s *FileStore) Get(_ context.Context, id string) (*Conversation, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	return readRecord(path)
}

func readRecord(path string) (*Conversation, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path derived from a validated UUID
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read conversation: %w", err)
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	return &conv, nil
}

// Put overwrites the whole record and stamps UpdatedAt.
func (s *FileStore) Put(_ context.Context, conv *Conversation) error {
	path, err := s.path(conv.ID)
	if err != nil {
		return err
	}
	unlock, err := s.lock(conv.ID)
	if err != nil {
		return err
	}
	defer unlock()
	return s.writeRecord(path, conv)
}

// writeRecord marshals and atomically replaces the record file. The caller
// holds the conversation lock.
func (s *FileStore) writeRecord(path string, conv *Conversation) error {
	conv.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}

	tmp, err := os.CreateTemp(s.root, conv.ID+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpName := tmp.Name()
	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace record: %w", err)
	}
	return nil
}

// AppendMessage re-reads the record under the conversation lock, appends
// one message and persists it. Used by finalization so a concurrent edit
// cannot swallow the appended turn.
func (s *FileStore) AppendMessage(_ context.Context, id string, msg Message) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	unlock, err := s.lock(id)
	if err != nil {
		return err
	}
	defer unlock()

	conv, err := readRecord(path)
	if err != nil {
		return err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	conv.Messages = append(conv.Messages, msg)
	return s.writeRecord(path, conv)
}

// Delete removes the record and its attachment byte store.
func (s *FileStore) Delete(_ context.Context, id string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete conversation: %w", err)
	}
	if err := os.RemoveAll(filepath.Join(s.root, id)); err != nil {
		return fmt.Errorf("delete attachment store: %w", err)
	}
	_ = os.Remove(filepath.Join(s.root, id+".lock"))
	return nil
}

// List returns summaries of all conversations, newest update first.
// Unreadable or corrupt record files are skipped.
func (s *FileStore) List(_ context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list store directory: %w", err)
	}

	summaries := []Summary{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		conv, err := readRecord(filepath.Join(s.root, entry.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable record", "file", entry.Name(), "error", err)
			continue
		}
		summaries = append(summaries, conv.Summary())
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// Ping reports whether the store directory is usable.
func (s *FileStore) Ping(_ context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("store directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("store path %s is not a directory", s.root)
	}
	return nil
}

// Close implements Store; the file store holds no open resources.
func (s *FileStore) Close() error { return nil }
