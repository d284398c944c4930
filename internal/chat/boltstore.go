package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/parley0/parley/internal/log"
)

// conversationsBucket holds one JSON-encoded record per conversation id.
var conversationsBucket = []byte("conversations")

// BoltStore persists conversations in a single bbolt database file.
// Attachment bytes stay in the filesystem side store either way, so the
// Files instance is shared with the rest of the application and used here
// only to clean up on delete.
//
// bbolt serializes update transactions, which gives AppendMessage its
// read-modify-write atomicity without an extra lock.
type BoltStore struct {
	db     *bolt.DB
	files  *Files
	logger log.Logger
}

// NewBoltStore opens (or creates) the database file at path.
func NewBoltStore(path string, files *Files, logger log.Logger) (*BoltStore, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(conversationsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create conversations bucket: %w", err)
	}
	return &BoltStore{db: db, files: files, logger: logger}, nil
}

// Create persists a new empty conversation with default settings.
func (s *BoltStore) Create(ctx context.Context) (*Conversation, error) {
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
func (s *BoltStore) Get(_ context.Context, id string) (*Conversation, error) {
	var conv *Conversation
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(conversationsBucket).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		conv = &Conversation{}
		if err := json.Unmarshal(data, conv); err != nil {
			return fmt.Errorf("decode conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// Put overwrites the whole record and stamps UpdatedAt.
func (s *BoltStore) Put(_ context.Context, conv *Conversation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putRecord(tx, conv)
	})
}

func putRecord(tx *bolt.Tx, conv *Conversation) error {
	conv.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	if err := tx.Bucket(conversationsBucket).Put([]byte(conv.ID), data); err != nil {
		return fmt.Errorf("store conversation: %w", err)
	}
	return nil
}

// AppendMessage appends one message inside a single update transaction.
func (s *BoltStore) AppendMessage(_ context.Context, id string, msg Message) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data := tx.Bucket(conversationsBucket).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		var conv Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			return fmt.Errorf("decode conversation: %w", err)
		}
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		conv.Messages = append(conv.Messages, msg)
		return putRecord(tx, &conv)
	})
}

// Delete removes the record and its attachment byte store.
func (s *BoltStore) Delete(_ context.Context, id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(conversationsBucket)
		if b.Get([]byte(id)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(id))
	})
	if err != nil {
		return err
	}
	if s.files != nil {
		if err := s.files.RemoveAll(id); err != nil {
			return err
		}
	}
	return nil
}

// List returns summaries of all conversations, newest update first.
// Malformed values are skipped instead of failing the whole listing.
func (s *BoltStore) List(_ context.Context) ([]Summary, error) {
	summaries := []Summary{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(conversationsBucket).ForEach(func(k, v []byte) error {
			var conv Conversation
			if err := json.Unmarshal(v, &conv); err != nil {
				s.logger.Warn("skipping malformed record", "id", string(k), "error", err)
				return nil
			}
			summaries = append(summaries, conv.Summary())
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// Ping reports whether the database is usable.
func (s *BoltStore) Ping(_ context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(conversationsBucket) == nil {
			return fmt.Errorf("conversations bucket missing")
		}
		return nil
	})
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
