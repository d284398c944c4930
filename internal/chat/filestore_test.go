package chat

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	return store
}

func TestFileStoreCreateAndGet(t *testing.T) {
	t.Parallel()
	store := newTestFileStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "Untitled chat", conv.Title)
	assert.Equal(t, DefaultSettings(), conv.Settings)
	assert.Empty(t, conv.Messages)

	got, err := store.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
	assert.Equal(t, conv.Title, got.Title)
}

func TestFileStoreGetNotFound(t *testing.T) {
	t.Parallel()
	store := newTestFileStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "c2a8f9e4-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	// Non-UUID ids are rejected before touching the filesystem.
	_, err = store.Get(ctx, "../../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStorePutPreservesMessageOrder(t *testing.T) {
	t.Parallel()
	store := newTestFileStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx)
	require.NoError(t, err)

	conv.Messages = []Message{
		{ID: "m1", Role: RoleUser, Content: "first"},
		{ID: "m2", Role: RoleModel, Content: "second", Thoughts: "pondering"},
		{ID: "m3", Role: RoleUser, Content: "third"},
	}
	require.NoError(t, store.Put(ctx, conv))

	got, err := store.Get(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "first", got.Messages[0].Content)
	assert.Equal(t, "second", got.Messages[1].Content)
	assert.Equal(t, "pondering", got.Messages[1].Thoughts)
	assert.Equal(t, "third", got.Messages[2].Content)
}

func TestFileStoreAppendMessage(t *testing.T) {
	t.Parallel()
	store := newTestFileStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, store.AppendMessage(ctx, conv.ID, Message{Role: RoleModel, Content: "reply"}))

	got, err := store.Get(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, RoleModel, got.Messages[0].Role)
	assert.NotEmpty(t, got.Messages[0].ID, "append assigns an id when missing")

	err = store.AppendMessage(ctx, "c2a8f9e4-0000-4000-8000-000000000000", Message{Content: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreConcurrentAppends(t *testing.T) {
	t.Parallel()
	store := newTestFileStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx)
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.AppendMessage(ctx, conv.ID, Message{Role: RoleModel, Content: "turn"}))
		}()
	}
	wg.Wait()

	got, err := store.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, n, "no append may be lost to an interleaved write")
}

func TestFileStoreList(t *testing.T) {
	t.Parallel()
	store := newTestFileStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := store.Create(ctx)
	require.NoError(t, err)

	summaries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, second.ID, summaries[0].ID, "newest update first")
	assert.Equal(t, first.ID, summaries[1].ID)

	// Touching the older conversation moves it to the front.
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.Put(ctx, first))
	summaries, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, summaries[0].ID)
}

func TestFileStoreListSkipsCorruptRecords(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)
	ctx := context.Background()

	conv, err := store.Create(ctx)
	require.NoError(t, err)

	corrupt := filepath.Join(dir, "11111111-2222-4333-8444-555555555555.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o640))

	summaries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, conv.ID, summaries[0].ID)
}

func TestFileStoreDelete(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)
	ctx := context.Background()

	conv, err := store.Create(ctx)
	require.NoError(t, err)

	// Attachment bytes for the conversation go away with the record.
	filesDir := filepath.Join(dir, conv.ID, "files")
	require.NoError(t, os.MkdirAll(filesDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(filesDir, "a.txt"), []byte("x"), 0o640))

	require.NoError(t, store.Delete(ctx, conv.ID))

	_, err = store.Get(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = os.Stat(filepath.Join(dir, conv.ID))
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, store.Delete(ctx, conv.ID), ErrNotFound)
}

func TestFileStorePing(t *testing.T) {
	t.Parallel()
	store := newTestFileStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
