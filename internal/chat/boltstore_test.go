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

func newTestBoltStore(t *testing.T) (*BoltStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewBoltStore(filepath.Join(dir, "test.db"), NewFiles(dir), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, dir
}

func TestBoltStoreRoundTrip(t *testing.T) {
	t.Parallel()
	store, _ := newTestBoltStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Untitled chat", conv.Title)

	conv.Title = "Renamed"
	conv.Messages = []Message{
		{ID: "m1", Role: RoleUser, Content: "hello"},
		{ID: "m2", Role: RoleModel, Content: "hi", Thoughts: "greeting"},
	}
	require.NoError(t, store.Put(ctx, conv))

	got, err := store.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "hello", got.Messages[0].Content)
	assert.Equal(t, "greeting", got.Messages[1].Thoughts)
}

func TestBoltStoreGetNotFound(t *testing.T) {
	t.Parallel()
	store, _ := newTestBoltStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBoltStoreAppendMessage(t *testing.T) {
	t.Parallel()
	store, _ := newTestBoltStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, store.AppendMessage(ctx, conv.ID, Message{Role: RoleModel, Content: "reply"}))

	got, err := store.Get(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.NotEmpty(t, got.Messages[0].ID)

	assert.ErrorIs(t, store.AppendMessage(ctx, "missing", Message{}), ErrNotFound)
}

func TestBoltStoreConcurrentAppends(t *testing.T) {
	t.Parallel()
	store, _ := newTestBoltStore(t)
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
	assert.Len(t, got.Messages, n)
}

func TestBoltStoreList(t *testing.T) {
	t.Parallel()
	store, _ := newTestBoltStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := store.Create(ctx)
	require.NoError(t, err)

	summaries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, second.ID, summaries[0].ID)
	assert.Equal(t, first.ID, summaries[1].ID)
}

func TestBoltStoreDelete(t *testing.T) {
	t.Parallel()
	store, dir := newTestBoltStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx)
	require.NoError(t, err)

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

func TestBoltStorePing(t *testing.T) {
	t.Parallel()
	store, _ := newTestBoltStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
