package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesSaveAndRead(t *testing.T) {
	t.Parallel()
	files := NewFiles(t.TempDir())

	att, err := files.Save("conv-1", "notes.txt", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)

	assert.Len(t, att.ID, 8)
	assert.Equal(t, "notes.txt", att.Name)
	assert.Equal(t, "text/plain", att.Type)
	assert.Equal(t, int64(5), att.Size)
	assert.Equal(t, att.ID+"_notes.txt", att.Filename)

	data, err := files.Read("conv-1", att.Filename)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestFilesSaveSanitizesName(t *testing.T) {
	t.Parallel()
	files := NewFiles(t.TempDir())

	att, err := files.Save("conv-1", "../../evil.sh", "", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "evil.sh", att.Name)
}

func TestFilesSaveContentTypeFallback(t *testing.T) {
	t.Parallel()
	files := NewFiles(t.TempDir())

	att, err := files.Save("conv-1", "data.bin", "", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", att.Type)

	att, err = files.Save("conv-1", "page.html", "", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Contains(t, att.Type, "text/html")
}

func TestFilesPathGuardsTraversal(t *testing.T) {
	t.Parallel()
	files := NewFiles(t.TempDir())

	_, err := files.Path("conv-1", "../../etc/passwd")
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = files.Read("conv-1", "missing.txt")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestFilesRemoveAll(t *testing.T) {
	t.Parallel()
	files := NewFiles(t.TempDir())

	att, err := files.Save("conv-1", "a.txt", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, files.RemoveAll("conv-1"))
	_, err = files.Read("conv-1", att.Filename)
	assert.ErrorIs(t, err, ErrFileNotFound)
}
