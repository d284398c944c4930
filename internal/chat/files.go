package chat

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrFileNotFound indicates an attachment's bytes are missing from the
// side store.
var ErrFileNotFound = errors.New("attachment file not found")

// Files stores attachment bytes on the filesystem, keyed by conversation
// id: <root>/<conversation id>/files/<storage filename>.
//
// Both store backends share one Files instance; the conversation record
// only carries attachment metadata.
type Files struct {
	root string
}

// NewFiles creates an attachment byte store rooted at the given directory.
func NewFiles(root string) *Files {
	return &Files{root: root}
}

// dir returns the files directory for one conversation.
func (f *Files) dir(convID string) string {
	return filepath.Join(f.root, convID, "files")
}

// Path resolves a storage filename to an absolute path. The filename is
// reduced to its base name so callers cannot traverse outside the store.
// Returns ErrFileNotFound when the bytes are missing.
func (f *Files) Path(convID, filename string) (string, error) {
	filename = filepath.Base(filename)
	if filename == "." || filename == string(filepath.Separator) {
		return "", ErrFileNotFound
	}
	path := filepath.Join(f.dir(convID), filename)
	if _, err := os.Stat(path); err != nil {
		return "", ErrFileNotFound
	}
	return path, nil
}

// Read returns the bytes of one stored attachment, or ErrFileNotFound.
func (f *Files) Read(convID, filename string) ([]byte, error) {
	path, err := f.Path(convID, filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path confined to the store by Path
	if err != nil {
		return nil, fmt.Errorf("read attachment %s: %w", filename, err)
	}
	return data, nil
}

// Save stores uploaded bytes and returns the attachment metadata. The
// storage filename is an 8-character id prefix plus the sanitized upload
// name, so repeated uploads of the same file never collide.
func (f *Files) Save(convID, name, contentType string, r io.Reader) (Attachment, error) {
	dir := f.dir(convID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return Attachment{}, fmt.Errorf("create files directory: %w", err)
	}

	safeName := filepath.Base(name)
	if safeName == "." || safeName == string(filepath.Separator) || safeName == "" {
		safeName = "upload"
	}
	fileID := uuid.NewString()[:8]
	savedName := fileID + "_" + safeName

	dst, err := os.OpenFile(filepath.Join(dir, savedName), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return Attachment{}, fmt.Errorf("create attachment file: %w", err)
	}
	size, err := io.Copy(dst, r)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Attachment{}, fmt.Errorf("write attachment file: %w", err)
	}

	if contentType == "" {
		contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(safeName)))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return Attachment{
		ID:       fileID,
		Name:     safeName,
		Type:     contentType,
		Size:     size,
		Filename: savedName,
	}, nil
}

// RemoveAll deletes every stored byte for a conversation. Called when the
// conversation record is deleted.
func (f *Files) RemoveAll(convID string) error {
	if err := os.RemoveAll(filepath.Join(f.root, convID)); err != nil {
		return fmt.Errorf("remove attachment store for %s: %w", convID, err)
	}
	return nil
}
