package prefs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps the preferences payload in a single JSON file. It needs
// nothing but the filesystem, so it is readable from process start.
type FileStore struct {
	path string
}

// NewFileStore creates a file substrate at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: strings.TrimSpace(path)}
}

// FilePath returns the conventional preferences file inside dataDir.
func FilePath(dataDir string) string {
	return filepath.Join(dataDir, Key+".json")
}

// Name implements DurableStore.
func (f *FileStore) Name() string { return "file" }

// Path returns the backing file path.
func (f *FileStore) Path() string { return f.path }

// Available reports whether a path is configured.
func (f *FileStore) Available() bool { return f != nil && f.path != "" }

// Load reads the file, stamped with its modification time; a missing file
// is not an error.
func (f *FileStore) Load(_ context.Context) (Record, bool, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("read %s: %w", f.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Record{}, false, fmt.Errorf("stat %s: %w", f.path, err)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return Record{}, false, fmt.Errorf("read %s: %w", f.path, err)
	}
	return Record{Payload: data, UpdatedAt: info.ModTime()}, true, nil
}

// Save replaces the file atomically via a temporary file and rename.
func (f *FileStore) Save(_ context.Context, payload []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}
