package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStorage manages the downloads directory holding ephemeral artifacts.
type FileStorage struct {
	dir string
}

// NewFileStorage creates a new FileStorage rooted at dir. The directory is
// created lazily by EnsureDir.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

// EnsureDir creates the storage directory if it does not exist.
func (s *FileStorage) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}
	return nil
}

// Path returns the location of filename inside the storage directory.
// Only the base name is used so that names cannot escape the directory.
func (s *FileStorage) Path(filename string) string {
	return filepath.Join(s.dir, filepath.Base(filepath.Clean("/"+filename)))
}

// ValidName reports whether filename names a file inside the storage
// directory rather than the directory itself.
func (s *FileStorage) ValidName(filename string) bool {
	return s.Path(filename) != filepath.Clean(s.dir)
}

// CreateFile creates or truncates filename in the storage directory.
func (s *FileStorage) CreateFile(filename string) (*os.File, error) {
	return os.Create(s.Path(filename))
}

// FileExists checks whether a file exists in the storage directory.
func (s *FileStorage) FileExists(filename string) bool {
	_, err := os.Stat(s.Path(filename))
	return err == nil
}

// Remove deletes filename. A missing file is not an error.
func (s *FileStorage) Remove(filename string) error {
	if !s.ValidName(filename) {
		return fmt.Errorf("invalid file name %q", filename)
	}
	if err := os.Remove(s.Path(filename)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", filename, err)
	}
	return nil
}
