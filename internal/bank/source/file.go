package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// File reads and writes a snapshot on the local filesystem.
type File struct {
	Path string
}

// NewFile returns a file-backed snapshot store.
func NewFile(path string) *File {
	return &File{Path: path}
}

func (f *File) Describe() string {
	return "file://" + f.Path
}

func (f *File) Fetch(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(f)
	}
	if err != nil {
		return nil, fetchErr(f, err)
	}
	return data, nil
}

// Publish writes to a temporary file in the same directory and renames it over
// the target, so readers see either the old or the new snapshot.
func (f *File) Publish(_ context.Context, data []byte) error {
	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}
