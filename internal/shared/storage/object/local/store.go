package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"iprisk-backend/internal/shared/storage/object"
)

// Store implements object.Store using the local filesystem.
type Store struct {
	baseDir string
}

// New creates a new local object store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Put writes the reader to disk at storageKey, replacing any previous content.
func (s *Store) Put(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	fullPath, err := s.resolve(storageKey)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return 0, fmt.Errorf("mkdir: %w", err)
	}

	// Write to a temp file first so readers never observe a partial artifact.
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return 0, fmt.Errorf("rename: %w", err)
	}
	_ = contentType
	return written, nil
}

// Open opens a stored object for reading.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath, err := s.resolve(storageKey)
	if err != nil {
		return nil, err
	}
	return os.Open(fullPath)
}

func (s *Store) resolve(storageKey string) (string, error) {
	clean := filepath.Clean(storageKey)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage key")
	}
	return filepath.Join(s.baseDir, clean), nil
}

var _ object.Store = (*Store)(nil)
