package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FileStore implements Store on the local file system. Each object lives in
// a file named by the hex content id under a single objects directory.
type FileStore struct {
	baseDir string
	log     *slog.Logger
}

// NewFileStore creates a file store rooted at baseDir, creating the
// directory layout if needed.
func NewFileStore(baseDir string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, "objects"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create objects directory: %w", err)
	}
	return &FileStore{baseDir: baseDir, log: log}, nil
}

// Put stores data under its SHA-256 content id. Storing the same bytes twice
// is an idempotent overwrite.
func (s *FileStore) Put(ctx context.Context, data []byte) (ContentID, error) {
	id := ContentIDForData(data)
	path := s.objectPath(id)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return id, fmt.Errorf("failed to write object file: %w", err)
	}

	s.log.Debug("Stored encrypted object",
		slog.String("path", path),
		slog.Int("size", len(data)))

	return id, nil
}

// Get retrieves the bytes stored under id and verifies they still hash to
// it, guarding against on-disk corruption.
func (s *FileStore) Get(ctx context.Context, id ContentID) ([]byte, error) {
	path := s.objectPath(id)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read object file: %w", err)
	}

	if ContentIDForData(data) != id {
		return nil, fmt.Errorf("object file %s does not match its content id", path)
	}

	s.log.Debug("Fetched encrypted object",
		slog.String("path", path),
		slog.Int("size", len(data)))

	return data, nil
}

// Available checks that the base directory still exists.
func (s *FileStore) Available(ctx context.Context) bool {
	if _, err := os.Stat(s.baseDir); err != nil {
		s.log.Debug("File store unavailable", "err", err)
		return false
	}
	return true
}

func (s *FileStore) objectPath(id ContentID) string {
	return filepath.Join(s.baseDir, "objects", id.Hex())
}
