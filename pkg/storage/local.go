package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStorage implements Storage on the local filesystem.
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (s *LocalStorage) Upload(ctx context.Context, userID uuid.UUID, filename string, r io.Reader) (*StoredFile, error) {
	fileID := uuid.New()

	userDir := filepath.Join(s.basePath, userID.String())
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating user directory: %w", err)
	}

	stored := fmt.Sprintf("%s_%s", fileID.String()[:8], sanitizeFilename(filename))
	relPath := filepath.Join(userID.String(), stored)

	f, err := os.Create(filepath.Join(s.basePath, relPath))
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(filepath.Join(s.basePath, relPath))
		return nil, fmt.Errorf("writing file: %w", err)
	}

	return &StoredFile{ID: fileID, Path: relPath, Size: size}, nil
}

func (s *LocalStorage) GetReader(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.basePath, filepath.Clean(path)))
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return f, nil
}

func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	if err := os.Remove(filepath.Join(s.basePath, filepath.Clean(path))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
