// Package storage persists uploaded statement files. File metadata lives in
// the user_files table; this layer only moves bytes.
package storage

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// StoredFile is the result of an upload.
type StoredFile struct {
	ID   uuid.UUID
	Path string
	Size int64
}

// Storage reads and writes raw statement files by storage path.
type Storage interface {
	Upload(ctx context.Context, userID uuid.UUID, filename string, r io.Reader) (*StoredFile, error)
	GetReader(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// Config holds storage configuration
type Config struct {
	Type      string
	LocalPath string
	S3Bucket  string
	S3Region  string
}

const (
	TypeLocal = "local"
	TypeS3    = "s3"
)

// New creates a Storage implementation based on configuration.
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case TypeS3:
		return NewS3Storage(cfg)
	case TypeLocal:
		fallthrough
	default:
		return NewLocalStorage(cfg.LocalPath)
	}
}
