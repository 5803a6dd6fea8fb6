package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// S3Storage is a placeholder for an S3-compatible backend.
// TODO: implement with aws-sdk-go-v2 once the bucket is provisioned.
type S3Storage struct {
	bucket string
	region string
}

func NewS3Storage(cfg Config) (*S3Storage, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}
	if cfg.S3Region == "" {
		return nil, fmt.Errorf("S3 region is required")
	}
	return &S3Storage{bucket: cfg.S3Bucket, region: cfg.S3Region}, nil
}

func (s *S3Storage) Upload(ctx context.Context, userID uuid.UUID, filename string, r io.Reader) (*StoredFile, error) {
	return nil, fmt.Errorf("s3 storage not implemented, set STORAGE_TYPE=local")
}

func (s *S3Storage) GetReader(ctx context.Context, path string) (io.ReadCloser, error) {
	return nil, fmt.Errorf("s3 storage not implemented")
}

func (s *S3Storage) Delete(ctx context.Context, path string) error {
	return fmt.Errorf("s3 storage not implemented")
}
