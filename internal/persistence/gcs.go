package persistence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// Verify interface compliance
var _ KV = (*GCSStore)(nil)

// GCSStore implements KV with one Cloud Storage object per key.
type GCSStore struct {
	bucket *storage.BucketHandle
	prefix string
}

// NewGCSStore creates a KV writing objects named prefix+key into bucket.
func NewGCSStore(bucket *storage.BucketHandle, prefix string) *GCSStore {
	return &GCSStore{bucket: bucket, prefix: prefix}
}

func (s *GCSStore) Get(ctx context.Context, key string) (string, bool, error) {
	reader, err := s.bucket.Object(s.prefix + key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get object reader for %s: %w", key, err)
	}
	defer reader.Close()

	b, err := io.ReadAll(reader)
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return string(b), true, nil
}

func (s *GCSStore) Set(ctx context.Context, key, value string) error {
	writer := s.bucket.Object(s.prefix + key).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := io.Copy(writer, strings.NewReader(value)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", key, err)
	}
	return nil
}

func (s *GCSStore) Remove(ctx context.Context, key string) error {
	err := s.bucket.Object(s.prefix + key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}
