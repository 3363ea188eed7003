// Package gcs provides a BlobStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
}

// ObjectWriterFactory opens a writer for bucket/object. The default
// implementation wraps *storage.Client; tests substitute an in-memory one.
type ObjectWriterFactory interface {
	NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser
}

type clientWriterFactory struct {
	client *storage.Client
}

func (f clientWriterFactory) NewWriter(ctx context.Context, bucket, object, contentType string) io.WriteCloser {
	w := f.client.Bucket(bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	return w
}

// BlobStore writes result artifacts to a configured GCS bucket.
type BlobStore struct {
	writers ObjectWriterFactory
	bucket  string
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	return NewWithWriterFactory(clientWriterFactory{client: client}, cfg)
}

// NewWithWriterFactory creates a blob store from a custom writer factory.
func NewWithWriterFactory(writers ObjectWriterFactory, cfg Config) (*BlobStore, error) {
	if writers == nil {
		return nil, fmt.Errorf("writer factory is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{writers: writers, bucket: cfg.Bucket}, nil
}

// PutObject uploads data to the configured bucket and returns a gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	writer := s.writers.NewWriter(ctx, s.bucket, path, contentType)
	if _, err := io.Copy(writer, r); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}
