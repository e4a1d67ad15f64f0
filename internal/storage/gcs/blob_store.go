// Package gcs provides a storage.Provider backed by a single Google Cloud
// Storage object.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/JakeFAU/distro-catalog/internal/storage"
)

// DefaultObject is the object name used when Config.Object is empty.
const DefaultObject = "distros_cache.json"

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	Object string
}

// BlobStore keeps the payload in one object of a configured bucket.
type BlobStore struct {
	client *gcstorage.Client
	bucket string
	object string
}

var _ storage.Provider = (*BlobStore)(nil)

// NewClient builds a storage client. A non-empty endpoint points the client at
// an emulator and disables authentication.
func NewClient(ctx context.Context, endpoint string) (*gcstorage.Client, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(endpoint) != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}
	client, err := gcstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return client, nil
}

// New creates a GCS-backed store and verifies the bucket is reachable.
func New(ctx context.Context, client *gcstorage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	object := cfg.Object
	if object == "" {
		object = DefaultObject
	}
	if _, err := client.Bucket(cfg.Bucket).Attrs(ctx); err != nil {
		return nil, fmt.Errorf("failed to get GCS bucket '%s' attributes: %w", cfg.Bucket, err)
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
		object: object,
	}, nil
}

// Name implements storage.Provider.
func (s *BlobStore) Name() string { return "gcs" }

// URI returns the gs:// location of the cache object.
func (s *BlobStore) URI() string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, s.object)
}

// Load downloads the cache object.
func (s *BlobStore) Load(ctx context.Context) ([]byte, error) {
	reader, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if errors.Is(err, gcstorage.ErrObjectNotExist) {
		return nil, storage.ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.URI(), err)
	}
	defer func() {
		_ = reader.Close()
	}()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.URI(), err)
	}
	return data, nil
}

// Save uploads data, replacing the object. GCS only publishes the object once
// the writer closes successfully.
func (s *BlobStore) Save(ctx context.Context, data []byte) error {
	writer := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// Remove deletes the cache object if present.
func (s *BlobStore) Remove(ctx context.Context) error {
	err := s.client.Bucket(s.bucket).Object(s.object).Delete(ctx)
	if err != nil && !errors.Is(err, gcstorage.ErrObjectNotExist) {
		return fmt.Errorf("delete %s: %w", s.URI(), err)
	}
	return nil
}

// Close releases the underlying client.
func (s *BlobStore) Close() error {
	return s.client.Close()
}
