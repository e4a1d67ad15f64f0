// Package redis provides a storage.Provider that keeps the payload under a
// single Redis key.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JakeFAU/distro-catalog/internal/storage"
)

// DefaultKey is used when Config.Key is empty.
const DefaultKey = "distrocat:catalog:envelope"

// ErrEmptyAddress is returned when the Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

// Config holds Redis connection configuration.
type Config struct {
	Address  string
	Password string
	DB       int
	Key      string
}

// BlobStore stores the payload as a string value with no expiry; freshness is
// decided by the envelope, not by Redis.
type BlobStore struct {
	client *goredis.Client
	key    string
}

var _ storage.Provider = (*BlobStore)(nil)

// New connects to Redis and verifies the connection with PING. The caller
// bounds the check through ctx.
func New(ctx context.Context, cfg Config) (*BlobStore, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewWithClient(client, cfg.Key), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, key string) *BlobStore {
	if key == "" {
		key = DefaultKey
	}
	return &BlobStore{client: client, key: key}
}

// Name implements storage.Provider.
func (s *BlobStore) Name() string { return "redis" }

// Load fetches the payload.
func (s *BlobStore) Load(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return data, nil
}

// Save replaces the payload. SET is atomic.
func (s *BlobStore) Save(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// Remove deletes the key.
func (s *BlobStore) Remove(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", s.key, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *BlobStore) Close() error {
	return s.client.Close()
}
