// Package memory keeps the cache payload in process memory. It is the
// fallback medium when no durable location can be prepared.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/distro-catalog/internal/storage"
)

// BlobStore holds one payload for the life of the process.
type BlobStore struct {
	mu   sync.RWMutex
	data []byte
}

var _ storage.Provider = (*BlobStore)(nil)

// NewBlobStore creates an empty in-memory store.
func NewBlobStore() *BlobStore {
	return &BlobStore{}
}

// Name implements storage.Provider.
func (s *BlobStore) Name() string { return "memory" }

// Load returns a copy of the stored payload.
func (s *BlobStore) Load(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, storage.ErrEmpty
	}
	return append([]byte(nil), s.data...), nil
}

// Save stores a copy of data.
func (s *BlobStore) Save(_ context.Context, data []byte) error {
	cp := append(make([]byte, 0, len(data)), data...)
	s.mu.Lock()
	s.data = cp
	s.mu.Unlock()
	return nil
}

// Remove clears the payload.
func (s *BlobStore) Remove(_ context.Context) error {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
	return nil
}
