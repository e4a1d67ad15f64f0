// Package storage defines the medium a cache envelope is persisted to.
// A Provider holds exactly one blob; implementations live in the local,
// memory, redis and gcs subpackages.
package storage

import (
	"context"
	"errors"
)

// ErrEmpty is returned by Load when nothing has been saved.
var ErrEmpty = errors.New("storage: nothing stored")

// Provider stores a single opaque payload.
type Provider interface {
	// Name identifies the medium in logs and cache info.
	Name() string
	// Load returns the stored payload or ErrEmpty.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the stored payload in one step.
	Save(ctx context.Context, data []byte) error
	// Remove deletes the payload. Removing nothing is not an error.
	Remove(ctx context.Context) error
}
