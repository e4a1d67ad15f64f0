// Package local implements a storage.Provider backed by one file on the
// local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/distro-catalog/internal/storage"
)

// DefaultFileName is the cache file inside BaseDir.
const DefaultFileName = "distros_cache.json"

// Config captures the parameters for the local filesystem store.
type Config struct {
	// BaseDir is the directory holding the cache file.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
	// FileName defaults to DefaultFileName.
	FileName string `mapstructure:"file_name" yaml:"file_name"`
}

// BlobStore keeps the payload in a single file and replaces it atomically.
type BlobStore struct {
	baseDir string
	path    string
}

var _ storage.Provider = (*BlobStore)(nil)

// New prepares the base directory and verifies it is writable.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	name := cfg.FileName
	if name == "" {
		name = DefaultFileName
	}
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("file name %q must not contain a path", name)
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &BlobStore{
		baseDir: cfg.BaseDir,
		path:    filepath.Join(cfg.BaseDir, name),
	}, nil
}

// Name implements storage.Provider.
func (s *BlobStore) Name() string { return "file" }

// Path returns the cache file location.
func (s *BlobStore) Path() string { return s.path }

// Load reads the cache file.
func (s *BlobStore) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, storage.ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return data, nil
}

// Save writes to a temporary file in the same directory and renames it over
// the cache file so readers never observe a partial write.
func (s *BlobStore) Save(_ context.Context, data []byte) error {
	tmp, err := os.CreateTemp(s.baseDir, ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// Remove deletes the cache file if present.
func (s *BlobStore) Remove(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", s.path, err)
	}
	return nil
}
