// Package cache persists the most recent catalog crawl inside a TTL envelope.
//
// A Store wraps one storage.Provider. Which provider is active is decided once
// at construction (see Open) and is invisible to callers afterwards. Every
// operation absorbs medium faults: reads degrade to misses and writes report
// false, with the cause logged.
//
// Store assumes a single writer. The ingest package guarantees that within a
// process; running several processes against a shared medium (redis, gcs)
// needs external mutual exclusion around Write and Invalidate.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog/internal/catalog"
	"github.com/JakeFAU/distro-catalog/internal/metrics"
	"github.com/JakeFAU/distro-catalog/internal/storage"
)

// Info describes the stored envelope without returning its records.
type Info struct {
	Valid      bool      `json:"valid"`
	Timestamp  time.Time `json:"timestamp"`
	Expiry     time.Time `json:"expiry"`
	Count      int       `json:"count"`
	TTLSeconds int       `json:"ttl_seconds"`
	Backend    string    `json:"backend"`
}

// Store reads and writes the catalog envelope.
type Store struct {
	provider storage.Provider
	clock    catalog.Clock
	ttl      time.Duration
	logger   *zap.Logger
}

// New wraps provider. A non-positive ttl selects DefaultTTL.
func New(provider storage.Provider, clock catalog.Clock, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.SetCacheBackend(provider.Name())
	return &Store{
		provider: provider,
		clock:    clock,
		ttl:      ttl,
		logger:   logger.With(zap.String("cache_backend", provider.Name())),
	}
}

// Backend names the active medium.
func (s *Store) Backend() string {
	return s.provider.Name()
}

// TTL is the lifetime stamped on new envelopes.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Read returns the cached records when a valid envelope exists. Missing,
// expired and undecodable envelopes all report a miss.
func (s *Store) Read(ctx context.Context) ([]catalog.Record, bool) {
	env, ok := s.load(ctx)
	if !ok {
		metrics.ObserveCacheOp("read", false)
		return nil, false
	}
	if !env.ValidAt(s.clock.Now(), s.ttl) {
		s.logger.Info("cache expired", zap.Time("timestamp", env.Timestamp))
		metrics.ObserveCacheOp("read", false)
		return nil, false
	}
	records := env.Records
	if records == nil {
		records = []catalog.Record{}
	}
	s.logger.Info("cache hit", zap.Int("count", len(records)))
	metrics.ObserveCacheOp("read", true)
	return records, true
}

// Write replaces the stored envelope with a fresh one holding records.
func (s *Store) Write(ctx context.Context, records []catalog.Record) bool {
	env := newEnvelope(s.clock.Now(), s.ttl, records)
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		s.logger.Error("encode cache envelope", zap.Error(err))
		metrics.ObserveCacheOp("write", false)
		return false
	}
	if err := s.provider.Save(ctx, data); err != nil {
		s.logger.Error("save cache envelope", zap.Error(fmt.Errorf("%w: %w", catalog.ErrStorage, err)))
		metrics.ObserveCacheOp("write", false)
		return false
	}
	s.logger.Info("cache updated", zap.Int("count", env.Count))
	metrics.ObserveCacheOp("write", true)
	return true
}

// Invalidate removes the stored envelope. Removing nothing succeeds.
func (s *Store) Invalidate(ctx context.Context) bool {
	if err := s.provider.Remove(ctx); err != nil {
		s.logger.Error("invalidate cache", zap.Error(fmt.Errorf("%w: %w", catalog.ErrStorage, err)))
		metrics.ObserveCacheOp("invalidate", false)
		return false
	}
	s.logger.Info("cache invalidated")
	metrics.ObserveCacheOp("invalidate", true)
	return true
}

// Info inspects the stored envelope. It reports false when nothing readable
// is stored.
func (s *Store) Info(ctx context.Context) (Info, bool) {
	env, ok := s.load(ctx)
	if !ok {
		return Info{Backend: s.Backend()}, false
	}
	return Info{
		Valid:      env.ValidAt(s.clock.Now(), s.ttl),
		Timestamp:  env.Timestamp,
		Expiry:     env.Expiry(s.ttl),
		Count:      env.Count,
		TTLSeconds: int(env.ttl(s.ttl) / time.Second),
		Backend:    s.Backend(),
	}, true
}

// Close releases the medium's connections, if it holds any.
func (s *Store) Close() error {
	if c, ok := s.provider.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Store) load(ctx context.Context) (Envelope, bool) {
	data, err := s.provider.Load(ctx)
	if errors.Is(err, storage.ErrEmpty) {
		s.logger.Debug("cache empty")
		return Envelope{}, false
	}
	if err != nil {
		s.logger.Warn("load cache envelope", zap.Error(fmt.Errorf("%w: %w", catalog.ErrStorage, err)))
		return Envelope{}, false
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn("decode cache envelope", zap.Error(err))
		return Envelope{}, false
	}
	return env, true
}
