// Package ingest is the single entry point for producing the current catalog.
// It owns the cache store and decides when a crawl is needed.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/distro-catalog/internal/cache"
	"github.com/JakeFAU/distro-catalog/internal/catalog"
)

// FetchFunc produces a fresh record set.
type FetchFunc func(ctx context.Context) ([]catalog.Record, error)

// Crawler runs one crawl.
type Crawler interface {
	Run(ctx context.Context, limit int) ([]catalog.Record, error)
}

// Store is the subset of *cache.Store the service depends on.
type Store interface {
	Read(ctx context.Context) ([]catalog.Record, bool)
	Write(ctx context.Context, records []catalog.Record) bool
	Invalidate(ctx context.Context) bool
	Info(ctx context.Context) (cache.Info, bool)
	Backend() string
}

var _ Store = (*cache.Store)(nil)

// Service serves catalog reads from the cache and refills it on a miss.
// Concurrent misses share a single crawl, so the store only ever sees one
// writer from this process.
type Service struct {
	store   Store
	crawler Crawler
	limit   int
	logger  *zap.Logger
	group   singleflight.Group

	// flightCtx, when set, scopes shared fetches instead of the first
	// caller's context.
	flightCtx context.Context
}

// Option configures a Service.
type Option func(*Service)

// WithFlightContext runs shared fetches under ctx rather than under the
// context of whichever caller started them. A caller that gives up then only
// stops waiting; the fetch keeps going and still fills the cache.
func WithFlightContext(ctx context.Context) Option {
	return func(s *Service) {
		s.flightCtx = ctx
	}
}

// New builds a Service. limit is passed to every crawl.
func New(store Store, crawler Crawler, limit int, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{store: store, crawler: crawler, limit: limit, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const flightKey = "catalog"

// GetOrFetch returns the cached catalog when valid, otherwise runs fetch and
// caches its result. forceRefresh invalidates the cache first. Empty results
// are returned but not cached.
func (s *Service) GetOrFetch(ctx context.Context, fetch FetchFunc, forceRefresh bool) ([]catalog.Record, error) {
	if forceRefresh {
		s.store.Invalidate(ctx)
	}
	if records, ok := s.store.Read(ctx); ok {
		return catalog.CloneRecords(records), nil
	}

	flightCtx := ctx
	if s.flightCtx != nil {
		flightCtx = s.flightCtx
	}
	ch := s.group.DoChan(flightKey, func() (any, error) {
		// A caller that lost the race may find the cache already refilled.
		if !forceRefresh {
			if records, ok := s.store.Read(flightCtx); ok {
				return records, nil
			}
		}
		s.logger.Info("cache miss, fetching catalog", zap.Bool("force_refresh", forceRefresh))
		records, err := fetch(flightCtx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			s.logger.Warn("fetch produced no records, cache left untouched")
			return records, nil
		}
		s.store.Write(flightCtx, records)
		return records, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("fetch catalog: %w", res.Err)
		}
		records, _ := res.Val.([]catalog.Record)
		if records == nil {
			records = []catalog.Record{}
		}
		return catalog.CloneRecords(records), nil
	}
}

// Catalog returns the current catalog, crawling when the cache is not valid.
func (s *Service) Catalog(ctx context.Context, forceRefresh bool) ([]catalog.Record, error) {
	return s.GetOrFetch(ctx, s.crawl, forceRefresh)
}

// Refresh forces a new crawl.
func (s *Service) Refresh(ctx context.Context) ([]catalog.Record, error) {
	return s.Catalog(ctx, true)
}

// Lookup finds one record by identifier. The match is case-insensitive.
func (s *Service) Lookup(ctx context.Context, id string) (catalog.Record, error) {
	records, err := s.Catalog(ctx, false)
	if err != nil {
		return catalog.Record{}, err
	}
	want := strings.ToLower(strings.TrimSpace(id))
	for _, rec := range records {
		if strings.ToLower(rec.ID) == want {
			return rec, nil
		}
	}
	return catalog.Record{}, fmt.Errorf("%w: %q", catalog.ErrNotFound, id)
}

// CacheInfo describes the stored envelope.
func (s *Service) CacheInfo(ctx context.Context) (cache.Info, bool) {
	return s.store.Info(ctx)
}

// Invalidate drops the stored envelope.
func (s *Service) Invalidate(ctx context.Context) bool {
	return s.store.Invalidate(ctx)
}

// Backend names the cache medium in use.
func (s *Service) Backend() string {
	return s.store.Backend()
}

func (s *Service) crawl(ctx context.Context) ([]catalog.Record, error) {
	records, err := s.crawler.Run(ctx, s.limit)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("crawl interrupted, partial result discarded", zap.Int("records", len(records)), zap.Error(err))
		}
		return nil, err
	}
	return records, nil
}
