package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog/internal/cache"
	"github.com/JakeFAU/distro-catalog/internal/catalog"
	"github.com/JakeFAU/distro-catalog/internal/clock/system"
	"github.com/JakeFAU/distro-catalog/internal/ingest"
	"github.com/JakeFAU/distro-catalog/internal/storage/memory"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func makeRecords(prefix string, n int) []catalog.Record {
	out := make([]catalog.Record, n)
	for i := range out {
		out[i] = catalog.Record{
			ID:                  fmt.Sprintf("%s-%d", prefix, i),
			Name:                fmt.Sprintf("%s %d", prefix, i),
			Family:              catalog.FamilyIndependent,
			DesktopEnvironments: []catalog.DesktopEnvironment{},
			Ranking:             catalog.IntPtr(i + 1),
			LastUpdated:         now,
		}
	}
	return out
}

type stubCrawler struct {
	calls   atomic.Int32
	records []catalog.Record
	err     error
}

func (c *stubCrawler) Run(context.Context, int) ([]catalog.Record, error) {
	c.calls.Add(1)
	return catalog.CloneRecords(c.records), c.err
}

func newService(t *testing.T, crawler ingest.Crawler, opts ...ingest.Option) (*ingest.Service, *cache.Store) {
	t.Helper()
	store := cache.New(memory.NewBlobStore(), system.NewFixed(now), time.Hour, zap.NewNop())
	return ingest.New(store, crawler, 10, zap.NewNop(), opts...), store
}

func TestGetOrFetchServesValidCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store := newService(t, &stubCrawler{})
	require.True(t, store.Write(ctx, makeRecords("old", 3)))

	fetch := func(context.Context) ([]catalog.Record, error) {
		t.Fatal("fetch must not run on a cache hit")
		return nil, nil
	}
	got, err := svc.GetOrFetch(ctx, fetch, false)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestGetOrFetchForceRefreshInvalidatesFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store := newService(t, &stubCrawler{})
	require.True(t, store.Write(ctx, makeRecords("old", 10)))

	var sawCache bool
	fetch := func(ctx context.Context) ([]catalog.Record, error) {
		_, sawCache = store.Read(ctx)
		return makeRecords("new", 2), nil
	}

	got, err := svc.GetOrFetch(ctx, fetch, true)
	require.NoError(t, err)
	assert.False(t, sawCache, "the old envelope must be gone before fetching")
	require.Len(t, got, 2)
	assert.Equal(t, "new-0", got[0].ID)

	cached, ok := store.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, got, cached)
}

func TestGetOrFetchDoesNotCacheEmptyOrFailedResults(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store := newService(t, &stubCrawler{})

	got, err := svc.GetOrFetch(ctx, func(context.Context) ([]catalog.Record, error) {
		return nil, nil
	}, false)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	_, ok := store.Info(ctx)
	assert.False(t, ok)

	boom := errors.New("boom")
	_, err = svc.GetOrFetch(ctx, func(context.Context) ([]catalog.Record, error) {
		return nil, boom
	}, false)
	require.ErrorIs(t, err, boom)
	_, ok = store.Info(ctx)
	assert.False(t, ok)
}

func TestGetOrFetchSharesConcurrentMisses(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, &stubCrawler{})
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) ([]catalog.Record, error) {
		calls.Add(1)
		<-release
		return makeRecords("shared", 4), nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([][]catalog.Record, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.GetOrFetch(context.Background(), fetch, false)
		}(i)
	}

	// Let the callers pile up behind the first fetch.
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Len(t, results[i], 4)
	}
}

func TestGetOrFetchReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store := newService(t, &stubCrawler{})
	require.True(t, store.Write(ctx, makeRecords("x", 1)))

	first, err := svc.GetOrFetch(ctx, nil, false)
	require.NoError(t, err)
	first[0].Name = "mutated"
	*first[0].Ranking = 99

	second, err := svc.GetOrFetch(ctx, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "x 0", second[0].Name)
	assert.Equal(t, 1, *second[0].Ranking)
}

func TestFlightContextOutlivesCaller(t *testing.T) {
	t.Parallel()

	svc, store := newService(t, &stubCrawler{}, ingest.WithFlightContext(context.Background()))
	release := make(chan struct{})
	done := make(chan struct{})
	fetch := func(ctx context.Context) ([]catalog.Record, error) {
		defer close(done)
		<-release
		return makeRecords("bg", 2), ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.GetOrFetch(ctx, fetch, false)
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	<-done
	require.Eventually(t, func() bool {
		_, ok := store.Read(context.Background())
		return ok
	}, time.Second, 5*time.Millisecond, "the detached fetch still fills the cache")
}

func TestCatalogUsesCrawler(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	crawler := &stubCrawler{records: makeRecords("crawl", 3)}
	svc, _ := newService(t, crawler)

	got, err := svc.Catalog(ctx, false)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = svc.Catalog(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), crawler.calls.Load(), "second call is served from cache")

	_, err = svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), crawler.calls.Load())
}

func TestCatalogPropagatesCrawlCancellation(t *testing.T) {
	t.Parallel()

	crawler := &stubCrawler{records: makeRecords("partial", 1), err: context.Canceled}
	svc, store := newService(t, crawler)

	_, err := svc.Catalog(context.Background(), false)
	require.ErrorIs(t, err, context.Canceled)
	_, ok := store.Info(context.Background())
	assert.False(t, ok, "a partial crawl is not cached")
}

func TestLookup(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store := newService(t, &stubCrawler{})
	require.True(t, store.Write(ctx, makeRecords("distro", 2)))

	rec, err := svc.Lookup(ctx, "DISTRO-1")
	require.NoError(t, err)
	assert.Equal(t, "distro-1", rec.ID)

	_, err = svc.Lookup(ctx, "missing")
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestCacheInfoAndBackend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store := newService(t, &stubCrawler{})
	assert.Equal(t, "memory", svc.Backend())

	_, ok := svc.CacheInfo(ctx)
	assert.False(t, ok)

	require.True(t, store.Write(ctx, makeRecords("a", 1)))
	info, ok := svc.CacheInfo(ctx)
	require.True(t, ok)
	assert.True(t, info.Valid)
	assert.Equal(t, 1, info.Count)

	assert.True(t, svc.Invalidate(ctx))
	_, ok = svc.CacheInfo(ctx)
	assert.False(t, ok)
}
