package cache_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog/internal/cache"
	"github.com/JakeFAU/distro-catalog/internal/catalog"
	"github.com/JakeFAU/distro-catalog/internal/clock/system"
	"github.com/JakeFAU/distro-catalog/internal/config"
	"github.com/JakeFAU/distro-catalog/internal/storage"
	"github.com/JakeFAU/distro-catalog/internal/storage/memory"
)

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleRecords() []catalog.Record {
	return []catalog.Record{
		{
			ID:                  "cachyos",
			Name:                "CachyOS",
			OSType:              "Linux",
			BasedOn:             "Arch",
			Family:              catalog.FamilyArch,
			DesktopEnvironments: []catalog.DesktopEnvironment{catalog.DesktopKDE, catalog.DesktopGNOME},
			Ranking:             catalog.IntPtr(1),
			Rating:              catalog.FloatPtr(8.7),
			LastUpdated:         epoch,
		},
		{
			ID:                  "mint",
			Name:                "Linux Mint",
			Family:              catalog.FamilyUbuntu,
			DesktopEnvironments: []catalog.DesktopEnvironment{},
			Ranking:             catalog.IntPtr(2),
			LastUpdated:         epoch,
		},
	}
}

func newMemoryStore(clk catalog.Clock, ttl time.Duration) *cache.Store {
	return cache.New(memory.NewBlobStore(), clk, ttl, zap.NewNop())
}

func TestRoundTripPreservesOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemoryStore(system.NewFixed(epoch), 0)

	records := sampleRecords()
	require.True(t, store.Write(ctx, records))

	got, ok := store.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, records, got)
}

func TestWriteCopiesInput(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemoryStore(system.NewFixed(epoch), 0)

	records := sampleRecords()
	require.True(t, store.Write(ctx, records))
	records[0].Name = "mutated"

	got, ok := store.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, "CachyOS", got[0].Name)
}

func TestEmptyRecordSetIsStillAHit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemoryStore(system.NewFixed(epoch), 0)
	require.True(t, store.Write(ctx, nil))

	got, ok := store.Read(ctx)
	require.True(t, ok)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestInvalidateIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemoryStore(system.NewFixed(epoch), 0)

	assert.True(t, store.Invalidate(ctx), "invalidating nothing succeeds")
	require.True(t, store.Write(ctx, sampleRecords()))
	assert.True(t, store.Invalidate(ctx))
	assert.True(t, store.Invalidate(ctx))

	_, ok := store.Read(ctx)
	assert.False(t, ok)
	_, ok = store.Info(ctx)
	assert.False(t, ok)
}

func TestExpiryBoundaryIsExclusive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := system.NewFixed(epoch)
	store := newMemoryStore(clk, time.Hour)
	require.True(t, store.Write(ctx, sampleRecords()))

	clk.Set(epoch.Add(time.Hour - time.Nanosecond))
	_, ok := store.Read(ctx)
	assert.True(t, ok, "one tick before expiry is still valid")

	clk.Set(epoch.Add(time.Hour))
	_, ok = store.Read(ctx)
	assert.False(t, ok, "exactly at expiry is stale")

	info, ok := store.Info(ctx)
	require.True(t, ok)
	assert.False(t, info.Valid)
	assert.Equal(t, epoch.Add(time.Hour), info.Expiry)
}

func TestInfo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemoryStore(system.NewFixed(epoch), 0)

	info, ok := store.Info(ctx)
	assert.False(t, ok)
	assert.Equal(t, "memory", info.Backend)

	require.True(t, store.Write(ctx, sampleRecords()))
	info, ok = store.Info(ctx)
	require.True(t, ok)
	assert.Equal(t, cache.Info{
		Valid:      true,
		Timestamp:  epoch,
		Expiry:     epoch.Add(cache.DefaultTTL),
		Count:      2,
		TTLSeconds: 86400,
		Backend:    "memory",
	}, info)
}

func TestEnvelopeFormat(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	provider := memory.NewBlobStore()
	store := cache.New(provider, system.NewFixed(epoch), 0, zap.NewNop())
	require.True(t, store.Write(ctx, sampleRecords()))

	raw, err := provider.Load(ctx)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.JSONEq(t, `"2024-06-01T12:00:00Z"`, string(doc["timestamp"]))
	assert.JSONEq(t, `86400`, string(doc["ttl_seconds"]))
	assert.JSONEq(t, `2`, string(doc["count"]))
	assert.Contains(t, string(doc["records"]), `"id": "cachyos"`)
}

func TestStoredTTLWins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	provider := memory.NewBlobStore()
	env := cache.Envelope{Timestamp: epoch, TTLSeconds: 60, Count: 0, Records: []catalog.Record{}}
	data, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, provider.Save(ctx, data))

	clk := system.NewFixed(epoch.Add(2 * time.Minute))
	store := cache.New(provider, clk, time.Hour, zap.NewNop())
	_, ok := store.Read(ctx)
	assert.False(t, ok)

	info, ok := store.Info(ctx)
	require.True(t, ok)
	assert.Equal(t, 60, info.TTLSeconds)
}

func TestCorruptEnvelopeIsAMiss(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	provider := memory.NewBlobStore()
	require.NoError(t, provider.Save(ctx, []byte("{not json")))

	store := cache.New(provider, system.NewFixed(epoch), 0, zap.NewNop())
	_, ok := store.Read(ctx)
	assert.False(t, ok)

	require.True(t, store.Write(ctx, sampleRecords()), "a corrupt envelope is overwritten by the next write")
	_, ok = store.Read(ctx)
	assert.True(t, ok)
}

type failingProvider struct {
	err error
}

func (f failingProvider) Name() string { return "broken" }
func (f failingProvider) Load(context.Context) ([]byte, error) { return nil, f.err }
func (f failingProvider) Save(context.Context, []byte) error { return f.err }
func (f failingProvider) Remove(context.Context) error { return f.err }

var _ storage.Provider = failingProvider{}

func TestMediumFaultsAreAbsorbed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := cache.New(failingProvider{err: errors.New("disk on fire")}, system.NewFixed(epoch), 0, zap.NewNop())

	assert.False(t, store.Write(ctx, sampleRecords()))
	assert.False(t, store.Invalidate(ctx))
	_, ok := store.Read(ctx)
	assert.False(t, ok)
	_, ok = store.Info(ctx)
	assert.False(t, ok)
}

func baseConfig(dir string) config.CacheConfig {
	return config.CacheConfig{
		Backend:    config.BackendFile,
		Dir:        dir,
		TTLSeconds: 86400,
	}
}

func TestOpenFileBackend(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data", "cache")

	store := cache.Open(ctx, baseConfig(dir), time.Second, system.NewFixed(epoch), zap.NewNop())
	assert.Equal(t, "file", store.Backend())

	require.True(t, store.Write(ctx, sampleRecords()))
	_, err := os.Stat(filepath.Join(dir, "distros_cache.json"))
	require.NoError(t, err)

	reopened := cache.Open(ctx, baseConfig(dir), time.Second, system.NewFixed(epoch), zap.NewNop())
	got, ok := reopened.Read(ctx)
	require.True(t, ok, "the file medium survives a restart")
	assert.Len(t, got, 2)
}

// The directory is placed beneath a regular file, so preparing it fails even
// when the tests run as root.
func TestOpenFallsBackToMemoryWhenDirectoryUnusable(t *testing.T) {
	ctx := context.Background()
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	store := cache.Open(ctx, baseConfig(filepath.Join(blocker, "cache")), time.Second, system.NewFixed(epoch), zap.NewNop())
	assert.Equal(t, "memory", store.Backend())

	records := sampleRecords()
	require.True(t, store.Write(ctx, records))
	got, ok := store.Read(ctx)
	require.True(t, ok)
	assert.Equal(t, records, got)
	assert.True(t, store.Invalidate(ctx))
	_, ok = store.Read(ctx)
	assert.False(t, ok)
}

func TestOpenRedisBackend(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := baseConfig(t.TempDir())
	cfg.Backend = config.BackendRedis
	cfg.Redis = config.RedisConfig{Addr: mr.Addr(), Key: "test:envelope"}

	store := cache.Open(ctx, cfg, time.Second, system.NewFixed(epoch), zap.NewNop())
	t.Cleanup(func() { _ = store.Close() })
	assert.Equal(t, "redis", store.Backend())

	require.True(t, store.Write(ctx, sampleRecords()))
	assert.True(t, mr.Exists("test:envelope"))
	got, ok := store.Read(ctx)
	require.True(t, ok)
	assert.Len(t, got, 2)
}

func TestOpenDowngradesUnreachableRedisToFile(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := baseConfig(t.TempDir())
	cfg.Backend = config.BackendRedis
	cfg.Redis = config.RedisConfig{Addr: addr}

	store := cache.Open(ctx, cfg, time.Second, system.NewFixed(epoch), zap.NewNop())
	assert.Equal(t, "file", store.Backend())
	assert.True(t, store.Write(ctx, sampleRecords()))
}

func TestOpenDowngradesUnreachableGCSToFile(t *testing.T) {
	ctx := context.Background()

	cfg := baseConfig(t.TempDir())
	cfg.Backend = config.BackendGCS
	cfg.GCS = config.GCSConfig{Bucket: "missing", Endpoint: "http://127.0.0.1:1"}

	store := cache.Open(ctx, cfg, 2*time.Second, system.NewFixed(epoch), zap.NewNop())
	assert.Equal(t, "file", store.Backend())
}
