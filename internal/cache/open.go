package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog/internal/catalog"
	"github.com/JakeFAU/distro-catalog/internal/config"
	"github.com/JakeFAU/distro-catalog/internal/storage"
	"github.com/JakeFAU/distro-catalog/internal/storage/gcs"
	"github.com/JakeFAU/distro-catalog/internal/storage/local"
	"github.com/JakeFAU/distro-catalog/internal/storage/memory"
	"github.com/JakeFAU/distro-catalog/internal/storage/redis"
)

// Open selects a medium for cfg.Backend and wraps it in a Store.
//
// A distributed backend that cannot be reached within probeTimeout is
// downgraded to the file medium. If the file medium cannot be prepared the
// store uses process memory for the rest of its life.
func Open(ctx context.Context, cfg config.CacheConfig, probeTimeout time.Duration, clock catalog.Clock, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	provider := openProvider(ctx, cfg, probeTimeout, logger)
	return New(provider, clock, cfg.TTL(), logger)
}

func openProvider(ctx context.Context, cfg config.CacheConfig, probeTimeout time.Duration, logger *zap.Logger) storage.Provider {
	switch cfg.Backend {
	case config.BackendRedis:
		p, err := openRedis(ctx, cfg.Redis, probeTimeout)
		if err == nil {
			return p
		}
		logger.Warn("redis cache unavailable, downgrading to file", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	case config.BackendGCS:
		p, err := openGCS(ctx, cfg.GCS, probeTimeout)
		if err == nil {
			return p
		}
		logger.Warn("gcs cache unavailable, downgrading to file", zap.String("bucket", cfg.GCS.Bucket), zap.Error(err))
	}

	fileStore, err := local.New(local.Config{BaseDir: cfg.Dir})
	if err != nil {
		logger.Warn("cache directory unusable, using in-memory cache", zap.String("dir", cfg.Dir), zap.Error(err))
		return memory.NewBlobStore()
	}
	logger.Info("cache directory ready", zap.String("path", fileStore.Path()))
	return fileStore
}

func openRedis(ctx context.Context, cfg config.RedisConfig, timeout time.Duration) (storage.Provider, error) {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return redis.New(probeCtx, redis.Config{
		Address:  cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		Key:      cfg.Key,
	})
}

func openGCS(ctx context.Context, cfg config.GCSConfig, timeout time.Duration) (storage.Provider, error) {
	client, err := gcs.NewClient(ctx, cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	store, err := gcs.New(probeCtx, client, gcs.Config{Bucket: cfg.Bucket, Object: cfg.Object})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return store, nil
}
