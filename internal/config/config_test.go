package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/distro-catalog/internal/classify"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, 290, cfg.Crawler.Limit)
	require.Equal(t, 1500*time.Millisecond, cfg.Crawler.Delay())
	require.Equal(t, 30*time.Second, cfg.Crawler.DetailTimeout())
	require.Equal(t, 10*time.Second, cfg.Crawler.AuxTimeout())
	require.Equal(t, BackendFile, cfg.Cache.Backend)
	require.Equal(t, 24*time.Hour, cfg.Cache.TTL())
	require.Equal(t, "data/cache", cfg.Cache.Dir)
	require.Contains(t, cfg.Crawler.DetailURLTemplate, "table.php?distribution=%s")
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
crawler:
  limit: 25
  delay_ms: 200
  user_agent: test-agent
cache:
  backend: Redis
  dir: /tmp/distrocat
  redis:
    addr: redis:6379
    key: test:key
schedule:
  refresh: "0 3 * * *"
classify:
  families:
    - keyword: void
      tag: other
  desktops:
    - keyword: enlightenment
      tag: custom
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 25, cfg.Crawler.Limit)
	require.Equal(t, 200*time.Millisecond, cfg.Crawler.Delay())
	require.Equal(t, "test-agent", cfg.Crawler.UserAgent)
	require.Equal(t, BackendRedis, cfg.Cache.Backend)
	require.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
	require.Equal(t, "test:key", cfg.Cache.Redis.Key)
	require.Equal(t, "0 3 * * *", cfg.Schedule.Refresh)
	require.Len(t, cfg.Classify.Families, 1)
	require.Equal(t, "void", cfg.Classify.Families[0].Keyword)
	require.Equal(t, "custom", cfg.Classify.Desktops[0].Tag)
	require.False(t, cfg.Logging.Development)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"limit", func(c *Config) { c.Crawler.Limit = 0 }, "crawler.limit"},
		{"delay", func(c *Config) { c.Crawler.DelayMillis = -1 }, "crawler.delay_ms"},
		{"timeouts", func(c *Config) { c.Crawler.AuxTimeoutSeconds = 0 }, "timeouts"},
		{"template", func(c *Config) { c.Crawler.DetailURLTemplate = "http://x/" }, "detail_url_template"},
		{"headless", func(c *Config) { c.Headless.Enabled = true; c.Headless.MaxParallel = 0 }, "headless.max_parallel"},
		{"backend", func(c *Config) { c.Cache.Backend = "s3" }, "cache.backend"},
		{"redis addr", func(c *Config) { c.Cache.Backend = BackendRedis; c.Cache.Redis.Addr = "" }, "cache.redis.addr"},
		{"gcs bucket", func(c *Config) { c.Cache.Backend = BackendGCS }, "cache.gcs.bucket"},
		{"ttl", func(c *Config) { c.Cache.TTLSeconds = 0 }, "ttl_seconds"},
		{"schedule", func(c *Config) { c.Schedule.Refresh = " " }, "schedule.refresh"},
		{"classify", func(c *Config) {
			c.Classify.Desktops = append(c.Classify.Desktops, classify.Pair{Keyword: "x", Tag: "beos"})
		}, "classify.desktops"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Classify.Desktops = nil
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), tc.want), "error %q should mention %q", err, tc.want)
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 60*time.Second, cfg.Server.RequestTimeout())
	require.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout())
	require.Equal(t, 30*time.Second, cfg.Headless.NavTimeout())
	require.Zero(t, cfg.Crawler.MaxRPS)
	require.Equal(t, 1, cfg.Crawler.Burst)
}

func TestValidateRejectsNegativeRPS(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Crawler.MaxRPS = -1
	require.ErrorContains(t, cfg.Validate(), "max_rps")
}
