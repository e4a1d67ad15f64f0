// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/distro-catalog/internal/classify"
)

// Cache backend names accepted by cache.backend.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendGCS   = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Classify ClassifyConfig `mapstructure:"classify"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// CrawlerConfig governs the ranking and detail crawl.
type CrawlerConfig struct {
	RankingURL           string  `mapstructure:"ranking_url"`
	DetailURLTemplate    string  `mapstructure:"detail_url_template"`
	LogoURLTemplate      string  `mapstructure:"logo_url_template"`
	UserAgent            string  `mapstructure:"user_agent"`
	RespectRobots        bool    `mapstructure:"respect_robots"`
	Limit                int     `mapstructure:"limit"`
	DelayMillis          int     `mapstructure:"delay_ms"`
	DetailTimeoutSeconds int     `mapstructure:"detail_timeout_seconds"`
	AuxTimeoutSeconds    int     `mapstructure:"aux_timeout_seconds"`
	MaxRPS               float64 `mapstructure:"max_rps"`
	Burst                int     `mapstructure:"burst"`
}

// HeadlessConfig configures the optional headless detail fetcher.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// CacheConfig selects and configures the cache medium.
type CacheConfig struct {
	Backend    string      `mapstructure:"backend"`
	Dir        string      `mapstructure:"dir"`
	TTLSeconds int         `mapstructure:"ttl_seconds"`
	Redis      RedisConfig `mapstructure:"redis"`
	GCS        GCSConfig   `mapstructure:"gcs"`
}

// RedisConfig holds connection settings for the redis medium.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// GCSConfig identifies the object used by the gcs medium.
type GCSConfig struct {
	Bucket   string `mapstructure:"bucket"`
	Object   string `mapstructure:"object"`
	Endpoint string `mapstructure:"endpoint"`
}

// ScheduleConfig controls background cache warm-ups in serve mode.
type ScheduleConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Refresh     string `mapstructure:"refresh"`
	WarmOnStart bool   `mapstructure:"warm_on_start"`
}

// ClassifyConfig optionally replaces the built-in keyword tables.
type ClassifyConfig struct {
	Families []classify.Pair `mapstructure:"families"`
	Desktops []classify.Pair `mapstructure:"desktops"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. With an empty path it looks for
// distrocat.yaml in the working directory, /etc/distrocat and $HOME/.distrocat.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DISTROCAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("distrocat")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/distrocat/")
		v.AddConfigPath("$HOME/.distrocat")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("crawler.ranking_url", "http://distrowatch.com/dwres.php?resource=popularity")
	v.SetDefault("crawler.detail_url_template", "http://distrowatch.com/table.php?distribution=%s")
	v.SetDefault("crawler.logo_url_template", "https://distrowatch.com/images/yvzhuwbpy/%s.png")
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("crawler.respect_robots", false)
	v.SetDefault("crawler.limit", 290)
	v.SetDefault("crawler.delay_ms", 1500)
	v.SetDefault("crawler.detail_timeout_seconds", 30)
	v.SetDefault("crawler.aux_timeout_seconds", 10)
	v.SetDefault("crawler.max_rps", 0)
	v.SetDefault("crawler.burst", 1)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("cache.backend", BackendFile)
	v.SetDefault("cache.dir", "data/cache")
	v.SetDefault("cache.ttl_seconds", 86400)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.key", "distrocat:catalog:envelope")
	v.SetDefault("cache.gcs.object", "distros_cache.json")
	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.refresh", "@every 1h")
	v.SetDefault("schedule.warm_on_start", true)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Crawler.Limit <= 0 {
		return fmt.Errorf("crawler.limit must be > 0")
	}
	if c.Crawler.DelayMillis < 0 {
		return fmt.Errorf("crawler.delay_ms must be >= 0")
	}
	if c.Crawler.MaxRPS < 0 {
		return fmt.Errorf("crawler.max_rps must be >= 0")
	}
	if c.Crawler.DetailTimeoutSeconds <= 0 || c.Crawler.AuxTimeoutSeconds <= 0 {
		return fmt.Errorf("crawler timeouts must be > 0")
	}
	if !strings.Contains(c.Crawler.DetailURLTemplate, "%s") {
		return fmt.Errorf("crawler.detail_url_template must contain %%s")
	}
	if c.Crawler.LogoURLTemplate != "" && !strings.Contains(c.Crawler.LogoURLTemplate, "%s") {
		return fmt.Errorf("crawler.logo_url_template must contain %%s")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if err := c.Cache.validate(); err != nil {
		return err
	}
	if c.Schedule.Enabled && strings.TrimSpace(c.Schedule.Refresh) == "" {
		return fmt.Errorf("schedule.refresh must be set when the schedule is enabled")
	}
	if _, err := classify.FamilyTable(c.Classify.Families); err != nil {
		return fmt.Errorf("classify.families: %w", err)
	}
	if _, err := classify.DesktopTable(c.Classify.Desktops); err != nil {
		return fmt.Errorf("classify.desktops: %w", err)
	}
	return nil
}

func (c CacheConfig) validate() error {
	switch c.Backend {
	case BackendFile, "":
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr must be set for the redis backend")
		}
	case BackendGCS:
		if c.GCS.Bucket == "" {
			return fmt.Errorf("cache.gcs.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("cache.backend %q is not one of file, redis, gcs", c.Backend)
	}
	if strings.TrimSpace(c.Dir) == "" {
		return fmt.Errorf("cache.dir must be set")
	}
	if c.TTLSeconds <= 0 {
		return fmt.Errorf("cache.ttl_seconds must be > 0")
	}
	return nil
}

// Delay is the pause between successive detail fetches.
func (c CrawlerConfig) Delay() time.Duration {
	return time.Duration(c.DelayMillis) * time.Millisecond
}

// DetailTimeout bounds a single detail or ranking fetch.
func (c CrawlerConfig) DetailTimeout() time.Duration {
	return time.Duration(c.DetailTimeoutSeconds) * time.Second
}

// AuxTimeout bounds auxiliary lookups such as cache backend probes.
func (c CrawlerConfig) AuxTimeout() time.Duration {
	return time.Duration(c.AuxTimeoutSeconds) * time.Second
}

// TTL is the cache envelope lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// NavTimeout bounds a single headless navigation.
func (c HeadlessConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// RequestTimeout bounds a single API request.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful HTTP shutdown.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}
