// Package ratelimit caps outbound request rates per host with token buckets.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/distro-catalog/internal/catalog"
	"github.com/JakeFAU/distro-catalog/internal/metrics"
)

// Limiter manages per-host rate limits.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// Config holds rate limiter configuration. A non-positive RPS disables
// limiting.
type Config struct {
	RPS   float64
	Burst int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
	}
}

// Wait blocks until a token is available for the host of rawURL.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	l.mu.Lock()
	limiter, ok := l.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(host, waited)
	}
	return nil
}

// Fetcher applies a Limiter in front of another DocumentFetcher.
type Fetcher struct {
	next    catalog.DocumentFetcher
	limiter *Limiter
}

// Wrap returns next unchanged when limiter is nil.
func Wrap(next catalog.DocumentFetcher, limiter *Limiter) catalog.DocumentFetcher {
	if limiter == nil || limiter.defaultRate == rate.Inf {
		return next
	}
	return &Fetcher{next: next, limiter: limiter}
}

// Fetch waits for a token, then delegates.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (catalog.Document, error) {
	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return catalog.Document{URL: rawURL}, err
	}
	return f.next.Fetch(ctx, rawURL)
}
