// Package collyfetcher implements catalog.DocumentFetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/distro-catalog/internal/catalog"
)

// DefaultTimeout bounds a detail-page fetch.
const DefaultTimeout = 30 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	Headers       http.Header
}

// Fetcher implements catalog.DocumentFetcher using the Colly collector.
// The request timeout is fixed per Fetcher; build one per timeout class.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Fetch executes a single HTTP GET. Any failure, including a non-2xx status,
// wraps catalog.ErrSourceUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, url string) (catalog.Document, error) {
	var (
		result   catalog.Document
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	f.configureCollectorHooks(collector, time.Now(), &result, &fetchErr)

	if err := f.runCollector(ctx, collector, url, &fetchErr); err != nil {
		return catalog.Document{}, fmt.Errorf("%w: %s: %w", catalog.ErrSourceUnavailable, url, err)
	}
	return result, nil
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *catalog.Document,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		for key, values := range f.cfg.Headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = catalog.Document{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
