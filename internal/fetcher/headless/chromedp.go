// Package headless renders detail pages in headless Chrome for sources that
// only assemble their markup client-side.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/distro-catalog/internal/catalog"
)

const defaultNavigationTimeout = 30 * time.Second

// Config controls the behavior of the headless fetcher.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
}

// Fetcher implements catalog.DocumentFetcher using chromedp.
type Fetcher struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a headless fetcher backed by chromedp.
func NewChromedp(cfg Config) (*Fetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context.
func (f *Fetcher) Close() {
	f.allocCancel()
}

// Fetch navigates to url and returns the rendered DOM.
func (f *Fetcher) Fetch(ctx context.Context, url string) (catalog.Document, error) {
	if err := f.acquire(ctx); err != nil {
		return catalog.Document{}, fmt.Errorf("%w: %w", catalog.ErrSourceUnavailable, err)
	}
	defer f.release()

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.navTimeout())
	defer cancel()

	// Abandon the browser task when the caller gives up.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	meta := &responseMeta{}
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	start := time.Now()
	html, finalURL, err := f.runHeadless(taskCtx, url)
	if err != nil {
		return catalog.Document{}, fmt.Errorf("%w: %s: %w", catalog.ErrSourceUnavailable, url, err)
	}

	status, responseURL := meta.snapshotWithFallbacks(url, finalURL)
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return catalog.Document{}, fmt.Errorf("%w: %s: status %d", catalog.ErrSourceUnavailable, url, status)
	}
	return catalog.Document{
		URL:        responseURL,
		StatusCode: status,
		Body:       []byte(html),
		Duration:   time.Since(start),
	}, nil
}

func (f *Fetcher) runHeadless(ctx context.Context, url string) (string, string, error) {
	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		f.networkSetupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, finalURL, nil
}

func (f *Fetcher) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (f *Fetcher) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}

func (f *Fetcher) navTimeout() time.Duration {
	if f.cfg.NavigationTimeout > 0 {
		return f.cfg.NavigationTimeout
	}
	return defaultNavigationTimeout
}

// responseMeta records the status of the main document response.
type responseMeta struct {
	mu     sync.RWMutex
	status int
	url    string
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.url = event.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, string) {
	m.mu.RLock()
	status, url := m.status, m.url
	m.mu.RUnlock()
	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, url
}
