package headless

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog/internal/catalog"
)

// Detector decides whether a fast-path document needs rendering.
type Detector interface {
	ShouldPromote(doc catalog.Document) bool
}

// Promoting fetches through a fast fetcher first and retries through a
// rendering fetcher only when the detector flags the result.
type Promoting struct {
	fast     catalog.DocumentFetcher
	render   catalog.DocumentFetcher
	detector Detector
	logger   *zap.Logger
}

// NewPromoting wires a Promoting fetcher.
func NewPromoting(fast, render catalog.DocumentFetcher, detector Detector, logger *zap.Logger) *Promoting {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Promoting{fast: fast, render: render, detector: detector, logger: logger}
}

// Fetch implements catalog.DocumentFetcher. A render failure falls back to
// the fast result.
func (p *Promoting) Fetch(ctx context.Context, url string) (catalog.Document, error) {
	doc, err := p.fast.Fetch(ctx, url)
	if err != nil {
		return doc, err
	}
	if !p.detector.ShouldPromote(doc) {
		return doc, nil
	}
	p.logger.Debug("promoting fetch to headless", zap.String("url", url))
	rendered, rerr := p.render.Fetch(ctx, url)
	if rerr != nil {
		p.logger.Warn("headless fetch failed, keeping fast result", zap.String("url", url), zap.Error(rerr))
		return doc, nil
	}
	return rendered, nil
}
