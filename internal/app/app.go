// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog/internal/api"
	"github.com/JakeFAU/distro-catalog/internal/cache"
	"github.com/JakeFAU/distro-catalog/internal/catalog"
	"github.com/JakeFAU/distro-catalog/internal/classify"
	"github.com/JakeFAU/distro-catalog/internal/clock/system"
	"github.com/JakeFAU/distro-catalog/internal/config"
	"github.com/JakeFAU/distro-catalog/internal/crawl"
	collyfetcher "github.com/JakeFAU/distro-catalog/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/distro-catalog/internal/fetcher/headless"
	"github.com/JakeFAU/distro-catalog/internal/headless/detector"
	"github.com/JakeFAU/distro-catalog/internal/id/uuid"
	"github.com/JakeFAU/distro-catalog/internal/ingest"
	"github.com/JakeFAU/distro-catalog/internal/parser"
	"github.com/JakeFAU/distro-catalog/internal/policy/ratelimit"
	"github.com/JakeFAU/distro-catalog/internal/ranking"
)

// App holds the shared services built from one Config. It is created once
// at startup and closed on exit.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	store        *cache.Store
	orchestrator *crawl.Orchestrator
	service      *ingest.Service
	closers      []func()
}

// New builds every service. ctx bounds backend probes and scopes shared
// crawls, so it should live as long as the process.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	classifier, err := buildClassifier(cfg.Classify)
	if err != nil {
		return nil, err
	}

	limiter := ratelimit.New(ratelimit.Config{RPS: cfg.Crawler.MaxRPS, Burst: cfg.Crawler.Burst})
	pageFetcher := ratelimit.Wrap(collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Crawler.UserAgent,
		RespectRobots: cfg.Crawler.RespectRobots,
		Timeout:       cfg.Crawler.DetailTimeout(),
	}), limiter)
	detailFetcher := pageFetcher
	headless := false
	if cfg.Headless.Enabled {
		hf, herr := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Crawler.UserAgent,
			NavigationTimeout: cfg.Headless.NavTimeout(),
		})
		if herr != nil {
			logger.Warn("headless fetcher init failed, using plain HTTP for detail pages", zap.Error(herr))
		} else {
			detailFetcher = headlessfetcher.NewPromoting(
				pageFetcher, ratelimit.Wrap(hf, limiter), detector.NewHeuristic(0, nil), logger.Named("promote"))
			headless = true
			a.closers = append(a.closers, hf.Close)
		}
	}

	clock := system.New()
	a.orchestrator = crawl.New(
		crawl.Config{
			DetailURLTemplate: cfg.Crawler.DetailURLTemplate,
			LogoURLTemplate:   cfg.Crawler.LogoURLTemplate,
			Delay:             cfg.Crawler.Delay(),
			DetailTimeout:     cfg.Crawler.DetailTimeout(),
		},
		ranking.New(cfg.Crawler.RankingURL, pageFetcher, logger.Named("ranking")),
		detailFetcher,
		parser.New(classifier, logger.Named("parser")),
		clock,
		uuid.New(),
		logger.Named("crawl"),
	)

	a.store = cache.Open(ctx, cfg.Cache, cfg.Crawler.AuxTimeout(), clock, logger.Named("cache"))
	a.closers = append(a.closers, func() {
		if err := a.store.Close(); err != nil {
			logger.Warn("cache close failed", zap.Error(err))
		}
	})

	a.service = ingest.New(a.store, a.orchestrator, cfg.Crawler.Limit, logger.Named("ingest"), ingest.WithFlightContext(ctx))
	logger.Info("application services initialized",
		zap.String("cache_backend", a.store.Backend()),
		zap.Bool("headless", headless),
		zap.Int("crawl_limit", cfg.Crawler.Limit),
	)
	return a, nil
}

func buildClassifier(cfg config.ClassifyConfig) (*classify.Classifier, error) {
	families, err := classify.FamilyTable(cfg.Families)
	if err != nil {
		return nil, fmt.Errorf("classify.families: %w", err)
	}
	desktops, err := classify.DesktopTable(cfg.Desktops)
	if err != nil {
		return nil, fmt.Errorf("classify.desktops: %w", err)
	}
	return classify.New(families, desktops), nil
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Service returns the catalog facade.
func (a *App) Service() *ingest.Service { return a.service }

// Catalog returns the facade behind the narrow interface the HTTP layer uses.
func (a *App) Catalog() api.CatalogService { return a.service }

// Crawl runs a crawl with an explicit limit through the facade, so the result
// is cached like any other.
func (a *App) Crawl(ctx context.Context, limit int, force bool) ([]catalog.Record, error) {
	if limit <= 0 {
		limit = a.cfg.Crawler.Limit
	}
	fetch := func(ctx context.Context) ([]catalog.Record, error) {
		return a.orchestrator.Run(ctx, limit)
	}
	return a.service.GetOrFetch(ctx, fetch, force)
}

// Close releases resources in reverse creation order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
