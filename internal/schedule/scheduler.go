// Package schedule keeps the catalog cache warm by re-reading it on a cron
// schedule. A read that finds the cache stale triggers a crawl, so a running
// server refreshes itself without waiting for a client request.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog/internal/catalog"
)

// DefaultSpec is the refresh schedule used when none is configured.
const DefaultSpec = "@every 1h"

// Warmer produces the catalog, crawling when the cache is not valid.
type Warmer interface {
	Catalog(ctx context.Context, forceRefresh bool) ([]catalog.Record, error)
}

// Config controls the scheduler.
type Config struct {
	// Spec is a five-field cron expression or a descriptor such as
	// "@hourly" or "@every 30m".
	Spec string
	// WarmOnStart runs one warm-up as soon as Start is called.
	WarmOnStart bool
}

// Scheduler runs warm-ups. Overlapping runs are skipped.
type Scheduler struct {
	cfg      Config
	warmer   Warmer
	logger   *zap.Logger
	cron     *cron.Cron
	schedule cron.Schedule
	job      cron.Job

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New validates the schedule and builds a Scheduler. Nothing runs until Start.
func New(cfg Config, warmer Warmer, logger *zap.Logger) (*Scheduler, error) {
	if warmer == nil {
		return nil, errors.New("warmer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Spec) == "" {
		cfg.Spec = DefaultSpec
	}
	sched, err := parser.Parse(cfg.Spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", cfg.Spec, err)
	}

	cl := cronLogger{logger: logger.Sugar()}
	s := &Scheduler{
		cfg:      cfg,
		warmer:   warmer,
		logger:   logger,
		cron:     cron.New(cron.WithParser(parser), cron.WithLogger(cl)),
		schedule: sched,
		ctx:      context.Background(),
	}
	s.job = cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(s.warm))
	s.cron.Schedule(sched, s.job)
	return s, nil
}

// Start begins scheduling. Warm-ups run under a context derived from ctx and
// canceled by Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("catalog refresh scheduled",
		zap.String("schedule", s.cfg.Spec),
		zap.Time("next_run", s.Next(time.Now())),
	)
	if s.cfg.WarmOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.job.Run()
		}()
	}
}

// Stop cancels any running warm-up and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("catalog refresh scheduler stopped")
}

// Next reports the first scheduled run after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Scheduler) warm() {
	ctx := s.runContext()
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	records, err := s.warmer.Catalog(ctx, false)
	if err != nil {
		s.logger.Error("scheduled catalog refresh failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled catalog refresh finished",
		zap.Int("records", len(records)),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
