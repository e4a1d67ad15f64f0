package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/JakeFAU/distro-catalog/internal/catalog"
	"github.com/JakeFAU/distro-catalog/internal/metrics"
	"github.com/JakeFAU/distro-catalog/internal/parser"
)

// Defaults applied by New when the corresponding Config field is unset.
const (
	DefaultDelay             = 1500 * time.Millisecond
	DefaultDetailTimeout     = 30 * time.Second
	DefaultDetailURLTemplate = "http://distrowatch.com/table.php?distribution=%s"
)

// Config holds the settings for a crawl run. It is decoupled from Viper.
type Config struct {
	DetailURLTemplate string
	// LogoURLTemplate may be empty, in which case records carry no logo.
	LogoURLTemplate string
	Delay           time.Duration
	DetailTimeout   time.Duration
}

// RankingSource lists candidates in rank order. It reports failure as an
// empty slice.
type RankingSource interface {
	Fetch(ctx context.Context, limit int) []catalog.Candidate
}

// DetailParser extracts fields from a detail page body.
type DetailParser interface {
	Parse(body []byte) (parser.Fields, error)
}

// Orchestrator runs crawls. It holds no per-run state and may be reused, but
// runs are expected to be serialized by the caller.
type Orchestrator struct {
	cfg     Config
	ranking RankingSource
	details catalog.DocumentFetcher
	parser  DetailParser
	clock   catalog.Clock
	ids     catalog.IDGenerator
	pauser  pauseController
	logger  *zap.Logger
}

// New wires an Orchestrator.
func New(
	cfg Config,
	ranking RankingSource,
	details catalog.DocumentFetcher,
	detailParser DetailParser,
	clock catalog.Clock,
	ids catalog.IDGenerator,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.DetailURLTemplate == "" {
		cfg.DetailURLTemplate = DefaultDetailURLTemplate
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.DetailTimeout <= 0 {
		cfg.DetailTimeout = DefaultDetailTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:     cfg,
		ranking: ranking,
		details: details,
		parser:  detailParser,
		clock:   clock,
		ids:     ids,
		pauser:  &timerPauseController{},
		logger:  logger,
	}
}

// step is the typed result of processing one candidate.
type step struct {
	outcome catalog.Outcome
	record  catalog.Record
	err     error
}

// Run crawls up to limit candidates. Per-candidate failures never fail the
// run. If ctx is canceled the records gathered so far are returned together
// with the context error.
func (o *Orchestrator) Run(ctx context.Context, limit int) ([]catalog.Record, error) {
	start := time.Now()
	runID, err := o.ids.NewID()
	if err != nil {
		runID = "unknown"
	}
	logger := o.logger.With(zap.String("run_id", runID))

	rankCtx, cancel := context.WithTimeout(ctx, o.cfg.DetailTimeout)
	candidates := uniqueCandidates(o.ranking.Fetch(rankCtx, limit))
	cancel()

	total := len(candidates)
	logger.Info("crawl started", zap.Int("candidates", total), zap.Int("limit", limit))

	records := make([]catalog.Record, 0, total)
	var faults int
	for i, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return o.finish(logger, records, total, faults, start, err)
		}

		res := o.process(ctx, cand)
		metrics.ObserveCandidate(string(res.outcome))
		switch res.outcome {
		case catalog.OutcomeOK:
			records = append(records, res.record)
			logger.Debug("candidate added",
				zap.Int("position", i+1),
				zap.Int("total", total),
				zap.String("id", cand.ID),
				zap.String("name", res.record.Name),
			)
		case catalog.OutcomeEmpty:
			logger.Warn("candidate skipped: no data", zap.String("id", cand.ID), zap.Error(res.err))
		case catalog.OutcomeFault:
			faults++
			logger.Warn("candidate skipped: fault", zap.String("id", cand.ID), zap.Error(res.err))
		}

		if i < total-1 {
			o.pauser.Pause(ctx, o.cfg.Delay)
			metrics.ObservePause(o.cfg.Delay)
		}
	}
	return o.finish(logger, records, total, faults, start, ctx.Err())
}

// uniqueCandidates keeps the first candidate for each identifier.
func uniqueCandidates(in []catalog.Candidate) []catalog.Candidate {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, c := range in {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

func (o *Orchestrator) finish(logger *zap.Logger, records []catalog.Record, total, faults int, start time.Time, err error) ([]catalog.Record, error) {
	elapsed := time.Since(start)
	status := "ok"
	switch {
	case err != nil:
		status = "canceled"
	case len(records) == 0:
		status = "empty"
	case len(records) < total:
		status = "partial"
	}
	metrics.ObserveCrawlRun(status, len(records), elapsed)

	fields := []zap.Field{
		zap.String("status", status),
		zap.Int("records", len(records)),
		zap.Int("candidates", total),
		zap.Int("faults", faults),
		zap.Duration("elapsed", elapsed),
	}
	if err != nil {
		logger.Warn("crawl interrupted", append(fields, zap.Error(err))...)
		return records, err
	}
	logger.Info("crawl finished", fields...)
	return records, nil
}

// process fetches and parses one candidate. A panic anywhere in the pipeline
// becomes a fault for this candidate alone.
func (o *Orchestrator) process(ctx context.Context, cand catalog.Candidate) (res step) {
	defer func() {
		if r := recover(); r != nil {
			res = step{outcome: catalog.OutcomeFault, err: fmt.Errorf("panic processing %q: %v", cand.ID, r)}
		}
	}()

	if strings.TrimSpace(cand.ID) == "" {
		return step{outcome: catalog.OutcomeEmpty, err: errors.New("candidate has no identifier")}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.DetailTimeout)
	defer cancel()

	doc, err := o.details.Fetch(fetchCtx, o.DetailURL(cand.ID))
	if err != nil {
		return step{outcome: catalog.OutcomeFault, err: err}
	}

	fields, err := o.parser.Parse(doc.Body)
	switch {
	case errors.Is(err, parser.ErrNoMetadataBlock):
		return step{outcome: catalog.OutcomeEmpty, err: err}
	case err != nil:
		return step{outcome: catalog.OutcomeFault, err: err}
	}

	return step{outcome: catalog.OutcomeOK, record: o.buildRecord(cand, fields)}
}

func (o *Orchestrator) buildRecord(cand catalog.Candidate, f parser.Fields) catalog.Record {
	rec := catalog.Record{
		ID:                  cand.ID,
		Name:                o.displayName(cand, f),
		Description:         f.Description,
		OSType:              f.OSType,
		BasedOn:             f.BasedOn,
		Family:              f.Family,
		Origin:              f.Origin,
		Architecture:        f.Architecture,
		Desktop:             f.Desktop,
		DesktopEnvironments: f.DesktopEnvironments,
		Category:            f.Category,
		Status:              f.Status,
		Ranking:             f.Ranking,
		Rating:              f.Rating,
		Homepage:            f.Homepage,
		Logo:                o.LogoURL(cand.ID),
		LastUpdated:         o.clock.Now().UTC(),
	}
	if rec.Family == "" {
		rec.Family = catalog.FamilyIndependent
	}
	if rec.DesktopEnvironments == nil {
		rec.DesktopEnvironments = []catalog.DesktopEnvironment{}
	}
	if rec.Ranking == nil && cand.Rank > 0 {
		rec.Ranking = catalog.IntPtr(cand.Rank)
	}
	return rec
}

func (o *Orchestrator) displayName(cand catalog.Candidate, f parser.Fields) string {
	if name := strings.TrimSpace(f.Name); name != "" {
		return name
	}
	if name := strings.TrimSpace(cand.Name); name != "" {
		return name
	}
	return cases.Title(language.Und).String(cand.ID)
}

// DetailURL is the detail page address for id.
func (o *Orchestrator) DetailURL(id string) string {
	return fmt.Sprintf(o.cfg.DetailURLTemplate, url.QueryEscape(id))
}

// LogoURL is the logo address for id, or "" when no template is configured.
func (o *Orchestrator) LogoURL(id string) string {
	if o.cfg.LogoURLTemplate == "" {
		return ""
	}
	return fmt.Sprintf(o.cfg.LogoURLTemplate, url.PathEscape(id))
}
