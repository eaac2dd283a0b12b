package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/cpi-data-etl/internal/domain"
	"github.com/couchcryptid/cpi-data-etl/internal/observability"
)

// Querier fetches the raw API payload for one batch of series.
type Querier interface {
	Query(ctx context.Context, ids []domain.SeriesID, startYear, endYear string) ([]byte, error)
}

// BatchLoader writes enriched records to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, records []domain.EnrichedRecord) error
}

// Options controls batching, the year range and request pacing.
type Options struct {
	BatchSize int
	StartYear string
	EndYear   string

	// RequestDelay is the pause between successive API calls.
	RequestDelay time.Duration

	// MaxRequests aborts the run before the first call when the plan needs
	// more requests than this. Zero disables the check.
	MaxRequests int

	// Clock drives the pacing delay. Defaults to the real clock.
	Clock clockwork.Clock
}

// Summary describes a finished (or aborted) run.
type Summary struct {
	SeriesIDs    int
	Batches      int
	Skipped      int
	Observations int
	Records      int
}

// Pipeline runs the query-enrich-load loop over the full series cross product.
type Pipeline struct {
	querier Querier
	catalog *domain.Catalog
	loader  BatchLoader
	logger  *slog.Logger
	metrics *observability.Metrics
	opts    Options
	clock   clockwork.Clock
	ready   atomic.Bool
}

// New creates a Pipeline. The catalog is shared read-only for the whole run.
func New(q Querier, catalog *domain.Catalog, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		querier: q,
		catalog: catalog,
		loader:  l,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
		clock:   clock,
	}
}

// CheckReadiness returns nil once at least one batch has been written.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not written any batches yet")
	}
	return nil
}

// Run queries every series in the catalog cross product, one paced batch at a
// time. Rate limiting, request refusals, exhausted transient failures and
// load failures abort the run; a batch whose payload cannot be parsed is
// skipped, and a run where every batch was skipped fails. Rows written before
// an abort stay in the output.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	ids := domain.GenerateSeriesIDs(p.catalog.Geographies, p.catalog.Items)
	planned := domain.BatchCount(len(ids), p.opts.BatchSize)
	summary := Summary{SeriesIDs: len(ids)}

	p.metrics.SeriesIDsGenerated.Set(float64(len(ids)))
	p.metrics.BatchesPlanned.Set(float64(planned))
	p.logger.Info("series ids generated",
		"series_ids", len(ids),
		"geographies", len(p.catalog.Geographies),
		"items", len(p.catalog.Items),
		"batches", planned,
		"start_year", p.opts.StartYear,
		"end_year", p.opts.EndYear,
	)

	if p.opts.MaxRequests > 0 && planned > p.opts.MaxRequests {
		return summary, fmt.Errorf("run needs %d requests, more than the configured maximum of %d", planned, p.opts.MaxRequests)
	}

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	n := 0
	for batch := range domain.Batches(ids, p.opts.BatchSize) {
		if n > 0 && !p.pace(ctx) {
			return summary, fmt.Errorf("run interrupted after %d of %d batches: %w", n, planned, ctx.Err())
		}
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("run interrupted after %d of %d batches: %w", n, planned, err)
		}
		n++
		summary.Batches = n

		if err := p.processBatch(ctx, n, batch, &summary); err != nil {
			p.metrics.Batches.WithLabelValues("failed").Inc()
			return summary, err
		}
	}

	if summary.Batches > 0 && summary.Skipped == summary.Batches {
		return summary, fmt.Errorf("all %d batches were skipped, nothing was written", summary.Batches)
	}

	p.logger.Info("run complete",
		"batches", summary.Batches,
		"skipped", summary.Skipped,
		"observations", summary.Observations,
		"records", summary.Records,
	)
	return summary, nil
}

// processBatch queries, enriches and loads one batch. A nil error with no
// records loaded means the batch was skipped.
func (p *Pipeline) processBatch(ctx context.Context, n int, batch []domain.SeriesID, summary *Summary) error {
	raw, err := p.querier.Query(ctx, batch, p.opts.StartYear, p.opts.EndYear)
	if err != nil {
		return fmt.Errorf("batch %d: %w", n, err)
	}

	observations, err := domain.ParseResponse(raw)
	if err != nil {
		p.skip(n, batch, err, summary)
		return nil
	}
	summary.Observations += len(observations)
	p.metrics.Observations.Add(float64(len(observations)))

	records, stats, err := domain.Enrich(observations, p.catalog)
	if err != nil {
		p.skip(n, batch, err, summary)
		return nil
	}
	p.metrics.UnmatchedJoins.WithLabelValues("area").Add(float64(stats.UnmatchedAreas))
	p.metrics.UnmatchedJoins.WithLabelValues("item").Add(float64(stats.UnmatchedItems))

	if err := p.loader.LoadBatch(ctx, records); err != nil {
		return fmt.Errorf("batch %d: load: %w", n, err)
	}

	summary.Records += len(records)
	p.metrics.RecordsWritten.Add(float64(len(records)))
	p.metrics.Batches.WithLabelValues("loaded").Inc()
	p.ready.Store(true)

	p.logger.Info("batch loaded",
		"batch", n,
		"series", len(batch),
		"records", len(records),
		"unmatched_areas", stats.UnmatchedAreas,
		"unmatched_items", stats.UnmatchedItems,
	)
	return nil
}

func (p *Pipeline) skip(n int, batch []domain.SeriesID, err error, summary *Summary) {
	summary.Skipped++
	p.metrics.Batches.WithLabelValues("skipped").Inc()
	p.logger.Warn("batch skipped",
		"batch", n,
		"first_series", batch[0],
		"series", len(batch),
		"error", err,
	)
}

// pace blocks for the request delay. Returns false if ctx is cancelled first.
func (p *Pipeline) pace(ctx context.Context) bool {
	d := p.opts.RequestDelay
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-p.clock.After(d):
		return true
	}
}
