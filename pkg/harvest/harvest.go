// Package harvest runs one FRED harvest: it plans the search pages, fetches
// them in bounded batches through the retrying client, folds the responses
// into the aggregator and streams the resulting items to a sink.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Sternrassler/fred-series-harvester/pkg/aggregate"
	"github.com/Sternrassler/fred-series-harvester/pkg/client"
	"github.com/Sternrassler/fred-series-harvester/pkg/logging"
	"github.com/Sternrassler/fred-series-harvester/pkg/output"
	"github.com/Sternrassler/fred-series-harvester/pkg/pagination"
	"github.com/Sternrassler/fred-series-harvester/pkg/query"
	"github.com/Sternrassler/fred-series-harvester/pkg/sink"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultBatchSize is the number of search pages requested concurrently.
const DefaultBatchSize = 10

// Source is the FRED access a run needs. *client.Client implements it.
type Source interface {
	SearchWithRetry(ctx context.Context, params client.SearchParams) *client.SearchPage
	pagination.ObservationSource
}

// Entitlement carries the caller's billing flags.
type Entitlement struct {
	// IsPaying selects the paid quota tier.
	IsPaying bool

	// PayPerEvent tags every push with sink.EventKindResultItem.
	PayPerEvent bool
}

// EventKind returns the event kind pushes are tagged with.
func (e Entitlement) EventKind() string {
	if e.PayPerEvent {
		return sink.EventKindResultItem
	}
	return ""
}

// Options tunes a Harvester.
type Options struct {
	// BatchSize caps concurrent search calls. Defaults to DefaultBatchSize.
	BatchSize int

	// Observations configures the observation fetcher. Date bounds from the
	// query override the ones set here.
	Observations pagination.Config

	// RunID correlates logs and sink records. Generated when empty.
	RunID string

	// Now stamps output items. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		BatchSize:    DefaultBatchSize,
		Observations: pagination.DefaultConfig(),
	}
}

// Prepared is a validated query with its quota and request plan.
type Prepared struct {
	Query      query.Query
	Quota      query.Quota
	FetchCount int
	Requests   []client.SearchParams
}

// Prepare validates q, resolves the quota for ent and builds the request
// plan. It performs no network calls. Failures are *query.InputError.
func Prepare(q query.Query, ent Entitlement) (Prepared, error) {
	if err := q.Normalize(); err != nil {
		return Prepared{}, err
	}

	quota, err := query.ResolveQuota(q.MaxItems, ent.IsPaying)
	if err != nil {
		return Prepared{}, err
	}

	fetchCount := query.FetchCount(q, quota.Limit)
	return Prepared{
		Query:      q,
		Quota:      quota,
		FetchCount: fetchCount,
		Requests:   query.Plan(q, fetchCount),
	}, nil
}

// Summary describes a finished run.
type Summary struct {
	RunID          string
	Quota          int
	Requests       int
	Processed      int
	Pushed         int
	TotalAvailable int
	Duration       time.Duration
}

// Harvester runs harvests against one source and one sink.
type Harvester struct {
	source Source
	out    sink.Sink
	opts   Options
}

// New creates a harvester.
func New(source Source, out sink.Sink, opts Options) *Harvester {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Harvester{source: source, out: out, opts: opts}
}

// Run executes one harvest. Invalid input and failures of the orchestration
// loop are reported to the sink as a single error record and returned;
// items pushed before a failure stay pushed. Search pages that could not be
// fetched are skipped.
func (h *Harvester) Run(ctx context.Context, q query.Query, ent Entitlement) (summary Summary, err error) {
	runID := h.opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := logging.NewRunLogger("harvest", runID)

	start := time.Now()
	summary.RunID = runID

	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Error collecting data")
			err = fmt.Errorf("harvest: %v", r)
			h.reportError(ctx, logger, err.Error())
		}
		summary.Duration = time.Since(start)
	}()

	if ent.IsPaying {
		logger.Info().Msg("Paid user detected")
	} else {
		logger.Info().Msg("Free user detected")
	}

	prepared, err := Prepare(q, ent)
	if err != nil {
		logger.Error().Err(err).Msg("Invalid input")
		h.reportError(ctx, logger, err.Error())
		return summary, err
	}
	logQuota(logger, q.MaxItems, prepared.Quota, ent.IsPaying)

	summary.Quota = prepared.Quota.Limit
	summary.Requests = len(prepared.Requests)

	logger.Info().
		Str("search_text", prepared.Query.SearchText).
		Str("series_id", prepared.Query.SeriesID).
		Int("max_items", prepared.Quota.Limit).
		Int("fetch_count", prepared.FetchCount).
		Int("requests", len(prepared.Requests)).
		Msg("Starting data collection")

	agg := aggregate.New(aggregate.Config{
		Query:     prepared.Query,
		Quota:     prepared.Quota.Limit,
		EventKind: ent.EventKind(),
		Enricher:  h.enricher(prepared.Query),
		Now:       h.opts.Now,
	}, h.out)

	err = h.collect(ctx, logger, prepared.Requests, agg)

	summary.Processed = agg.Processed()
	summary.Pushed = agg.Pushed()
	summary.TotalAvailable = agg.TotalAvailable()

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		logger.Warn().Err(err).Int("pushed", summary.Pushed).Msg("Data collection cancelled")
		return summary, err
	default:
		logger.Error().Err(err).Msg("Error collecting data")
		h.reportError(ctx, logger, err.Error())
		return summary, err
	}

	logger.Info().
		Int("total_collected", summary.Pushed).
		Int("total_available", summary.TotalAvailable).
		Int("processed", summary.Processed).
		Dur("duration", time.Since(start)).
		Msg("Data collection completed successfully")

	return summary, nil
}

// collect fetches the plan batch by batch and feeds every page to agg in
// request order, stopping as soon as the quota is met.
func (h *Harvester) collect(ctx context.Context, logger zerolog.Logger, requests []client.SearchParams, agg *aggregate.Aggregator) error {
	for i, batch := range pagination.Batches(requests, h.opts.BatchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}

		pages := h.fetchBatch(ctx, batch)

		for _, page := range pages {
			if agg.Done() {
				break
			}
			if err := agg.Consume(ctx, page); err != nil {
				return err
			}
		}

		logger.Debug().
			Int("batch", i).
			Int("pages", len(batch)).
			Int("pushed", agg.Pushed()).
			Msg("Batch processed")

		if agg.Done() {
			return nil
		}
	}
	return ctx.Err()
}

// fetchBatch issues one search call per descriptor concurrently and returns
// the pages in descriptor order; failed pages are nil. A panic in a fetch
// goroutine is re-raised on the calling goroutine.
func (h *Harvester) fetchBatch(ctx context.Context, batch []client.SearchParams) []*client.SearchPage {
	pages := make([]*client.SearchPage, len(batch))
	panics := make([]interface{}, len(batch))

	var wg sync.WaitGroup
	for i, params := range batch {
		wg.Add(1)
		go func(i int, params client.SearchParams) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panics[i] = r
				}
			}()
			pages[i] = h.source.SearchWithRetry(ctx, params)
		}(i, params)
	}
	wg.Wait()

	for _, p := range panics {
		if p != nil {
			panic(p)
		}
	}
	return pages
}

func (h *Harvester) enricher(q query.Query) aggregate.Enricher {
	if !q.IncludeObservations {
		return nil
	}
	cfg := h.opts.Observations
	if q.ObservationStart != "" {
		cfg.ObservationStart = q.ObservationStart
	}
	if q.ObservationEnd != "" {
		cfg.ObservationEnd = q.ObservationEnd
	}
	return pagination.NewObservationFetcher(h.source, cfg)
}

// reportError pushes the run's error record. A failing sink is only logged.
func (h *Harvester) reportError(ctx context.Context, logger zerolog.Logger, message string) {
	if err := h.out.PushError(context.WithoutCancel(ctx), output.ErrorRecord{Error: message}); err != nil {
		logger.Error().Err(err).Msg("Failed to push error record")
	}
}

func logQuota(logger zerolog.Logger, requested *int, quota query.Quota, isPaying bool) {
	switch {
	case quota.Clamped:
		logger.Warn().
			Int("max_items", *requested).
			Int("limit", query.FreeTierLimit).
			Msgf("Free user specified maxItems=%d, which exceeds the free plan limit of %d. Automatically limiting to %d items. Upgrade to a paid plan to process up to 1,000,000 items.",
				*requested, query.FreeTierLimit, query.FreeTierLimit)
	case quota.Defaulted && !isPaying:
		logger.Warn().
			Int("limit", query.FreeTierLimit).
			Msg("Free user did not specify maxItems. Automatically limiting to 100 items. Upgrade to a paid plan to process unlimited items (up to 1,000,000).")
	}
}
