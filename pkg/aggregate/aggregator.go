// Package aggregate merges paged search results into the ordered, quota
// bounded output stream.
package aggregate

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Sternrassler/fred-series-harvester/pkg/client"
	"github.com/Sternrassler/fred-series-harvester/pkg/output"
	"github.com/Sternrassler/fred-series-harvester/pkg/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for aggregation.
var (
	fredSeriesDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fred_series_deduplicated_total",
		Help: "Series dropped because an earlier page already returned them",
	})

	fredSeriesFiltered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fred_series_filtered_total",
		Help: "Series dropped by client-side multi-filter matching",
	})

	fredItemsPushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fred_items_pushed_total",
		Help: "Output items handed to the sink",
	})
)

// Enricher attaches observation histories to series ids.
type Enricher interface {
	FetchAll(ctx context.Context, ids []string) map[string][]client.Observation
}

// Pusher receives every slice of output items as soon as it is final.
type Pusher interface {
	PushItems(ctx context.Context, items []output.Item, eventKind string) error
}

// Config holds aggregator configuration
type Config struct {
	// Query supplies filters and the sort field/direction.
	Query query.Query

	// Quota is the maximum number of items pushed.
	Quota int

	// EventKind tags every push; empty for flat-rate billing.
	EventKind string

	// Enricher is nil when observations are not requested.
	Enricher Enricher

	// Now stamps mapped items. Defaults to time.Now.
	Now func() time.Time
}

// State is the running state of one aggregation.
type State struct {
	Seen           map[string]struct{}
	Items          []output.Item
	Processed      int
	Pushed         int
	TotalAvailable int
	totalCaptured  bool
}

// Aggregator consumes search pages in order. It is not safe for concurrent
// use; the orchestrator feeds it from one goroutine.
type Aggregator struct {
	config Config
	pusher Pusher
	sorter *sorter
	state  State
	logger zerolog.Logger
}

// New creates an aggregator pushing to pusher.
func New(cfg Config, pusher Pusher) *Aggregator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Aggregator{
		config: cfg,
		pusher: pusher,
		sorter: newSorter(cfg.Query.SortField(), cfg.Query.SortDirection()),
		state:  State{Seen: make(map[string]struct{})},
		logger: log.With().Str("component", "aggregator").Logger(),
	}
}

// Consume folds one page into the state and pushes newly final items.
// A nil or empty page is ignored. Only push failures are returned.
func (a *Aggregator) Consume(ctx context.Context, page *client.SearchPage) error {
	if a.Done() || page == nil || len(page.Series) == 0 {
		return nil
	}

	if !a.state.totalCaptured {
		a.state.TotalAvailable = page.Count
		a.state.totalCaptured = true
	}

	batch := a.dedup(page.Series)
	a.state.Processed += len(page.Series)

	if a.config.Query.NeedsClientFilter() {
		batch = a.filter(batch)
		a.sorter.sortSeries(batch)
	}

	var observations map[string][]client.Observation
	if a.config.Enricher != nil && len(batch) > 0 {
		ids := make([]string, len(batch))
		for i, s := range batch {
			ids[i] = s.ID
		}
		observations = a.config.Enricher.FetchAll(ctx, ids)
	}

	a.state.Items = append(a.state.Items, output.MapSeriesBatch(batch, observations, a.config.Now())...)
	// pushed items are final; only the tail is reordered
	a.sorter.sortItems(a.state.Items[a.state.Pushed:])

	pending := a.state.Items[a.state.Pushed:]
	if remaining := a.config.Quota - a.state.Pushed; len(pending) > remaining {
		pending = pending[:remaining]
	}
	pending = slices.Clone(pending)

	a.logger.Debug().
		Int("offset", page.Offset).
		Int("received", len(page.Series)).
		Int("kept", len(batch)).
		Int("pushing", len(pending)).
		Msg("Page aggregated")

	if len(pending) == 0 {
		return nil
	}

	if err := a.pusher.PushItems(ctx, pending, a.config.EventKind); err != nil {
		return fmt.Errorf("push %d items: %w", len(pending), err)
	}
	a.state.Pushed += len(pending)
	fredItemsPushed.Add(float64(len(pending)))

	return nil
}

// dedup drops series already seen and records the new ones.
func (a *Aggregator) dedup(series []client.Series) []client.Series {
	unique := make([]client.Series, 0, len(series))
	for _, s := range series {
		if _, seen := a.state.Seen[s.ID]; seen {
			fredSeriesDeduplicated.Inc()
			continue
		}
		a.state.Seen[s.ID] = struct{}{}
		unique = append(unique, s)
	}
	return unique
}

// filter keeps series matching every active filter.
func (a *Aggregator) filter(series []client.Series) []client.Series {
	kept := series[:0]
	for _, s := range series {
		if a.config.Query.Matches(s) {
			kept = append(kept, s)
			continue
		}
		fredSeriesFiltered.Inc()
	}
	return kept
}

// Done reports whether the quota has been reached.
func (a *Aggregator) Done() bool {
	return a.state.Pushed >= a.config.Quota
}

// Pushed returns the number of items handed to the pusher.
func (a *Aggregator) Pushed() int {
	return a.state.Pushed
}

// Processed returns the number of raw series received.
func (a *Aggregator) Processed() int {
	return a.state.Processed
}

// TotalAvailable returns the match count FRED reported on the first non-empty page.
func (a *Aggregator) TotalAvailable() int {
	return a.state.TotalAvailable
}
