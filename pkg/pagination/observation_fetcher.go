package pagination

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Sternrassler/fred-series-harvester/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var fredObservationFetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fred_observation_fetch_failures_total",
	Help: "Series whose observation fetch failed, by reason",
}, []string{"reason"})

// Config holds observation fetcher configuration
type Config struct {
	// MaxConcurrency is the number of series fetched in parallel.
	MaxConcurrency int

	// PageSize is the observation limit per request.
	PageSize int

	// ObservationStart and ObservationEnd bound the dates (YYYY-MM-DD, optional).
	ObservationStart string
	ObservationEnd   string
}

// DefaultConfig returns the FRED defaults: 5 series in flight, 1000
// observations per page.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 5,
		PageSize:       client.MaxPageSize,
	}
}

// ObservationSource is the FRED client method the fetcher needs.
type ObservationSource interface {
	SeriesObservations(ctx context.Context, seriesID string, params client.ObservationParams) (*client.ObservationsPage, error)
}

// seriesResult is the outcome of fetching one series.
type seriesResult struct {
	SeriesID     string
	Observations []client.Observation
	Pages        int
	Error        error
}

// ObservationFetcher retrieves complete observation histories for series.
type ObservationFetcher struct {
	source ObservationSource
	config Config
	logger zerolog.Logger
}

// NewObservationFetcher creates a new observation fetcher
func NewObservationFetcher(source ObservationSource, config Config) *ObservationFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 5
	}
	if config.PageSize <= 0 || config.PageSize > client.MaxPageSize {
		config.PageSize = client.MaxPageSize
	}

	return &ObservationFetcher{
		source: source,
		config: config,
		logger: log.With().Str("component", "observation-fetcher").Logger(),
	}
}

// FetchAll fetches every observation of each id. Series that failed or
// returned no rows are absent from the result.
func (f *ObservationFetcher) FetchAll(ctx context.Context, ids []string) map[string][]client.Observation {
	observations := make(map[string][]client.Observation, len(ids))
	if len(ids) == 0 {
		return observations
	}

	start := time.Now()

	idQueue := make(chan string, len(ids))
	for _, id := range ids {
		idQueue <- id
	}
	close(idQueue)

	results := make(chan seriesResult, len(ids))

	workers := min(f.config.MaxConcurrency, len(ids))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go f.worker(ctx, idQueue, results, &wg, i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	pages := 0
	for result := range results {
		pages += result.Pages

		if result.Error != nil {
			f.logFailure(result)
			continue
		}
		if len(result.Observations) > 0 {
			observations[result.SeriesID] = result.Observations
		}
	}

	f.logger.Debug().
		Int("series", len(ids)).
		Int("with_observations", len(observations)).
		Int("pages", pages).
		Dur("duration", time.Since(start)).
		Msg("Observation fetch complete")

	return observations
}

// worker processes series ids from the queue
func (f *ObservationFetcher) worker(ctx context.Context, idQueue <-chan string, results chan<- seriesResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for id := range idQueue {
		select {
		case <-ctx.Done():
			results <- seriesResult{SeriesID: id, Error: ctx.Err()}
			continue
		default:
		}

		obs, pages, err := f.fetchSeries(ctx, id)
		results <- seriesResult{SeriesID: id, Observations: obs, Pages: pages, Error: err}
	}

	f.logger.Trace().Int("worker_id", workerID).Msg("Worker completed")
}

// fetchSeries pages through one series. A failure on any page discards the
// pages already read.
func (f *ObservationFetcher) fetchSeries(ctx context.Context, id string) ([]client.Observation, int, error) {
	var all []client.Observation
	offset := 0
	pages := 0

	for {
		page, err := f.source.SeriesObservations(ctx, id, client.ObservationParams{
			Limit:            f.config.PageSize,
			Offset:           offset,
			ObservationStart: f.config.ObservationStart,
			ObservationEnd:   f.config.ObservationEnd,
		})
		if err != nil {
			return nil, pages, err
		}
		pages++

		if len(page.Observations) == 0 {
			break
		}
		all = append(all, page.Observations...)

		if len(page.Observations) < f.config.PageSize || len(all) >= page.Count {
			break
		}
		offset += f.config.PageSize
	}

	return all, pages, nil
}

func (f *ObservationFetcher) logFailure(result seriesResult) {
	switch {
	case client.IsAccessRestricted(result.Error):
		fredObservationFetchFailures.WithLabelValues("access_restricted").Inc()
	case client.KindOf(result.Error) == "" && ctxDone(result.Error):
		fredObservationFetchFailures.WithLabelValues("cancelled").Inc()
	default:
		fredObservationFetchFailures.WithLabelValues(reason(result.Error)).Inc()
		f.logger.Warn().
			Err(result.Error).
			Str("series_id", result.SeriesID).
			Msg("Failed to fetch observations for series")
	}
}

func ctxDone(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func reason(err error) string {
	if kind := client.KindOf(err); kind != "" {
		return string(kind)
	}
	return "other"
}
