// Package metrics exposes the Prometheus registry used by the harvester.
// Metrics are declared in the packages that own them (client, ratelimit,
// pagination, aggregate, sink) and registered via promauto.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the default Prometheus registry used by the harvester.
var Registry = prometheus.DefaultRegisterer

// Path is where Serve exposes the metrics.
const Path = "/metrics"

// Handler returns the HTTP handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes Handler on addr until ctx is done. It returns nil after a
// clean shutdown.
func Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(Path, Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Metrics Documentation
//
// Transport (pkg/client):
//   - fred_requests_total{endpoint,status} (Counter): FRED requests by endpoint and HTTP status or failure kind
//   - fred_request_duration_seconds{endpoint} (Histogram): FRED request latency
//   - fred_errors_total{kind} (Counter): classified call failures
//   - fred_retries_total{error_kind} (Counter): retries scheduled
//   - fred_retry_backoff_seconds (Histogram): backoff before each retry
//   - fred_retry_exhausted_total{error_kind} (Counter): search pages given up after the last attempt
//
// Rate limit (pkg/ratelimit):
//   - fred_ratelimit_wait_seconds (Histogram): time spent waiting for a slot
//   - fred_ratelimit_window_requests (Gauge): requests in the current window
//
// Observations (pkg/pagination):
//   - fred_observation_fetch_failures_total{reason} (Counter): series whose history was dropped
//
// Aggregation (pkg/aggregate):
//   - fred_series_deduplicated_total (Counter): series dropped as already seen
//   - fred_series_filtered_total (Counter): series rejected by client-side filters
//   - fred_items_pushed_total (Counter): items handed to the sink
//
// Sinks (pkg/sink):
//   - fred_sink_push_total{sink,status} (Counter): push calls by sink kind and outcome
//
// Example Prometheus Queries:
//
//	# Share of search calls that needed a retry
//	sum(rate(fred_retries_total[5m])) / sum(rate(fred_requests_total{endpoint="/series/search"}[5m]))
//
//	# P95 rate limiter wait
//	histogram_quantile(0.95, rate(fred_ratelimit_wait_seconds_bucket[5m]))
//
//	# Pages lost to exhausted retries
//	sum(increase(fred_retry_exhausted_total[1h]))
