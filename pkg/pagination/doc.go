// Package pagination provides the bounded-concurrency observation fetcher
// and batch splitting used by the harvest orchestrator.
//
// FRED returns at most 1000 observations per request. The observation
// fetcher walks each series page by page until a short page, an empty page
// or the reported count ends it, running a small worker pool across series.
//
// Example usage:
//
//	fetcher := pagination.NewObservationFetcher(fredClient, pagination.DefaultConfig())
//	observations := fetcher.FetchAll(ctx, []string{"GDP", "UNRATE"})
//
// The observation fetcher:
//   - Runs at most MaxConcurrency series at once (default 5)
//   - Sends every request through the client's shared rate limiter
//   - Drops series whose fetch failed; 403 restrictions are not logged
//   - Never fails the batch because of one series
package pagination
