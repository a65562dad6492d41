package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/fred-series-harvester/pkg/ratelimit"
	"github.com/rs/zerolog"
)

// newTestClient creates a client against baseURL with no rate limit spacing
// and a millisecond retry schedule.
func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	limiter, err := ratelimit.NewLimiter(ratelimit.Config{
		Limit:  1000,
		Window: time.Second,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create limiter: %v", err)
	}

	cfg := DefaultConfig("test-key")
	cfg.BaseURL = baseURL
	cfg.Limiter = limiter
	cfg.Retry = RetryConfig{
		MaxAttempts:       4,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			mutate:      func(*Config) {},
			expectError: false,
		},
		{
			name:        "missing api key",
			mutate:      func(c *Config) { c.APIKey = "" },
			expectError: true,
			errorMsg:    "api key is required",
		},
		{
			name:        "zero timeout",
			mutate:      func(c *Config) { c.Timeout = 0 },
			expectError: true,
			errorMsg:    "timeout must be > 0 (got 0s)",
		},
		{
			name:        "zero attempts",
			mutate:      func(c *Config) { c.Retry.MaxAttempts = 0 },
			expectError: true,
			errorMsg:    "retry max_attempts must be >= 1 (got 0)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("key")
			tt.mutate(&cfg)

			c, err := New(cfg)
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if c.Limiter() == nil {
				t.Error("Expected a default limiter")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("abc")

	if cfg.APIKey != "abc" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "abc")
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.Retry.MaxAttempts != 4 {
		t.Errorf("Retry.MaxAttempts = %d, want 4", cfg.Retry.MaxAttempts)
	}
}

func TestSearchSeries_RequestParameters(t *testing.T) {
	var gotQuery map[string]string
	var gotUserAgent, gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUserAgent = r.Header.Get("User-Agent")
		gotQuery = make(map[string]string)
		for k, v := range r.URL.Query() {
			gotQuery[k] = v[0]
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"count":1,"offset":0,"limit":1000,"seriess":[{"id":"GDP","title":"Gross Domestic Product","frequency":"Quarterly","popularity":93}]}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL+"/")

	categoryID := 106
	page, err := c.SearchSeries(context.Background(), SearchParams{
		SearchText:     "gdp",
		SearchType:     SearchTypeFullText,
		CategoryID:     &categoryID,
		FilterVariable: FilterFrequency,
		FilterValue:    "Quarterly",
		OrderBy:        "popularity",
		SortOrder:      SortDesc,
		Limit:          1000,
		Offset:         2000,
	})
	if err != nil {
		t.Fatalf("SearchSeries() failed: %v", err)
	}

	if gotPath != EndpointSeriesSearch {
		t.Errorf("path = %q, want %q", gotPath, EndpointSeriesSearch)
	}
	if gotUserAgent != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", gotUserAgent, DefaultUserAgent)
	}

	want := map[string]string{
		"api_key":         "test-key",
		"file_type":       "json",
		"search_text":     "gdp",
		"search_type":     "full_text",
		"category_id":     "106",
		"filter_variable": "frequency",
		"filter_value":    "Quarterly",
		"order_by":        "popularity",
		"sort_order":      "desc",
		"limit":           "1000",
		"offset":          "2000",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query[%q] = %q, want %q", k, gotQuery[k], v)
		}
	}

	if page.Count != 1 || len(page.Series) != 1 {
		t.Fatalf("page = %+v, want one series", page)
	}
	if page.Series[0].ID != "GDP" || page.Series[0].Popularity != 93 {
		t.Errorf("series = %+v", page.Series[0])
	}
}

func TestSearchSeries_StatusClassification(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		kind       ErrorKind
		message    string
	}{
		{
			name:       "server error",
			statusCode: http.StatusInternalServerError,
			body:       "boom",
			kind:       KindUpstream,
			message:    "FRED API error: 500 Internal Server Error - boom",
		},
		{
			name:       "bad request",
			statusCode: http.StatusBadRequest,
			body:       "Bad Request.  Variable search_text is not set.",
			kind:       KindUpstream,
			message:    "FRED API error: 400 Bad Request - Bad Request.  Variable search_text is not set.",
		},
		{
			name:       "gateway timeout",
			statusCode: http.StatusGatewayTimeout,
			body:       "",
			kind:       KindGatewayTimeout,
			message:    "504",
		},
		{
			name:       "forbidden",
			statusCode: http.StatusForbidden,
			body:       "restricted",
			kind:       KindAccessRestricted,
			message:    "FRED API error: 403 Forbidden - restricted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newTestClient(t, server.URL)

			page, err := c.SearchSeries(context.Background(), SearchParams{SearchText: "x"})
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if page != nil {
				t.Errorf("Expected nil page, got %+v", page)
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Expected *APIError, got %T", err)
			}
			if apiErr.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", apiErr.Kind, tt.kind)
			}
			if apiErr.StatusCode != tt.statusCode {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.statusCode)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("Error() = %q, want it to contain %q", err.Error(), tt.message)
			}
		})
	}
}

func TestSearchSeries_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	c.config.Timeout = 50 * time.Millisecond

	_, err := c.SearchSeries(context.Background(), SearchParams{SearchText: "slow"})
	if KindOf(err) != KindTimeout {
		t.Fatalf("KindOf(err) = %q, want %q (err: %v)", KindOf(err), KindTimeout, err)
	}
	if !strings.Contains(err.Error(), "timed out after 50ms") {
		t.Errorf("Error() = %q, want timeout duration in message", err.Error())
	}
}

func TestSearchSeries_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := newTestClient(t, url)

	_, err := c.SearchSeries(context.Background(), SearchParams{SearchText: "x"})
	if KindOf(err) != KindNetwork {
		t.Errorf("KindOf(err) = %q, want %q (err: %v)", KindOf(err), KindNetwork, err)
	}
}

func TestSearchSeries_DecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"seriess": [`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	_, err := c.SearchSeries(context.Background(), SearchParams{SearchText: "x"})
	if KindOf(err) != KindDecode {
		t.Errorf("KindOf(err) = %q, want %q (err: %v)", KindOf(err), KindDecode, err)
	}
}

func TestSearchSeries_CancelledContext(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.SearchSeries(ctx, SearchParams{SearchText: "x"})
	if err == nil {
		t.Fatal("Expected error for cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if KindOf(err) != "" {
		t.Errorf("Cancellation must not be classified, got kind %q", KindOf(err))
	}
}

func TestSeriesObservations(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != EndpointSeriesObservations {
			t.Errorf("path = %q, want %q", r.URL.Path, EndpointSeriesObservations)
		}
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"count":2,"offset":0,"limit":1000,"observations":[
			{"realtime_start":"2024-01-01","realtime_end":"2024-01-01","date":"2023-01-01","value":"26813.601"},
			{"realtime_start":"2024-01-01","realtime_end":"2024-01-01","date":"2023-04-01","value":"."}]}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	page, err := c.SeriesObservations(context.Background(), "GDP", ObservationParams{
		Limit:            1000,
		ObservationStart: "2023-01-01",
	})
	if err != nil {
		t.Fatalf("SeriesObservations() failed: %v", err)
	}

	for _, part := range []string{"series_id=GDP", "limit=1000", "offset=0", "observation_start=2023-01-01"} {
		if !strings.Contains(gotQuery, part) {
			t.Errorf("query %q missing %q", gotQuery, part)
		}
	}
	if strings.Contains(gotQuery, "observation_end") {
		t.Errorf("query %q must not carry an empty observation_end", gotQuery)
	}

	if len(page.Observations) != 2 {
		t.Fatalf("len(Observations) = %d, want 2", len(page.Observations))
	}
	if v, ok := page.Observations[0].Float(); !ok || v != 26813.601 {
		t.Errorf("Float() = %v, %v; want 26813.601, true", v, ok)
	}
	if !page.Observations[1].IsMissing() {
		t.Error("Expected second observation to be missing")
	}
}

func TestSeriesObservations_AccessRestricted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	_, err := c.SeriesObservations(context.Background(), "SECRET", ObservationParams{Limit: 1000})
	if !IsAccessRestricted(err) {
		t.Errorf("IsAccessRestricted(%v) = false, want true", err)
	}
}

func TestSearchParams_Defaults(t *testing.T) {
	v := SearchParams{SearchText: "cpi"}.Values()

	if got := v.Get("order_by"); got != "search_rank" {
		t.Errorf("order_by = %q, want search_rank", got)
	}
	if got := v.Get("sort_order"); got != SortDesc {
		t.Errorf("sort_order = %q, want desc", got)
	}
	if got := v.Get("offset"); got != "0" {
		t.Errorf("offset = %q, want 0", got)
	}
	if v.Has("filter_variable") || v.Has("category_id") || v.Has("limit") {
		t.Errorf("unexpected params in %v", v)
	}
}
