// Package testutil provides a fake FRED API for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/fred-series-harvester/pkg/client"
)

// MockFREDResponse defines a canned response for a mock endpoint.
type MockFREDResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockFRED is a configurable in-memory FRED server. It answers
// /series/search and /series/observations from a catalog of series.
type MockFRED struct {
	server *httptest.Server

	mu           sync.RWMutex
	catalog      []client.Series
	observations map[string][]client.Observation
	restricted   map[string]bool
	handlers     map[string]func(w http.ResponseWriter, r *http.Request)
	failures     map[string][]MockFREDResponse

	// Tracking
	RequestCount int
	PathCounts   map[string]int
	Queries      []RecordedQuery
}

// RecordedQuery is one request seen by the mock.
type RecordedQuery struct {
	Path      string
	Query     map[string]string
	UserAgent string
	At        time.Time
}

// NewMockFRED starts a mock FRED server.
func NewMockFRED() *MockFRED {
	mock := &MockFRED{
		observations: make(map[string][]client.Observation),
		restricted:   make(map[string]bool),
		handlers:     make(map[string]func(w http.ResponseWriter, r *http.Request)),
		failures:     make(map[string][]MockFREDResponse),
		PathCounts:   make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

// URL returns the mock server URL, usable as client BaseURL.
func (m *MockFRED) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockFRED) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockFRED) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.PathCounts = make(map[string]int)
	m.Queries = nil
}

// AddSeries appends series to the search catalog.
func (m *MockFRED) AddSeries(series ...client.Series) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog = append(m.catalog, series...)
}

// SetObservations sets the observations served for a series id.
func (m *MockFRED) SetObservations(seriesID string, obs []client.Observation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observations[seriesID] = obs
}

// Restrict makes observation requests for seriesID answer 403.
func (m *MockFRED) Restrict(seriesID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restricted[seriesID] = true
}

// SetHandler sets a custom handler for a specific path.
func (m *MockFRED) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockFRED) SetResponse(path string, resp MockFREDResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// FailNext queues responses served for path before normal handling resumes.
func (m *MockFRED) FailNext(path string, resps ...MockFREDResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = append(m.failures[path], resps...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockFRED) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPathCount returns the number of requests made to path.
func (m *MockFRED) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PathCounts[path]
}

// GetQueries returns a copy of the recorded requests.
func (m *MockFRED) GetQueries() []RecordedQuery {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedQuery, len(m.Queries))
	copy(out, m.Queries)
	return out
}

func (m *MockFRED) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/fred")

	query := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			query[key] = values[0]
		}
	}

	m.mu.Lock()
	m.RequestCount++
	m.PathCounts[path]++
	m.Queries = append(m.Queries, RecordedQuery{
		Path:      path,
		Query:     query,
		UserAgent: r.Header.Get("User-Agent"),
		At:        time.Now(),
	})

	var queued *MockFREDResponse
	if pending := m.failures[path]; len(pending) > 0 {
		resp := pending[0]
		queued = &resp
		m.failures[path] = pending[1:]
	}
	handler, exists := m.handlers[path]
	m.mu.Unlock()

	if queued != nil {
		writeResponse(w, *queued)
		return
	}

	if query["api_key"] == "" {
		writeResponse(w, NewBadRequestResponse("Variable api_key is not set."))
		return
	}

	if exists {
		handler(w, r)
		return
	}

	switch path {
	case client.EndpointSeriesSearch:
		m.handleSearch(w, query)
	case client.EndpointSeriesObservations:
		m.handleObservations(w, query)
	default:
		writeResponse(w, MockFREDResponse{StatusCode: http.StatusNotFound, Body: `{"error_code":404,"error_message":"Not Found"}`})
	}
}

func (m *MockFRED) handleSearch(w http.ResponseWriter, q map[string]string) {
	m.mu.RLock()
	var matched []client.Series
	for _, s := range m.catalog {
		if matchesSearch(s, q) {
			matched = append(matched, s)
		}
	}
	m.mu.RUnlock()

	offset, limit := pageBounds(q)
	page := client.SearchPage{
		Series:     pageOf(matched, offset, limit),
		Limit:      limit,
		Offset:     offset,
		Count:      len(matched),
		SearchType: q["search_type"],
		OrderBy:    q["order_by"],
		SortOrder:  q["sort_order"],
	}
	if page.Series == nil {
		page.Series = []client.Series{}
	}
	writeJSON(w, page)
}

func (m *MockFRED) handleObservations(w http.ResponseWriter, q map[string]string) {
	id := q["series_id"]

	m.mu.RLock()
	restricted := m.restricted[id]
	obs, known := m.observations[id]
	m.mu.RUnlock()

	if restricted {
		writeResponse(w, NewForbiddenResponse())
		return
	}
	if !known {
		writeResponse(w, NewBadRequestResponse("The series does not exist."))
		return
	}

	offset, limit := pageBounds(q)
	page := client.ObservationsPage{
		Count:        len(obs),
		Offset:       offset,
		Limit:        limit,
		Observations: pageOf(obs, offset, limit),
	}
	if page.Observations == nil {
		page.Observations = []client.Observation{}
	}
	writeJSON(w, page)
}

func matchesSearch(s client.Series, q map[string]string) bool {
	if text := strings.ToLower(q["search_text"]); text != "" {
		haystack := strings.ToLower(s.ID)
		if q["search_type"] != client.SearchTypeSeriesID {
			haystack += " " + strings.ToLower(s.Title)
		}
		for _, word := range strings.Fields(text) {
			if !strings.Contains(haystack, word) {
				return false
			}
		}
	}

	value := q["filter_value"]
	switch q["filter_variable"] {
	case client.FilterFrequency:
		return s.Frequency == value
	case client.FilterUnits:
		return s.Units == value
	case client.FilterSeasonalAdjustment:
		return s.SeasonalAdjustment == value
	}
	return true
}

func pageBounds(q map[string]string) (offset, limit int) {
	offset, _ = strconv.Atoi(q["offset"])
	limit, _ = strconv.Atoi(q["limit"])
	if limit <= 0 || limit > client.MaxPageSize {
		limit = client.MaxPageSize
	}
	return offset, limit
}

func pageOf[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}

func writeResponse(w http.ResponseWriter, resp MockFREDResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockFREDResponse {
	return MockFREDResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error_code":500,"error_message":"Internal Server Error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewGatewayTimeoutResponse creates a 504 Gateway Timeout response.
func NewGatewayTimeoutResponse() MockFREDResponse {
	return MockFREDResponse{
		StatusCode: http.StatusGatewayTimeout,
		Body:       "<html><body>504 Gateway Time-out</body></html>",
	}
}

// NewForbiddenResponse creates the 403 FRED sends for restricted series.
func NewForbiddenResponse() MockFREDResponse {
	return MockFREDResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"error_code":403,"error_message":"Forbidden. This series is not available."}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewBadRequestResponse creates a 400 response with a FRED error message.
func NewBadRequestResponse(message string) MockFREDResponse {
	return MockFREDResponse{
		StatusCode: http.StatusBadRequest,
		Body:       fmt.Sprintf(`{"error_code":400,"error_message":%q}`, message),
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// MakeSeries builds a catalog entry with plausible defaults.
func MakeSeries(id, title, frequency, units, seasonal string, popularity int) client.Series {
	return client.Series{
		ID:                 id,
		RealtimeStart:      "2024-01-01",
		RealtimeEnd:        "2024-01-01",
		Title:              title,
		ObservationStart:   "1947-01-01",
		ObservationEnd:     "2023-10-01",
		Frequency:          frequency,
		Units:              units,
		SeasonalAdjustment: seasonal,
		LastUpdated:        "2023-12-21 07:56:02-06",
		Popularity:         popularity,
	}
}

// MakeObservations builds n dated observations with values "1", "2", ...
func MakeObservations(n int) []client.Observation {
	obs := make([]client.Observation, n)
	start := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range obs {
		obs[i] = client.Observation{
			RealtimeStart: "2024-01-01",
			RealtimeEnd:   "2024-01-01",
			Date:          start.AddDate(0, 0, i).Format("2006-01-02"),
			Value:         strconv.Itoa(i + 1),
		}
	}
	return obs
}
