package query

import (
	"errors"
	"strings"
	"testing"

	"github.com/Sternrassler/fred-series-harvester/pkg/client"
)

func intPtr(v int) *int { return &v }

func TestQuery_Normalize(t *testing.T) {
	tests := []struct {
		name        string
		query       Query
		expectError bool
		errorMsg    string
	}{
		{
			name:  "search text only",
			query: Query{SearchText: "GDP"},
		},
		{
			name:  "series id only",
			query: Query{SeriesID: "GDPC1"},
		},
		{
			name:        "neither text nor id",
			query:       Query{Frequency: "Monthly"},
			expectError: true,
			errorMsg:    "searchText or seriesId must be provided",
		},
		{
			name:        "whitespace search text",
			query:       Query{SearchText: "   "},
			expectError: true,
			errorMsg:    "searchText or seriesId must be provided",
		},
		{
			name:        "invalid search type",
			query:       Query{SearchText: "GDP", SearchType: "fuzzy"},
			expectError: true,
			errorMsg:    "searchType must be one of: full_text, series_id",
		},
		{
			name:        "invalid sort field",
			query:       Query{SearchText: "GDP", SortOrder: "rank"},
			expectError: true,
			errorMsg:    "sortOrder must be one of",
		},
		{
			name:        "invalid direction",
			query:       Query{SearchText: "GDP", OrderBy: "up"},
			expectError: true,
			errorMsg:    "orderBy must be one of: asc, desc",
		},
		{
			name:        "zero max items",
			query:       Query{SearchText: "GDP", MaxItems: intPtr(0)},
			expectError: true,
			errorMsg:    "maxItems must be greater than or equal to 1",
		},
		{
			name:        "bad observation start",
			query:       Query{SearchText: "GDP", ObservationStart: "01/02/2020"},
			expectError: true,
			errorMsg:    "observationStart must be a date formatted as YYYY-MM-DD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := tt.query
			err := q.Normalize()

			if !tt.expectError {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				return
			}

			if err == nil {
				t.Fatal("Expected error but got nil")
			}
			var inputErr *InputError
			if !errors.As(err, &inputErr) {
				t.Fatalf("Expected *InputError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("Error() = %q, want it to contain %q", err.Error(), tt.errorMsg)
			}
		})
	}
}

func TestQuery_NormalizeDefaults(t *testing.T) {
	q := Query{SearchText: "  unemployment  "}
	if err := q.Normalize(); err != nil {
		t.Fatalf("Normalize() failed: %v", err)
	}

	if q.SearchText != "unemployment" {
		t.Errorf("SearchText = %q, want trimmed", q.SearchText)
	}
	if q.SortOrder != SortRank {
		t.Errorf("SortOrder = %q, want %q", q.SortOrder, SortRank)
	}
	if q.OrderBy != client.SortDesc {
		t.Errorf("OrderBy = %q, want %q", q.OrderBy, client.SortDesc)
	}
	if q.MaxItems != nil {
		t.Errorf("MaxItems = %v, want nil", *q.MaxItems)
	}
}

func TestQuery_Filters(t *testing.T) {
	tests := []struct {
		name      string
		query     Query
		active    int
		primary   Filter
		hasFilter bool
	}{
		{
			name:  "none",
			query: Query{SearchText: "x"},
		},
		{
			name:      "units only",
			query:     Query{Units: "Percent"},
			active:    1,
			primary:   Filter{Variable: client.FilterUnits, Value: "Percent"},
			hasFilter: true,
		},
		{
			name:      "frequency wins over units",
			query:     Query{Frequency: "Monthly", Units: "Percent"},
			active:    2,
			primary:   Filter{Variable: client.FilterFrequency, Value: "Monthly"},
			hasFilter: true,
		},
		{
			name:      "units wins over seasonal adjustment",
			query:     Query{Units: "Percent", SeasonalAdjustment: "Seasonally Adjusted"},
			active:    2,
			primary:   Filter{Variable: client.FilterUnits, Value: "Percent"},
			hasFilter: true,
		},
		{
			name:      "all three",
			query:     Query{Frequency: "Quarterly", Units: "Percent", SeasonalAdjustment: "Not Seasonally Adjusted"},
			active:    3,
			primary:   Filter{Variable: client.FilterFrequency, Value: "Quarterly"},
			hasFilter: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(tt.query.ActiveFilters()); got != tt.active {
				t.Errorf("len(ActiveFilters()) = %d, want %d", got, tt.active)
			}
			primary, ok := tt.query.PrimaryFilter()
			if ok != tt.hasFilter || primary != tt.primary {
				t.Errorf("PrimaryFilter() = %+v, %v; want %+v, %v", primary, ok, tt.primary, tt.hasFilter)
			}
			if got := tt.query.NeedsClientFilter(); got != (tt.active > 1) {
				t.Errorf("NeedsClientFilter() = %v, want %v", got, tt.active > 1)
			}
		})
	}
}

func TestQuery_Matches(t *testing.T) {
	q := Query{Frequency: "Monthly", Units: "Percent"}

	tests := []struct {
		name   string
		series client.Series
		want   bool
	}{
		{name: "both match", series: client.Series{Frequency: "Monthly", Units: "Percent"}, want: true},
		{name: "frequency differs", series: client.Series{Frequency: "Quarterly", Units: "Percent"}, want: false},
		{name: "units differ", series: client.Series{Frequency: "Monthly", Units: "Index"}, want: false},
		{name: "case sensitive", series: client.Series{Frequency: "monthly", Units: "Percent"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := q.Matches(tt.series); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
