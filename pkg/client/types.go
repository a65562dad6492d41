package client

import (
	"net/url"
	"strconv"
)

// MissingValue is the value FRED reports for an observation without data.
const MissingValue = "."

// Series is one FRED series record as returned by /series/search.
type Series struct {
	ID                      string `json:"id"`
	RealtimeStart           string `json:"realtime_start"`
	RealtimeEnd             string `json:"realtime_end"`
	Title                   string `json:"title"`
	ObservationStart        string `json:"observation_start"`
	ObservationEnd          string `json:"observation_end"`
	Frequency               string `json:"frequency"`
	FrequencyShort          string `json:"frequency_short"`
	Units                   string `json:"units"`
	UnitsShort              string `json:"units_short"`
	SeasonalAdjustment      string `json:"seasonal_adjustment"`
	SeasonalAdjustmentShort string `json:"seasonal_adjustment_short"`
	LastUpdated             string `json:"last_updated"`
	Popularity              int    `json:"popularity"`
	GroupPopularity         int    `json:"group_popularity"`
	Notes                   string `json:"notes,omitempty"`
}

// SearchPage is one page of /series/search results.
type SearchPage struct {
	Series     []Series `json:"seriess"`
	Limit      int      `json:"limit"`
	Offset     int      `json:"offset"`
	Count      int      `json:"count"`
	SearchType string   `json:"search_type"`
	SortOrder  string   `json:"sort_order"`
	OrderBy    string   `json:"order_by"`
}

// Observation is one dated data point of a series.
type Observation struct {
	RealtimeStart string `json:"realtime_start"`
	RealtimeEnd   string `json:"realtime_end"`
	Date          string `json:"date"`
	Value         string `json:"value"`
}

// IsMissing reports whether the observation carries the missing-value sentinel.
func (o Observation) IsMissing() bool {
	return o.Value == MissingValue || o.Value == ""
}

// Float parses the value. ok is false for missing or unparsable values.
func (o Observation) Float() (v float64, ok bool) {
	if o.IsMissing() {
		return 0, false
	}
	v, err := strconv.ParseFloat(o.Value, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ObservationsPage is one page of /series/observations results.
type ObservationsPage struct {
	RealtimeStart    string        `json:"realtime_start"`
	RealtimeEnd      string        `json:"realtime_end"`
	ObservationStart string        `json:"observation_start"`
	ObservationEnd   string        `json:"observation_end"`
	Units            string        `json:"units"`
	OutputType       int           `json:"output_type"`
	FileType         string        `json:"file_type"`
	OrderBy          string        `json:"order_by"`
	SortOrder        string        `json:"sort_order"`
	Count            int           `json:"count"`
	Offset           int           `json:"offset"`
	Limit            int           `json:"limit"`
	Observations     []Observation `json:"observations"`
}

// Search modes accepted by /series/search.
const (
	SearchTypeFullText = "full_text"
	SearchTypeSeriesID = "series_id"
)

// Sort directions.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Filter variables accepted by /series/search. Only one can be sent per call.
const (
	FilterFrequency          = "frequency"
	FilterUnits              = "units"
	FilterSeasonalAdjustment = "seasonal_adjustment"
)

// SearchParams is a fully resolved request for one page of /series/search.
// Produced by the query planner and consumed once by SearchSeries.
type SearchParams struct {
	SearchText string
	SearchType string
	SeriesID   string
	CategoryID *int

	// FilterVariable is one of the Filter* constants, FilterValue its value.
	FilterVariable string
	FilterValue    string

	OrderBy   string
	SortOrder string
	Limit     int
	Offset    int
}

// Values renders the params as a query string, without credentials.
func (p SearchParams) Values() url.Values {
	v := url.Values{}

	if p.SearchText != "" {
		v.Set("search_text", p.SearchText)
	}
	if p.SearchType != "" {
		v.Set("search_type", p.SearchType)
	}
	if p.SeriesID != "" {
		v.Set("series_id", p.SeriesID)
	}
	if p.CategoryID != nil {
		v.Set("category_id", strconv.Itoa(*p.CategoryID))
	}
	if p.FilterVariable != "" && p.FilterValue != "" {
		v.Set("filter_variable", p.FilterVariable)
		v.Set("filter_value", p.FilterValue)
	}

	orderBy := p.OrderBy
	if orderBy == "" {
		orderBy = "search_rank"
	}
	sortOrder := p.SortOrder
	if sortOrder == "" {
		sortOrder = SortDesc
	}
	v.Set("order_by", orderBy)
	v.Set("sort_order", sortOrder)

	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	v.Set("offset", strconv.Itoa(p.Offset))

	return v
}

// ObservationParams bounds one /series/observations request.
type ObservationParams struct {
	Limit            int
	Offset           int
	ObservationStart string // YYYY-MM-DD, optional
	ObservationEnd   string // YYYY-MM-DD, optional
}

func (p ObservationParams) values(seriesID string) url.Values {
	v := url.Values{}
	v.Set("series_id", seriesID)
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	v.Set("offset", strconv.Itoa(p.Offset))
	if p.ObservationStart != "" {
		v.Set("observation_start", p.ObservationStart)
	}
	if p.ObservationEnd != "" {
		v.Set("observation_end", p.ObservationEnd)
	}
	return v
}
