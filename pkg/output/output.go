// Package output maps FRED records into the records pushed to a sink.
package output

import (
	"time"

	"github.com/Sternrassler/fred-series-harvester/pkg/client"
)

// SeriesURLPrefix is the public FRED page of a series, completed by its id.
const SeriesURLPrefix = "https://fred.stlouisfed.org/series/"

// Item is one output record.
type Item struct {
	SeriesID                string               `json:"seriesId"`
	Title                   string               `json:"title"`
	Units                   string               `json:"units"`
	UnitsShort              string               `json:"unitsShort"`
	Frequency               string               `json:"frequency"`
	FrequencyShort          string               `json:"frequencyShort"`
	SeasonalAdjustment      string               `json:"seasonalAdjustment"`
	SeasonalAdjustmentShort string               `json:"seasonalAdjustmentShort"`
	LastUpdated             string               `json:"lastUpdated"`
	ObservationStart        string               `json:"observationStart"`
	ObservationEnd          string               `json:"observationEnd"`
	RealtimeStart           string               `json:"realtimeStart"`
	RealtimeEnd             string               `json:"realtimeEnd"`
	Popularity              int                  `json:"popularity"`
	GroupPopularity         int                  `json:"groupPopularity"`
	Notes                   string               `json:"notes,omitempty"`
	SeriesURL               string               `json:"seriesUrl"`
	Observations            []client.Observation `json:"observations,omitempty"`
	ScrapedTimestamp        string               `json:"scrapedTimestamp"`
}

// ErrorRecord is the single record pushed when a run fails.
type ErrorRecord struct {
	Error string `json:"error"`
}

// MapSeries projects a series into an Item stamped with now. Observations
// are attached only when non-empty.
func MapSeries(s client.Series, observations []client.Observation, now time.Time) Item {
	item := Item{
		SeriesID:                s.ID,
		Title:                   s.Title,
		Units:                   s.Units,
		UnitsShort:              s.UnitsShort,
		Frequency:               s.Frequency,
		FrequencyShort:          s.FrequencyShort,
		SeasonalAdjustment:      s.SeasonalAdjustment,
		SeasonalAdjustmentShort: s.SeasonalAdjustmentShort,
		LastUpdated:             s.LastUpdated,
		ObservationStart:        s.ObservationStart,
		ObservationEnd:          s.ObservationEnd,
		RealtimeStart:           s.RealtimeStart,
		RealtimeEnd:             s.RealtimeEnd,
		Popularity:              s.Popularity,
		GroupPopularity:         s.GroupPopularity,
		Notes:                   s.Notes,
		SeriesURL:               SeriesURLPrefix + s.ID,
		ScrapedTimestamp:        now.UTC().Format(time.RFC3339Nano),
	}
	if len(observations) > 0 {
		item.Observations = observations
	}
	return item
}

// MapSeriesBatch maps a batch in order. observations may be nil.
func MapSeriesBatch(series []client.Series, observations map[string][]client.Observation, now time.Time) []Item {
	items := make([]Item, 0, len(series))
	for _, s := range series {
		items = append(items, MapSeries(s, observations[s.ID], now))
	}
	return items
}
