package aggregate

import (
	"slices"
	"strconv"

	"github.com/Sternrassler/fred-series-harvester/pkg/client"
	"github.com/Sternrassler/fred-series-harvester/pkg/output"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// sortValue is one sort key. Text fields leave num unset.
type sortValue struct {
	text    string
	num     float64
	numeric bool
}

func textValue(s string) sortValue { return sortValue{text: s} }

func numValue(n int) sortValue {
	return sortValue{text: strconv.Itoa(n), num: float64(n), numeric: true}
}

// sortField reads one key from a raw series and from a mapped item, so
// batch and accumulated sorts order records identically.
type sortField struct {
	series func(client.Series) sortValue
	item   func(output.Item) sortValue
}

// sortFields maps a FRED order_by name to its accessors. search_rank is
// absent: rank cannot be recomputed, arrival order stands.
var sortFields = map[string]sortField{
	"series_id": {
		series: func(s client.Series) sortValue { return textValue(s.ID) },
		item:   func(i output.Item) sortValue { return textValue(i.SeriesID) },
	},
	"title": {
		series: func(s client.Series) sortValue { return textValue(s.Title) },
		item:   func(i output.Item) sortValue { return textValue(i.Title) },
	},
	"units": {
		series: func(s client.Series) sortValue { return textValue(s.Units) },
		item:   func(i output.Item) sortValue { return textValue(i.Units) },
	},
	"frequency": {
		series: func(s client.Series) sortValue { return textValue(s.Frequency) },
		item:   func(i output.Item) sortValue { return textValue(i.Frequency) },
	},
	"seasonal_adjustment": {
		series: func(s client.Series) sortValue { return textValue(s.SeasonalAdjustment) },
		item:   func(i output.Item) sortValue { return textValue(i.SeasonalAdjustment) },
	},
	"realtime_start": {
		series: func(s client.Series) sortValue { return textValue(s.RealtimeStart) },
		item:   func(i output.Item) sortValue { return textValue(i.RealtimeStart) },
	},
	"realtime_end": {
		series: func(s client.Series) sortValue { return textValue(s.RealtimeEnd) },
		item:   func(i output.Item) sortValue { return textValue(i.RealtimeEnd) },
	},
	"last_updated": {
		series: func(s client.Series) sortValue { return textValue(s.LastUpdated) },
		item:   func(i output.Item) sortValue { return textValue(i.LastUpdated) },
	},
	"observation_start": {
		series: func(s client.Series) sortValue { return textValue(s.ObservationStart) },
		item:   func(i output.Item) sortValue { return textValue(i.ObservationStart) },
	},
	"observation_end": {
		series: func(s client.Series) sortValue { return textValue(s.ObservationEnd) },
		item:   func(i output.Item) sortValue { return textValue(i.ObservationEnd) },
	},
	"popularity": {
		series: func(s client.Series) sortValue { return numValue(s.Popularity) },
		item:   func(i output.Item) sortValue { return numValue(i.Popularity) },
	},
	"group_popularity": {
		series: func(s client.Series) sortValue { return numValue(s.GroupPopularity) },
		item:   func(i output.Item) sortValue { return numValue(i.GroupPopularity) },
	},
}

// sorter orders records by one field and direction. It is not safe for
// concurrent use: the collator keeps internal buffers.
type sorter struct {
	field      sortField
	sortable   bool
	descending bool
	collator   *collate.Collator
}

func newSorter(field, direction string) *sorter {
	f, ok := sortFields[field]
	return &sorter{
		field:      f,
		sortable:   ok,
		descending: direction != client.SortAsc,
		collator:   collate.New(language.English),
	}
}

func (s *sorter) compare(a, b sortValue) int {
	var c int
	switch {
	case a.numeric && b.numeric:
		switch {
		case a.num < b.num:
			c = -1
		case a.num > b.num:
			c = 1
		}
	default:
		c = s.collator.CompareString(a.text, b.text)
	}
	if s.descending {
		return -c
	}
	return c
}

// sortSeries stably sorts a batch of raw series in place.
func (s *sorter) sortSeries(series []client.Series) {
	if !s.sortable {
		return
	}
	slices.SortStableFunc(series, func(a, b client.Series) int {
		return s.compare(s.field.series(a), s.field.series(b))
	})
}

// sortItems stably sorts mapped items in place.
func (s *sorter) sortItems(items []output.Item) {
	if !s.sortable {
		return
	}
	slices.SortStableFunc(items, func(a, b output.Item) int {
		return s.compare(s.field.item(a), s.field.item(b))
	})
}
