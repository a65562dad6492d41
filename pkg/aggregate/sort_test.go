package aggregate

import (
	"testing"

	"github.com/Sternrassler/fred-series-harvester/pkg/client"
)

func TestSortFieldsCoverFREDOrderBy(t *testing.T) {
	fields := []string{
		"series_id", "title", "units", "frequency", "seasonal_adjustment",
		"realtime_start", "realtime_end", "last_updated", "observation_start",
		"observation_end", "popularity", "group_popularity",
	}
	for _, f := range fields {
		if _, ok := sortFields[f]; !ok {
			t.Errorf("sortFields missing %q", f)
		}
	}
	if _, ok := sortFields["search_rank"]; ok {
		t.Error("search_rank must not be sortable locally")
	}
}

func TestSorter_Compare(t *testing.T) {
	asc := newSorter("title", client.SortAsc)
	desc := newSorter("title", client.SortDesc)

	tests := []struct {
		name string
		a, b sortValue
		sign int
	}{
		{name: "numeric", a: numValue(2), b: numValue(10), sign: -1},
		{name: "numeric equal", a: numValue(7), b: numValue(7), sign: 0},
		{name: "text", a: textValue("apple"), b: textValue("Banana"), sign: -1},
		{name: "missing sorts as empty", a: textValue(""), b: textValue("a"), sign: -1},
		{name: "mixed compares as text", a: numValue(10), b: textValue("9"), sign: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sign(asc.compare(tt.a, tt.b)); got != tt.sign {
				t.Errorf("asc compare = %d, want %d", got, tt.sign)
			}
			if got := sign(desc.compare(tt.a, tt.b)); got != -tt.sign {
				t.Errorf("desc compare = %d, want %d", got, -tt.sign)
			}
		})
	}
}

func TestSorter_SeriesAndItemsAgree(t *testing.T) {
	s := newSorter("group_popularity", client.SortDesc)
	batch := []client.Series{
		{ID: "a", GroupPopularity: 1},
		{ID: "b", GroupPopularity: 3},
		{ID: "c", GroupPopularity: 2},
	}
	s.sortSeries(batch)
	if batch[0].ID != "b" || batch[1].ID != "c" || batch[2].ID != "a" {
		t.Errorf("sortSeries order = %s %s %s", batch[0].ID, batch[1].ID, batch[2].ID)
	}

	unsortable := newSorter("search_rank", client.SortDesc)
	batch = []client.Series{{ID: "x", Popularity: 1}, {ID: "y", Popularity: 9}}
	unsortable.sortSeries(batch)
	if batch[0].ID != "x" {
		t.Error("search_rank must keep arrival order")
	}
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}
