package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Sternrassler/fred-series-harvester/pkg/query"
	"github.com/spf13/cobra"
)

// queryFlags binds the query fields to command flags. Flags that were set
// explicitly override the values read from --input.
type queryFlags struct {
	input string

	searchText          string
	seriesID            string
	categoryID          int
	frequency           string
	units               string
	seasonalAdjustment  string
	searchType          string
	sortOrder           string
	orderBy             string
	maxItems            int
	includeObservations bool
	observationStart    string
	observationEnd      string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.input, "input", "i", "", "JSON input file with the query (- for stdin)")
	flags.StringVarP(&f.searchText, "search-text", "q", "", "Words to match against series titles and ids")
	flags.StringVar(&f.seriesID, "series-id", "", "Exact FRED series id")
	flags.IntVar(&f.categoryID, "category-id", 0, "Restrict to a FRED category")
	flags.StringVar(&f.frequency, "frequency", "", "Frequency filter (e.g. Monthly)")
	flags.StringVar(&f.units, "units", "", "Units filter (e.g. Percent)")
	flags.StringVar(&f.seasonalAdjustment, "seasonal-adjustment", "", "Seasonal adjustment filter")
	flags.StringVar(&f.searchType, "search-type", "", "full_text or series_id")
	flags.StringVar(&f.sortOrder, "sort-order", "", "Sort field (search_rank, popularity, title, ...)")
	flags.StringVar(&f.orderBy, "order-by", "", "Sort direction (asc or desc)")
	flags.IntVarP(&f.maxItems, "max-items", "n", 0, "Number of series to output")
	flags.BoolVar(&f.includeObservations, "include-observations", false, "Attach every observation of each series")
	flags.StringVar(&f.observationStart, "observation-start", "", "First observation date (YYYY-MM-DD)")
	flags.StringVar(&f.observationEnd, "observation-end", "", "Last observation date (YYYY-MM-DD)")
}

// build assembles the query from --input and the explicitly set flags.
func (f *queryFlags) build(cmd *cobra.Command) (query.Query, error) {
	var q query.Query

	if f.input != "" {
		var r io.Reader
		if f.input == "-" {
			r = cmd.InOrStdin()
		} else {
			file, err := os.Open(f.input)
			if err != nil {
				return q, fmt.Errorf("open input: %w", err)
			}
			defer file.Close()
			r = file
		}
		if err := json.NewDecoder(r).Decode(&q); err != nil {
			return q, fmt.Errorf("parse input: %w", err)
		}
	}

	changed := cmd.Flags().Changed
	setString := func(name string, dst *string, v string) {
		if changed(name) {
			*dst = v
		}
	}
	setString("search-text", &q.SearchText, f.searchText)
	setString("series-id", &q.SeriesID, f.seriesID)
	setString("frequency", &q.Frequency, f.frequency)
	setString("units", &q.Units, f.units)
	setString("seasonal-adjustment", &q.SeasonalAdjustment, f.seasonalAdjustment)
	setString("search-type", &q.SearchType, f.searchType)
	setString("sort-order", &q.SortOrder, f.sortOrder)
	setString("order-by", &q.OrderBy, f.orderBy)
	setString("observation-start", &q.ObservationStart, f.observationStart)
	setString("observation-end", &q.ObservationEnd, f.observationEnd)

	if changed("category-id") {
		id := f.categoryID
		q.CategoryID = &id
	}
	if changed("max-items") {
		n := f.maxItems
		q.MaxItems = &n
	}
	if changed("include-observations") {
		q.IncludeObservations = f.includeObservations
	}

	return q, nil
}
