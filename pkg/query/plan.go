package query

import "github.com/Sternrassler/fred-series-harvester/pkg/client"

// PageSize is the number of series requested per search call.
const PageSize = client.MaxPageSize

// Multi-filter fetch inflation.
const (
	inflationFactor = 5
	inflationFloor  = 10000
)

// Plan splits desiredCount into ordered page requests of at most PageSize
// series. Every page carries the same search, filter and sort fields.
// desiredCount <= 0 yields an empty plan.
func Plan(q Query, desiredCount int) []client.SearchParams {
	if desiredCount <= 0 {
		return nil
	}

	template := client.SearchParams{
		CategoryID: q.CategoryID,
		OrderBy:    q.SortField(),
		SortOrder:  q.SortDirection(),
	}

	switch {
	case q.SeriesID != "" && q.SearchText == "":
		template.SearchText = q.SeriesID
		template.SearchType = client.SearchTypeSeriesID
	case q.SearchText != "":
		template.SearchText = q.SearchText
		template.SearchType = q.SearchType
		template.SeriesID = q.SeriesID
	}

	if f, ok := q.PrimaryFilter(); ok {
		template.FilterVariable = f.Variable
		template.FilterValue = f.Value
	}

	pages := (desiredCount + PageSize - 1) / PageSize
	plan := make([]client.SearchParams, 0, pages)
	for i := 0; i < pages; i++ {
		params := template
		params.Offset = i * PageSize
		params.Limit = min(PageSize, desiredCount-params.Offset)
		plan = append(plan, params)
	}
	return plan
}

// FetchCount returns how many series to request for desired output items.
// With more than one filter active only the primary one is sent upstream,
// so more series are fetched and re-filtered locally.
func FetchCount(q Query, desired int) int {
	if !q.NeedsClientFilter() {
		return desired
	}
	return min(desired*inflationFactor, max(inflationFloor, desired))
}
