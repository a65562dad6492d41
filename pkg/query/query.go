// Package query holds the logical search request, its validation, the
// request planner and the output quota policy.
package query

import (
	"reflect"
	"strings"

	"github.com/Sternrassler/fred-series-harvester/pkg/client"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// SortRank is the relevance sort field. Rank cannot be recomputed locally.
const SortRank = "search_rank"

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// Query is the logical search intent supplied by the host. At least one of
// SearchText and SeriesID must be set.
//
// SortOrder names the sort field and OrderBy its direction; the JSON names
// follow the FRED harvester input format.
type Query struct {
	SearchText         string `json:"searchText,omitempty" yaml:"searchText" validate:"required_without=SeriesID"`
	SeriesID           string `json:"seriesId,omitempty" yaml:"seriesId" validate:"required_without=SearchText"`
	CategoryID         *int   `json:"categoryId,omitempty" yaml:"categoryId" validate:"omitempty,gte=0"`
	Frequency          string `json:"frequency,omitempty" yaml:"frequency"`
	Units              string `json:"units,omitempty" yaml:"units"`
	SeasonalAdjustment string `json:"seasonalAdjustment,omitempty" yaml:"seasonalAdjustment"`
	SearchType         string `json:"searchType,omitempty" yaml:"searchType" validate:"omitempty,oneof=full_text series_id"`
	SortOrder          string `json:"sortOrder,omitempty" yaml:"sortOrder" default:"search_rank" validate:"oneof=search_rank series_id title units frequency seasonal_adjustment realtime_start realtime_end last_updated observation_start observation_end popularity group_popularity"`
	OrderBy            string `json:"orderBy,omitempty" yaml:"orderBy" default:"desc" validate:"oneof=asc desc"`

	IncludeObservations bool   `json:"includeObservations,omitempty" yaml:"includeObservations"`
	ObservationStart    string `json:"observationStart,omitempty" yaml:"observationStart" validate:"omitempty,datetime=2006-01-02"`
	ObservationEnd      string `json:"observationEnd,omitempty" yaml:"observationEnd" validate:"omitempty,datetime=2006-01-02"`

	// MaxItems is nil when the caller did not ask for a specific count.
	MaxItems *int `json:"maxItems,omitempty" yaml:"maxItems" validate:"omitempty,gte=1"`
}

// Normalize trims the text fields, applies defaults and validates the
// query. Failures are returned as *InputError.
func (q *Query) Normalize() error {
	q.SearchText = strings.TrimSpace(q.SearchText)
	q.SeriesID = strings.TrimSpace(q.SeriesID)
	q.Frequency = strings.TrimSpace(q.Frequency)
	q.Units = strings.TrimSpace(q.Units)
	q.SeasonalAdjustment = strings.TrimSpace(q.SeasonalAdjustment)

	if err := defaults.Set(q); err != nil {
		return &InputError{Message: "apply query defaults: " + err.Error(), Err: err}
	}

	if err := validate.Struct(q); err != nil {
		return fromValidation(err)
	}
	return nil
}

// Filter is one upstream filter field and the value it must equal.
type Filter struct {
	Variable string
	Value    string
}

// ActiveFilters returns the set filter fields in precedence order:
// frequency, units, seasonal adjustment.
func (q Query) ActiveFilters() []Filter {
	var filters []Filter
	if q.Frequency != "" {
		filters = append(filters, Filter{Variable: client.FilterFrequency, Value: q.Frequency})
	}
	if q.Units != "" {
		filters = append(filters, Filter{Variable: client.FilterUnits, Value: q.Units})
	}
	if q.SeasonalAdjustment != "" {
		filters = append(filters, Filter{Variable: client.FilterSeasonalAdjustment, Value: q.SeasonalAdjustment})
	}
	return filters
}

// PrimaryFilter returns the single filter sent upstream.
func (q Query) PrimaryFilter() (Filter, bool) {
	filters := q.ActiveFilters()
	if len(filters) == 0 {
		return Filter{}, false
	}
	return filters[0], true
}

// NeedsClientFilter reports whether more filters are set than FRED accepts
// in one call.
func (q Query) NeedsClientFilter() bool {
	return len(q.ActiveFilters()) > 1
}

// Matches reports whether s equals every active filter.
func (q Query) Matches(s client.Series) bool {
	if q.Frequency != "" && s.Frequency != q.Frequency {
		return false
	}
	if q.Units != "" && s.Units != q.Units {
		return false
	}
	if q.SeasonalAdjustment != "" && s.SeasonalAdjustment != q.SeasonalAdjustment {
		return false
	}
	return true
}

// SortField returns the requested sort field, defaulting to search rank.
func (q Query) SortField() string {
	if q.SortOrder == "" {
		return SortRank
	}
	return q.SortOrder
}

// SortDirection returns the requested direction, defaulting to descending.
func (q Query) SortDirection() string {
	if q.OrderBy == "" {
		return client.SortDesc
	}
	return q.OrderBy
}

// ObservationParams returns the observation bounds requested by the query.
func (q Query) ObservationParams() client.ObservationParams {
	return client.ObservationParams{
		ObservationStart: q.ObservationStart,
		ObservationEnd:   q.ObservationEnd,
	}
}
