package query

import "fmt"

// Quota limits.
const (
	// FreeTierLimit is both the default and the ceiling for free callers.
	FreeTierLimit = 100

	// PaidTierLimit is the ceiling for paying callers. Exceeding it is an error.
	PaidTierLimit = 1_000_000

	// DefaultPaidItems is used when a paying caller sets no maxItems.
	DefaultPaidItems = 1000
)

// Quota is the resolved output limit of one run.
type Quota struct {
	Limit int

	// Clamped is set when a free caller's request was reduced to FreeTierLimit.
	Clamped bool

	// Defaulted is set when maxItems was absent.
	Defaulted bool
}

// ResolveQuota applies the tier policy to the requested item count.
func ResolveQuota(maxItems *int, isPaying bool) (Quota, error) {
	if maxItems != nil && *maxItems <= 0 {
		return Quota{}, &InputError{
			Field:   "maxItems",
			Message: fmt.Sprintf("maxItems must be greater than 0 (got %d)", *maxItems),
		}
	}

	if !isPaying {
		switch {
		case maxItems == nil:
			return Quota{Limit: FreeTierLimit, Defaulted: true}, nil
		case *maxItems > FreeTierLimit:
			return Quota{Limit: FreeTierLimit, Clamped: true}, nil
		default:
			return Quota{Limit: *maxItems}, nil
		}
	}

	if maxItems == nil {
		return Quota{Limit: DefaultPaidItems, Defaulted: true}, nil
	}
	if *maxItems > PaidTierLimit {
		return Quota{}, &InputError{
			Field:   "maxItems",
			Message: "maxItems cannot exceed 1,000,000.",
		}
	}
	return Quota{Limit: *maxItems}, nil
}
