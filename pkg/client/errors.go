package client

import (
	"errors"
	"fmt"
	"time"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorKind classifies a failed FRED call.
type ErrorKind string

const (
	// KindTimeout is a call that exceeded the per-call timeout.
	KindTimeout ErrorKind = "timeout"

	// KindUpstream is any non-2xx response without a more specific kind.
	KindUpstream ErrorKind = "upstream"

	// KindGatewayTimeout is a 504 from the FRED gateway.
	KindGatewayTimeout ErrorKind = "gateway_timeout"

	// KindAccessRestricted is a 403: the series is not available to this key.
	KindAccessRestricted ErrorKind = "access_restricted"

	// KindNetwork is a transport failure before any response arrived.
	KindNetwork ErrorKind = "network"

	// KindDecode is a 2xx response whose body could not be decoded.
	KindDecode ErrorKind = "decode"
)

// APIError is a FRED call failure with its classification.
type APIError struct {
	Kind       ErrorKind
	Endpoint   string
	StatusCode int
	Status     string
	Body       string
	Timeout    time.Duration
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("FRED API request timed out after %s. The API may be under heavy load; try again later or narrow the query (fewer filters).", e.Timeout)
	case KindGatewayTimeout:
		return "FRED API gateway timeout (504): the FRED server is likely overloaded. Try again later or reduce the breadth of the query filters."
	case KindNetwork:
		return fmt.Sprintf("FRED API network error on %s: %v", e.Endpoint, e.Err)
	case KindDecode:
		return fmt.Sprintf("FRED API returned an unreadable response on %s: %v", e.Endpoint, e.Err)
	default:
		return fmt.Sprintf("FRED API error: %s - %s", e.Status, e.Body)
	}
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind of err, or "" if err is not an *APIError.
func KindOf(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsAccessRestricted reports whether err is a 403 for a restricted series.
func IsAccessRestricted(err error) bool {
	return KindOf(err) == KindAccessRestricted
}
