// Package yahoo provides a client for the Yahoo Finance chart API.
// It is the default quote source for the dashboard.
package yahoo

import (
	"fmt"
	"time"
)

// QueryOption represents an optional parameter for chart queries.
type QueryOption func(*queryParams)

// queryParams holds optional query parameters.
type queryParams struct {
	Range    string // 1d, 5d, 1mo, ...
	Interval string // 1d, 1h, ...
}

// WithRange sets the trailing range (e.g. "5d").
func WithRange(r string) QueryOption {
	return func(p *queryParams) {
		p.Range = r
	}
}

// WithInterval sets the bar interval (e.g. "1d").
func WithInterval(interval string) QueryOption {
	return func(p *queryParams) {
		p.Interval = interval
	}
}

// APIError represents an error from the chart API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Symbol     string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("Yahoo chart error: %s: %s (status: %d, symbol: %s)", e.Code, e.Message, e.StatusCode, e.Symbol)
	}
	return fmt.Sprintf("Yahoo chart error: %s (status: %d, symbol: %s)", e.Message, e.StatusCode, e.Symbol)
}

// RateLimitError is returned when the limiter wait is cancelled or upstream answers 429.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Yahoo rate limit exceeded, retry after %v", e.RetryAfter)
}
