// Package models provides the transient data types produced by each refresh cycle.
package models

// Quote is the normalized view of one instrument for the current cycle.
// PercentChange is (latest-previous)/previous*100, or 0 when fewer than two
// valid closes were available.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	PercentChange float64 `json:"percent_change"`
}

// IsZero reports whether the quote is the {0,0} sentinel used for missing data.
func (q Quote) IsZero() bool {
	return q.Price == 0 && q.PercentChange == 0
}

// QuoteSeries holds the trailing closing prices for one symbol, oldest first.
// The window it covers is the fetch parameter (quotes.window), not part of the series.
type QuoteSeries struct {
	Symbol string    `json:"symbol"`
	Closes []float64 `json:"closes"`
}
