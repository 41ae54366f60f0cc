package yahoo

import "time"

// ChartResponse is the envelope returned by /v8/finance/chart/{symbol}.
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *ChartError   `json:"error"`
	} `json:"chart"`
}

// ChartError is the error object embedded in a chart response.
type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ChartResult holds one symbol's bars.
type ChartResult struct {
	Meta       ChartMeta `json:"meta"`
	Timestamp  []int64   `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// ChartMeta carries instrument metadata.
type ChartMeta struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency"`
	ExchangeName       string  `json:"exchangeName"`
	InstrumentType     string  `json:"instrumentType"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	PreviousClose      float64 `json:"chartPreviousClose"`
}

// Bar is one daily close. Bars with a null close upstream are dropped.
type Bar struct {
	Date  time.Time
	Close float64
}

// Bars returns the non-null closes of the first result, oldest first.
func (r ChartResult) Bars() []Bar {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	closes := r.Indicators.Quote[0].Close
	bars := make([]Bar, 0, len(closes))
	for i, c := range closes {
		if c == nil {
			continue
		}
		bar := Bar{Close: *c}
		if i < len(r.Timestamp) {
			bar.Date = time.Unix(r.Timestamp[i], 0).UTC()
		}
		bars = append(bars, bar)
	}
	return bars
}
