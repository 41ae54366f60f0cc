// Package quotes turns raw closing-price series into normalized quotes.
// Normalize and ApplyProxies are pure; Service adds fetching and caching.
package quotes

import (
	"math"

	"github.com/ternarybob/macrobias/internal/common"
	"github.com/ternarybob/macrobias/internal/models"
)

// Normalize returns exactly one quote per requested symbol.
// A symbol with fewer than two valid closes gets the {0,0} sentinel.
func Normalize(series map[string][]float64, symbols []string) map[string]models.Quote {
	out := make(map[string]models.Quote, len(symbols))
	for _, symbol := range symbols {
		out[symbol] = NormalizeSeries(models.QuoteSeries{Symbol: symbol, Closes: series[symbol]})
	}
	return out
}

// NormalizeSeries converts one close series into a quote.
// NaN and infinite closes are treated as missing observations. Zero and negative
// closes are kept: some series legitimately go non-positive (yields, spreads,
// futures), and near-zero data defects are handled by ApplyProxies.
func NormalizeSeries(series models.QuoteSeries) models.Quote {
	symbol := series.Symbol
	valid := validCloses(series.Closes)
	if len(valid) < 2 {
		return models.Quote{Symbol: symbol}
	}

	latest := valid[len(valid)-1]
	previous := valid[len(valid)-2]

	return models.Quote{
		Symbol:        symbol,
		Price:         latest,
		PercentChange: PercentChange(previous, latest),
	}
}

// PercentChange returns (latest-previous)/previous*100, or 0 when previous is 0.
func PercentChange(previous, latest float64) float64 {
	if previous == 0 {
		return 0
	}
	return (latest - previous) / previous * 100
}

func validCloses(closes []float64) []float64 {
	valid := make([]float64, 0, len(closes))
	for _, c := range closes {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			continue
		}
		valid = append(valid, c)
	}
	return valid
}

// ApplyProxies overwrites a primary symbol's quote with its fallback's pair when the
// primary price is below MinPrice. Only symbols present in quotes are touched.
// Returns the primary symbols that were substituted.
func ApplyProxies(quotes map[string]models.Quote, proxies []common.ProxyConfig) []string {
	var substituted []string
	for _, p := range proxies {
		primary, ok := quotes[p.Symbol]
		if !ok || primary.Price >= p.MinPrice {
			continue
		}
		fallback, ok := quotes[p.Fallback]
		if !ok {
			continue
		}
		quotes[p.Symbol] = models.Quote{
			Symbol:        p.Symbol,
			Price:         fallback.Price,
			PercentChange: fallback.PercentChange,
		}
		substituted = append(substituted, p.Symbol)
	}
	return substituted
}
