package quotes

import (
	"math"
	"math/rand"
	"testing"

	"github.com/ternarybob/macrobias/internal/common"
	"github.com/ternarybob/macrobias/internal/models"
)

func TestNormalizeSeries(t *testing.T) {
	tests := []struct {
		name       string
		closes     []float64
		wantPrice  float64
		wantChange float64
	}{
		{"two bars", []float64{100, 101}, 101, 1},
		{"uses last two of window", []float64{90, 95, 100, 98}, 98, -2},
		{"single bar is sentinel", []float64{14.2}, 0, 0},
		{"empty is sentinel", nil, 0, 0},
		{"NaN dropped", []float64{100, math.NaN(), 110}, 110, 10},
		{"NaN leaves one bar", []float64{math.NaN(), 4.5}, 0, 0},
		{"zero previous yields zero change", []float64{0, 5}, 5, 0},
		{"infinite dropped", []float64{100, math.Inf(1), 105}, 105, 5},
		{"negative prices still compute", []float64{-10, -5}, -5, -50},
		{"negative yield kept", []float64{-0.1, 0.05}, 0.05, -150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeSeries(models.QuoteSeries{Symbol: "SYM", Closes: tt.closes})
			if got.Symbol != "SYM" {
				t.Errorf("NormalizeSeries() symbol = %q, want SYM", got.Symbol)
			}
			if math.Abs(got.Price-tt.wantPrice) > 1e-9 {
				t.Errorf("NormalizeSeries() price = %v, want %v", got.Price, tt.wantPrice)
			}
			if math.Abs(got.PercentChange-tt.wantChange) > 1e-9 {
				t.Errorf("NormalizeSeries() change = %v, want %v", got.PercentChange, tt.wantChange)
			}
		})
	}
}

func TestPercentChange_Tolerance(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		prev := (rng.Float64() - 0.5) * 2000
		if prev == 0 {
			continue
		}
		latest := (rng.Float64() - 0.5) * 2000

		got := NormalizeSeries(models.QuoteSeries{Symbol: "X", Closes: []float64{prev, latest}}).PercentChange
		want := (latest - prev) / prev * 100
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("percent change for [%v, %v] = %v, want %v", prev, latest, got, want)
		}
	}
}

func TestNormalize_OneEntryPerSymbol(t *testing.T) {
	symbols := []string{"^TNX", "^VIX", "GBPUSD=X", "JPY=X", "DELISTED"}
	series := map[string][]float64{
		"^TNX":     {4.20, 4.18},
		"^VIX":     {14.0},             // one bar only
		"GBPUSD=X": {1.2500, 1.2519},   // normal
		"EXTRA":    {1, 2},             // not requested
		"JPY=X":    {157.10, 157.3357}, // normal
	}

	got := Normalize(series, symbols)

	if len(got) != len(symbols) {
		t.Fatalf("Normalize() returned %d entries, want %d", len(got), len(symbols))
	}
	for _, s := range symbols {
		if _, ok := got[s]; !ok {
			t.Errorf("Normalize() missing entry for %s", s)
		}
	}
	if _, ok := got["EXTRA"]; ok {
		t.Errorf("Normalize() returned unrequested symbol")
	}
	if q := got["^VIX"]; !q.IsZero() {
		t.Errorf("single-bar symbol = %+v, want sentinel", q)
	}
	if q := got["DELISTED"]; !q.IsZero() {
		t.Errorf("missing symbol = %+v, want sentinel", q)
	}
	if q := got["^TNX"]; math.Abs(q.PercentChange-(-0.4761904761904763)) > 1e-9 {
		t.Errorf("^TNX change = %v", q.PercentChange)
	}
}

func TestApplyProxies(t *testing.T) {
	proxies := []common.ProxyConfig{{Symbol: "DX-Y.NYB", Fallback: "DX=F", MinPrice: 0.01}}

	tests := []struct {
		name            string
		quotes          map[string]models.Quote
		wantPrice       float64
		wantSubstituted bool
	}{
		{
			name: "near-zero primary replaced",
			quotes: map[string]models.Quote{
				"DX-Y.NYB": {Symbol: "DX-Y.NYB", Price: 0.001, PercentChange: -99.9},
				"DX=F":     {Symbol: "DX=F", Price: 108.2, PercentChange: 0.3},
			},
			wantPrice:       108.2,
			wantSubstituted: true,
		},
		{
			name: "sentinel primary replaced",
			quotes: map[string]models.Quote{
				"DX-Y.NYB": {Symbol: "DX-Y.NYB"},
				"DX=F":     {Symbol: "DX=F", Price: 108.2, PercentChange: 0.3},
			},
			wantPrice:       108.2,
			wantSubstituted: true,
		},
		{
			name: "healthy primary kept",
			quotes: map[string]models.Quote{
				"DX-Y.NYB": {Symbol: "DX-Y.NYB", Price: 108.0, PercentChange: 0.2},
				"DX=F":     {Symbol: "DX=F", Price: 108.2, PercentChange: 0.3},
			},
			wantPrice:       108.0,
			wantSubstituted: false,
		},
		{
			name: "fallback missing",
			quotes: map[string]models.Quote{
				"DX-Y.NYB": {Symbol: "DX-Y.NYB", Price: 0.001},
			},
			wantPrice:       0.001,
			wantSubstituted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			substituted := ApplyProxies(tt.quotes, proxies)
			got := tt.quotes["DX-Y.NYB"]
			if got.Price != tt.wantPrice {
				t.Errorf("ApplyProxies() price = %v, want %v", got.Price, tt.wantPrice)
			}
			if got.Symbol != "DX-Y.NYB" {
				t.Errorf("ApplyProxies() symbol = %q, want primary symbol kept", got.Symbol)
			}
			if (len(substituted) == 1) != tt.wantSubstituted {
				t.Errorf("ApplyProxies() substituted = %v, want %v", substituted, tt.wantSubstituted)
			}
		})
	}
}
