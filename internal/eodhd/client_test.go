package eodhd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func newEODServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("api_token"))
		assert.Equal(t, "json", r.URL.Query().Get("fmt"))

		switch {
		case r.URL.Path == "/eod/VIX.INDX":
			assert.Equal(t, "a", r.URL.Query().Get("order"))
			fmt.Fprint(w, `[
				{"date":"2025-01-02","close":17.9},
				{"date":"2025-01-03","close":16.1},
				{"date":"2025-01-06","close":16.0},
				{"date":"2025-01-07","close":15.2},
				{"date":"2025-01-08","close":14.9},
				{"date":"2025-01-09","close":14.5}
			]`)
		case r.URL.Path == "/news":
			assert.Equal(t, "DIA.US,FXY.US", r.URL.Query().Get("s"))
			assert.Equal(t, "5", r.URL.Query().Get("limit"))
			fmt.Fprint(w, `[
				{"date":"2025-01-09 14:30:00","title":"Fed signals patience on rate cuts","content":"...","link":"https://example.com/a","symbols":["DIA.US"],
				 "sentiment":{"polarity":0.4,"neg":0.0,"neu":0.8,"pos":0.2}},
				{"date":"2025-01-08","title":"Yen slides","content":"...","link":"https://example.com/b"}
			]`)
		case strings.HasPrefix(r.URL.Path, "/eod/BUSY"):
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":"ticker not found"}`)
		}
	}))
}

func TestGetEOD(t *testing.T) {
	srv := newEODServer(t)
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(100))

	bars, err := client.GetEOD(context.Background(), "VIX.INDX", WithOrder("a"))
	require.NoError(t, err)
	require.Len(t, bars, 6)
	assert.Equal(t, 2025, bars[0].Date.Year())
	assert.Equal(t, 14.5, bars[5].Close)
}

func TestGetEOD_Errors(t *testing.T) {
	srv := newEODServer(t)
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(100))

	_, err := client.GetEOD(context.Background(), "NOPE.US")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "/eod/NOPE.US", apiErr.Endpoint)

	_, err = client.GetEOD(context.Background(), "BUSY.US")
	var rlErr *RateLimitError
	assert.True(t, errors.As(err, &rlErr))
}

func TestCloses_MapsSymbolsAndTrimsWindow(t *testing.T) {
	srv := newEODServer(t)
	defer srv.Close()

	client := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithRateLimit(100),
		WithLogger(arbor.NewLogger()),
		WithSymbolMap(map[string]string{"^VIX": "VIX.INDX"}),
	)

	closes, err := client.Closes(context.Background(), []string{"^VIX", "MISSING"}, "5d")
	require.NoError(t, err)
	assert.Equal(t, []float64{16.1, 16.0, 15.2, 14.9, 14.5}, closes["^VIX"])
	_, ok := closes["MISSING"]
	assert.False(t, ok)
}

func TestCloses_InvalidWindow(t *testing.T) {
	client := NewClient("test-key")
	_, err := client.Closes(context.Background(), []string{"^VIX"}, "five days")
	assert.Error(t, err)
}

func TestGetNews(t *testing.T) {
	srv := newEODServer(t)
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(100))

	items, err := client.GetNews(context.Background(), []string{"DIA.US", "FXY.US"}, WithLimit(5))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, 14, items[0].Date.Hour())
	require.NotNil(t, items[0].Sentiment)
	assert.Equal(t, 0.4, items[0].Sentiment.Polarity)
	assert.Equal(t, 8, items[1].Date.Day(), "date-only strings should still parse")
	assert.Nil(t, items[1].Sentiment)
}

func TestWindowDuration(t *testing.T) {
	tests := []struct {
		window  string
		want    int // days
		wantErr bool
	}{
		{"5d", 5, false},
		{"1wk", 7, false},
		{"1mo", 30, false},
		{"1y", 365, false},
		{"0d", 0, true},
		{"5x", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.window, func(t *testing.T) {
			got, err := windowDuration(tt.window)
			if (err != nil) != tt.wantErr {
				t.Fatalf("windowDuration(%q) error = %v, wantErr %v", tt.window, err, tt.wantErr)
			}
			if !tt.wantErr && int(got.Hours()/24) != tt.want {
				t.Errorf("windowDuration(%q) = %v days, want %d", tt.window, got.Hours()/24, tt.want)
			}
		})
	}
}

func TestCloses_TransientFailureIsReported(t *testing.T) {
	srv := newEODServer(t)
	defer srv.Close()

	client := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithRateLimit(100),
		WithSymbolMap(map[string]string{"^VIX": "VIX.INDX"}),
	)

	closes, err := client.Closes(context.Background(), []string{"^VIX", "BUSY.US"}, "5d")
	require.Error(t, err)
	assert.Len(t, closes["^VIX"], 5)
}
