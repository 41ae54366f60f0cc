package dashboard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrobias/internal/common"
	"github.com/ternarybob/macrobias/internal/models"
	"github.com/ternarybob/macrobias/internal/services/news"
	"github.com/ternarybob/macrobias/internal/services/quotes"
	"github.com/ternarybob/macrobias/internal/services/scoring"
)

type fakeQuotes struct {
	result      quotes.FetchResult
	delay       time.Duration
	calls       atomic.Int32
	invalidated atomic.Int32
	lastSymbols []string
	mu          sync.Mutex
}

func (f *fakeQuotes) Fetch(ctx context.Context, symbols []string) quotes.FetchResult {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastSymbols = symbols
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.result
}

func (f *fakeQuotes) Invalidate() { f.invalidated.Add(1) }

type fakeNews struct {
	result      news.CollectResult
	delay       time.Duration
	invalidated atomic.Int32
}

func (f *fakeNews) Collect(ctx context.Context) news.CollectResult {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	return f.result
}

func (f *fakeNews) Invalidate() { f.invalidated.Add(1) }

var topics = []models.Topic{models.TopicUS, models.TopicUKJP}

func testConfig(timeout string) *common.Config {
	config := common.NewDefaultConfig()
	config.Dashboard.FetchTimeout = timeout
	return config
}

func bullishQuotes() quotes.FetchResult {
	return quotes.FetchResult{Quotes: map[string]models.Quote{
		"^TNX":     {Symbol: "^TNX", Price: 4.1, PercentChange: -0.6},
		"^VIX":     {Symbol: "^VIX", Price: 14},
		"XLK":      {Symbol: "XLK", Price: 200, PercentChange: 1},
		"XLU":      {Symbol: "XLU", Price: 70, PercentChange: -0.2},
		"GBPUSD=X": {Symbol: "GBPUSD=X", Price: 1.27},
		"JPY=X":    {Symbol: "JPY=X", Price: 150},
		"CL=F":     {Symbol: "CL=F", Price: 75},
	}}
}

func newsWith(us, ukjp float64) news.CollectResult {
	return news.CollectResult{Result: news.Result{
		Topics: []models.TopicNews{
			{Topic: models.TopicUS, Items: []models.NewsItem{{Title: "a", Compound: us}}, Sentiment: us},
			{Topic: models.TopicUKJP, Items: []models.NewsItem{{Title: "b", Compound: ukjp}}, Sentiment: ukjp},
		},
		Feed: []models.NewsItem{{Title: "a"}, {Title: "b"}},
	}}
}

func newTestService(q *fakeQuotes, n *fakeNews, timeout string) *Service {
	return NewService(q, n, scoring.NewEngine(), scoring.DefaultProfiles(), topics, testConfig(timeout), arbor.NewLogger())
}

func TestService_Refresh(t *testing.T) {
	q := &fakeQuotes{result: bullishQuotes()}
	n := &fakeNews{result: newsWith(0.3, -0.3)}
	svc := newTestService(q, n, "5s")

	snap, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, snap.CycleID)
	assert.False(t, snap.GeneratedAt.IsZero())
	assert.Empty(t, snap.Warnings)

	us30, ok := snap.Verdict(scoring.AssetUS30)
	require.True(t, ok)
	assert.Equal(t, 100, us30.Score)
	assert.Equal(t, models.LabelBullish, us30.Label)

	gj, ok := snap.Verdict(scoring.AssetGBPJPY)
	require.True(t, ok)
	assert.Equal(t, 45, gj.Score)
	assert.Equal(t, models.LabelRanging, gj.Label)

	assert.Len(t, snap.TopicNews(models.TopicUS).Items, 1)
	assert.Len(t, snap.Feed, 2)

	// Snapshot serves the published cycle without refetching
	again, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, again)
	assert.Equal(t, int32(1), q.calls.Load())
}

func TestService_Snapshot_RunsFirstCycle(t *testing.T) {
	q := &fakeQuotes{result: bullishQuotes()}
	svc := newTestService(q, &fakeNews{result: newsWith(0, 0)}, "5s")

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int32(1), q.calls.Load())
}

func TestService_Refresh_FetchesRequiredSymbols(t *testing.T) {
	q := &fakeQuotes{result: bullishQuotes()}
	svc := newTestService(q, &fakeNews{result: newsWith(0, 0)}, "5s")

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, symbol := range []string{"^TNX", "^VIX", "XLK", "XLU", "GBPUSD=X", "JPY=X", "CL=F", "DX-Y.NYB", "DX=F", "^DJI"} {
		assert.Contains(t, q.lastSymbols, symbol)
	}
}

func TestService_Refresh_Warnings(t *testing.T) {
	result := bullishQuotes()
	result.Missing = []string{"^VIX"}
	result.Substituted = []string{"DX-Y.NYB"}
	n := &fakeNews{result: newsWith(0, 0)}
	n.result.Failed = []string{"cnbc"}

	svc := newTestService(&fakeQuotes{result: result}, n, "5s")
	snap, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"quotes unavailable: ^VIX",
		"proxy quotes used for: DX-Y.NYB",
		"news sources failed: cnbc",
	}, snap.Warnings)
}

func TestService_Refresh_TimeoutsFallBackToNeutral(t *testing.T) {
	q := &fakeQuotes{result: bullishQuotes(), delay: 500 * time.Millisecond}
	n := &fakeNews{result: newsWith(0.9, 0.9), delay: 500 * time.Millisecond}
	svc := newTestService(q, n, "20ms")

	start := time.Now()
	snap, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 400*time.Millisecond)

	require.Len(t, snap.Warnings, 2)
	for _, v := range snap.Verdicts {
		assert.Equal(t, scoring.BaseScore, v.Score, v.Asset)
		assert.Empty(t, v.Factors)
	}
	require.Len(t, snap.News, 2)
	for _, tn := range snap.News {
		assert.Empty(t, tn.Items)
		assert.Equal(t, 0.0, tn.Sentiment)
	}
	for symbol, quote := range snap.Quotes {
		assert.True(t, quote.IsZero(), symbol)
	}
}

func TestService_Refresh_CancelledContext(t *testing.T) {
	svc := newTestService(&fakeQuotes{}, &fakeNews{}, "5s")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Refresh(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestService_Refresh_CallerCancelledMidCycle(t *testing.T) {
	q := &fakeQuotes{result: bullishQuotes()}
	n := &fakeNews{result: newsWith(0, 0)}
	svc := newTestService(q, n, "5s")

	first, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	us30, _ := first.Verdict(scoring.AssetUS30)
	require.Equal(t, 100, us30.Score)

	q.delay = 100 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err = svc.Refresh(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The abandoned cycle still finishes with real data rather than fail-safe defaults
	require.Eventually(t, func() bool {
		snap, _ := svc.Snapshot(context.Background())
		return snap.CycleID != first.CycleID
	}, 2*time.Second, 10*time.Millisecond)

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Warnings)
	us30, _ = snap.Verdict(scoring.AssetUS30)
	assert.Equal(t, 100, us30.Score)
}

func TestService_Refresh_ConcurrentCallersShareCycle(t *testing.T) {
	q := &fakeQuotes{result: bullishQuotes(), delay: 50 * time.Millisecond}
	svc := newTestService(q, &fakeNews{result: newsWith(0, 0)}, "5s")

	var wg sync.WaitGroup
	snaps := make([]*models.Snapshot, 8)
	for i := range snaps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snaps[i], _ = svc.Refresh(context.Background())
		}(i)
	}
	wg.Wait()

	for _, s := range snaps {
		require.NotNil(t, s)
	}
	assert.LessOrEqual(t, q.calls.Load(), int32(8))
	assert.GreaterOrEqual(t, q.calls.Load(), int32(1))
}

func TestService_Invalidate(t *testing.T) {
	q := &fakeQuotes{}
	n := &fakeNews{}
	svc := newTestService(q, n, "5s")

	svc.Invalidate()
	assert.Equal(t, int32(1), q.invalidated.Load())
	assert.Equal(t, int32(1), n.invalidated.Load())
}

func TestRequiredSymbols(t *testing.T) {
	config := common.QuotesConfig{
		ExtraSymbols: []string{"^DJI", "XLK"},
		Proxies:      []common.ProxyConfig{{Symbol: "DX-Y.NYB", Fallback: "DX=F"}},
	}

	got := RequiredSymbols(scoring.DefaultProfiles(), config)
	assert.Equal(t, []string{"CL=F", "DX=F", "GBPUSD=X", "JPY=X", "XLK", "XLU", "^DJI", "^TNX", "^VIX"}, got)
}
