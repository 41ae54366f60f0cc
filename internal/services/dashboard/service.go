// Package dashboard runs the refresh cycle: fetch quotes and news in parallel,
// score every profile and publish an immutable snapshot.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrobias/internal/common"
	"github.com/ternarybob/macrobias/internal/interfaces"
	"github.com/ternarybob/macrobias/internal/models"
	"github.com/ternarybob/macrobias/internal/services/news"
	"github.com/ternarybob/macrobias/internal/services/quotes"
	"github.com/ternarybob/macrobias/internal/services/scoring"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// QuoteFetcher is the quote side of a cycle
type QuoteFetcher interface {
	Fetch(ctx context.Context, symbols []string) quotes.FetchResult
	Invalidate()
}

// NewsCollector is the news side of a cycle
type NewsCollector interface {
	Collect(ctx context.Context) news.CollectResult
	Invalidate()
}

// Service implements interfaces.DashboardService.
type Service struct {
	quotes   QuoteFetcher
	news     NewsCollector
	engine   *scoring.Engine
	profiles []models.Profile
	symbols  []string
	topics   []models.Topic
	timeout  time.Duration
	logger   arbor.ILogger

	current atomic.Pointer[models.Snapshot]
	group   singleflight.Group
}

var _ interfaces.DashboardService = (*Service)(nil)

// NewService creates the dashboard service. topics seeds empty news buckets
// when news collection times out.
func NewService(
	quoteFetcher QuoteFetcher,
	newsCollector NewsCollector,
	engine *scoring.Engine,
	profiles []models.Profile,
	topics []models.Topic,
	config *common.Config,
	logger arbor.ILogger,
) *Service {
	return &Service{
		quotes:   quoteFetcher,
		news:     newsCollector,
		engine:   engine,
		profiles: profiles,
		symbols:  RequiredSymbols(profiles, config.Quotes),
		topics:   topics,
		timeout:  common.ParseDurationOr(config.Dashboard.FetchTimeout, 15*time.Second),
		logger:   logger,
	}
}

// Symbols returns the quote symbols fetched every cycle.
func (s *Service) Symbols() []string {
	return append([]string(nil), s.symbols...)
}

// Refresh runs one cycle and publishes its snapshot. Upstream failures never fail
// the cycle; they are recorded as warnings. Concurrent callers share one cycle.
// A caller whose ctx ends early gets ctx.Err(); the shared cycle still completes
// under its own fetch timeout and publishes normally.
func (s *Service) Refresh(ctx context.Context) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := s.group.DoChan("refresh", func() (interface{}, error) {
		return s.runCycle(context.WithoutCancel(ctx)), nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Snapshot), nil
	case <-ctx.Done():
		s.logger.Debug().Err(ctx.Err()).Msg("Refresh caller gone, cycle continues in background")
		return nil, ctx.Err()
	}
}

// Snapshot returns the latest snapshot, running a first cycle if none exists.
func (s *Service) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	if snap := s.current.Load(); snap != nil {
		return snap, nil
	}
	return s.Refresh(ctx)
}

// Invalidate drops cached quotes and news.
func (s *Service) Invalidate() {
	s.quotes.Invalidate()
	s.news.Invalidate()
	s.logger.Debug().Msg("Dashboard caches invalidated")
}

func (s *Service) runCycle(ctx context.Context) *models.Snapshot {
	start := time.Now()
	cycleID := uuid.New().String()

	var (
		quoteResult quotes.FetchResult
		newsResult  news.CollectResult
		quotesLate  bool
		newsLate    bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		quoteResult, quotesLate = withDeadline(gctx, s.timeout,
			func(c context.Context) quotes.FetchResult { return s.quotes.Fetch(c, s.symbols) },
			func() quotes.FetchResult { return sentinelQuotes(s.symbols) },
		)
		return nil
	})
	g.Go(func() error {
		newsResult, newsLate = withDeadline(gctx, s.timeout,
			s.news.Collect,
			func() news.CollectResult { return emptyNews(s.topics) },
		)
		return nil
	})
	_ = g.Wait()

	verdicts := s.engine.EvaluateAll(s.profiles, scoring.Inputs{
		Quotes:    quoteResult.Quotes,
		Sentiment: newsResult.Sentiment(),
	})

	var warnings []string
	if quotesLate {
		warnings = append(warnings, fmt.Sprintf("quote fetch exceeded %s", s.timeout))
	} else if len(quoteResult.Missing) > 0 {
		warnings = append(warnings, "quotes unavailable: "+strings.Join(quoteResult.Missing, ", "))
	}
	if len(quoteResult.Substituted) > 0 {
		warnings = append(warnings, "proxy quotes used for: "+strings.Join(quoteResult.Substituted, ", "))
	}
	if newsLate {
		warnings = append(warnings, fmt.Sprintf("news collection exceeded %s", s.timeout))
	} else if len(newsResult.Failed) > 0 {
		warnings = append(warnings, "news sources failed: "+strings.Join(newsResult.Failed, ", "))
	}

	elapsed := time.Since(start)
	snap := &models.Snapshot{
		CycleID:     cycleID,
		GeneratedAt: time.Now().UTC(),
		Duration:    elapsed.Round(time.Millisecond).String(),
		Quotes:      quoteResult.Quotes,
		Verdicts:    verdicts,
		News:        newsResult.Topics,
		Feed:        newsResult.Feed,
		Warnings:    warnings,
	}
	s.current.Store(snap)

	event := s.logger.Info().
		Str("cycle_id", cycleID).
		Dur("duration", elapsed).
		Bool("quotes_cached", quoteResult.Cached).
		Bool("news_cached", newsResult.Cached).
		Int("warnings", len(warnings))
	for _, v := range verdicts {
		event.Int(strings.ToLower(v.Asset), v.Score)
	}
	event.Msg("Refresh cycle completed")

	for _, w := range warnings {
		s.logger.Warn().Str("cycle_id", cycleID).Msg(w)
	}

	return snap
}

// withDeadline runs fn bounded by timeout. When the deadline passes first the
// fallback value is returned and fn's eventual result is discarded.
func withDeadline[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) T, fallback func() T) (T, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan T, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case v := <-done:
		return v, false
	case <-ctx.Done():
		return fallback(), true
	}
}

// RequiredSymbols is the sorted union of every profile's symbols, the proxy
// fallbacks and the display-only extras.
func RequiredSymbols(profiles []models.Profile, config common.QuotesConfig) []string {
	seen := make(map[string]bool)
	add := func(symbol string) {
		if symbol != "" {
			seen[symbol] = true
		}
	}

	for _, p := range profiles {
		for _, symbol := range p.Symbols() {
			add(symbol)
		}
	}
	for _, proxy := range config.Proxies {
		add(proxy.Fallback)
	}
	for _, symbol := range config.ExtraSymbols {
		add(symbol)
	}

	out := make([]string, 0, len(seen))
	for symbol := range seen {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

func sentinelQuotes(symbols []string) quotes.FetchResult {
	return quotes.FetchResult{
		Quotes:  quotes.Normalize(nil, symbols),
		Missing: append([]string(nil), symbols...),
	}
}

func emptyNews(topics []models.Topic) news.CollectResult {
	result := news.CollectResult{Result: news.Result{Feed: []models.NewsItem{}}}
	for _, t := range topics {
		result.Topics = append(result.Topics, models.TopicNews{Topic: t, Items: []models.NewsItem{}})
	}
	return result
}
