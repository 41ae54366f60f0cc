package news

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrobias/internal/common"
	"github.com/ternarybob/macrobias/internal/interfaces"
	"github.com/ternarybob/macrobias/internal/models"
	"github.com/ternarybob/macrobias/internal/services/cache"
	"golang.org/x/sync/errgroup"
)

// CachePrefix namespaces news entries in the shared cache.
const CachePrefix = "news:"

// CollectResult is the classified news for one cycle.
type CollectResult struct {
	Result
	Failed []string // Sources that errored this cycle
	Cached bool
}

// Service fetches every configured source, merges and classifies the articles.
type Service struct {
	sources    []interfaces.NewsSource
	classifier *Classifier
	cache      *cache.Service
	config     *common.NewsConfig
	logger     arbor.ILogger
}

// NewService creates a new news service.
func NewService(sources []interfaces.NewsSource, classifier *Classifier, cacheService *cache.Service, config *common.NewsConfig, logger arbor.ILogger) *Service {
	return &Service{
		sources:    sources,
		classifier: classifier,
		cache:      cacheService,
		config:     config,
		logger:     logger,
	}
}

type collected struct {
	result Result
	failed []string
}

// Collect returns classified news. It never fails: when every source errors the
// result has empty buckets and zero sentiment.
func (s *Service) Collect(ctx context.Context) CollectResult {
	ttl := common.ParseDurationOr(s.config.CacheTTL, 600*time.Second)

	c, hit, err := cache.GetOrLoad(s.cache, s.cacheKey(), ttl, func() (*collected, error) {
		return s.load(ctx)
	})
	if err != nil {
		s.logger.Warn().Err(err).Int("sources", len(s.sources)).Msg("News unavailable, using empty result")
		return CollectResult{
			Result: s.classifier.Classify(nil),
			Failed: s.sourceNames(),
		}
	}

	return CollectResult{Result: c.result, Failed: c.failed, Cached: hit}
}

// Invalidate drops cached news.
func (s *Service) Invalidate() {
	s.cache.InvalidatePrefix(CachePrefix)
}

// load fetches all sources in parallel and classifies the merged list.
// An error is returned only when every source failed, so total outages are not cached.
func (s *Service) load(ctx context.Context) (*collected, error) {
	if len(s.sources) == 0 {
		return &collected{result: s.classifier.Classify(nil)}, nil
	}

	timeout := common.ParseDurationOr(s.config.Timeout, 10*time.Second)
	perSource := make([][]models.NewsItem, len(s.sources))
	errs := make([]error, len(s.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, source := range s.sources {
		i, source := i, source
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()
			perSource[i], errs[i] = fetchSafely(fctx, source)
			return nil
		})
	}
	_ = g.Wait()

	var (
		merged []models.NewsItem
		failed []string
		last   error
	)
	for i, source := range s.sources {
		if errs[i] != nil {
			s.logger.Warn().Err(errs[i]).Str("source", source.Name()).Msg("News source failed")
			failed = append(failed, source.Name())
			last = errs[i]
			continue
		}
		merged = append(merged, perSource[i]...)
	}

	if len(failed) == len(s.sources) {
		return nil, fmt.Errorf("all %d news sources failed: %w", len(s.sources), last)
	}

	result := s.classifier.Classify(merged)

	event := s.logger.Debug().
		Int("articles", len(merged)).
		Int("relevant", len(result.Feed))
	for _, tn := range result.Topics {
		event.Int(strings.ToLower(string(tn.Topic)), len(tn.Items))
	}
	event.Msg("News classified")

	return &collected{result: result, failed: failed}, nil
}

// fetchSafely converts a panicking source into an error.
func fetchSafely(ctx context.Context, source interfaces.NewsSource) (items []models.NewsItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("news source %s panicked: %v", source.Name(), r)
		}
	}()
	return source.Fetch(ctx)
}

func (s *Service) cacheKey() string {
	return CachePrefix + strings.Join(s.sourceNames(), ",")
}

func (s *Service) sourceNames() []string {
	names := make([]string, len(s.sources))
	for i, source := range s.sources {
		names[i] = source.Name()
	}
	return names
}
