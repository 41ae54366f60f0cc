package quotes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrobias/internal/common"
	"github.com/ternarybob/macrobias/internal/interfaces"
	"github.com/ternarybob/macrobias/internal/models"
	"github.com/ternarybob/macrobias/internal/services/cache"
)

// CachePrefix namespaces quote entries in the shared cache.
const CachePrefix = "quotes:"

// FetchResult is the normalized quote set for one request.
type FetchResult struct {
	Quotes      map[string]models.Quote
	Missing     []string // Requested symbols that fell back to the {0,0} sentinel
	Substituted []string // Primary symbols replaced by their configured fallback
	Cached      bool
}

// Service fetches closes from a QuoteSource and normalizes them.
type Service struct {
	source interfaces.QuoteSource
	cache  *cache.Service
	config *common.QuotesConfig
	logger arbor.ILogger
}

// NewService creates a new quote service.
func NewService(source interfaces.QuoteSource, cacheService *cache.Service, config *common.QuotesConfig, logger arbor.ILogger) *Service {
	return &Service{
		source: source,
		cache:  cacheService,
		config: config,
		logger: logger,
	}
}

// Fetch returns one quote per requested symbol. It never fails: upstream errors
// degrade to the {0,0} sentinel for the affected symbols.
func (s *Service) Fetch(ctx context.Context, symbols []string) FetchResult {
	requested := uniqueSorted(symbols)
	fetchSet := s.withFallbacks(requested)
	key := CacheKey(s.config.Window, fetchSet)
	ttl := common.ParseDurationOr(s.config.CacheTTL, 120*time.Second)

	set, hit, err := cache.GetOrLoad(s.cache, key, ttl, func() (*quoteSet, error) {
		return s.load(ctx, fetchSet)
	})
	switch {
	case errors.Is(err, errIncomplete):
		s.logger.Warn().
			Err(err).
			Str("source", s.source.Name()).
			Msg("Partial quote fetch, result used but not cached")
	case err != nil:
		s.logger.Warn().
			Err(err).
			Str("source", s.source.Name()).
			Int("symbols", len(fetchSet)).
			Msg("Quote fetch failed, using sentinel quotes")
		set = &quoteSet{quotes: Normalize(nil, fetchSet)}
	}

	result := FetchResult{
		Quotes: make(map[string]models.Quote, len(requested)),
		Cached: hit,
	}
	for _, symbol := range requested {
		q, ok := set.quotes[symbol]
		if !ok {
			q = models.Quote{Symbol: symbol}
		}
		result.Quotes[symbol] = q
		if q.IsZero() {
			result.Missing = append(result.Missing, symbol)
		}
	}
	for _, symbol := range set.substituted {
		if _, ok := result.Quotes[symbol]; ok {
			result.Substituted = append(result.Substituted, symbol)
		}
	}

	return result
}

// Invalidate drops every cached quote set.
func (s *Service) Invalidate() {
	s.cache.InvalidatePrefix(CachePrefix)
}

// errIncomplete marks a load whose data is usable for this request but must not
// be cached: the source failed part-way or ctx ended before every symbol arrived.
var errIncomplete = errors.New("incomplete quote fetch")

// quoteSet is the cached value; it is never mutated after caching.
type quoteSet struct {
	quotes      map[string]models.Quote
	substituted []string
}

// load fetches and normalizes fetchSet.
func (s *Service) load(ctx context.Context, fetchSet []string) (set *quoteSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("quote source %s panicked: %v", s.source.Name(), r)
		}
	}()

	start := time.Now()
	series, err := s.source.Closes(ctx, fetchSet, s.config.Window)
	if err != nil && len(series) == 0 {
		return nil, err
	}
	if err == nil && ctx.Err() != nil && len(series) < len(fetchSet) {
		err = ctx.Err()
	}

	quotes := Normalize(series, fetchSet)
	substituted := ApplyProxies(quotes, s.config.Proxies)
	for _, symbol := range substituted {
		s.logger.Debug().
			Str("symbol", symbol).
			Str("price", fmt.Sprintf("%.4f", quotes[symbol].Price)).
			Msg("Substituted proxy fallback for near-zero price")
	}

	s.logger.Debug().
		Str("source", s.source.Name()).
		Int("requested", len(fetchSet)).
		Int("returned", len(series)).
		Dur("duration", time.Since(start)).
		Msg("Quotes fetched")

	set = &quoteSet{quotes: quotes, substituted: substituted}
	if err != nil {
		return set, fmt.Errorf("%w: %w", errIncomplete, err)
	}
	return set, nil
}

// withFallbacks adds the fallback symbol of every proxy whose primary is requested.
func (s *Service) withFallbacks(requested []string) []string {
	set := append([]string(nil), requested...)
	for _, p := range s.config.Proxies {
		for _, symbol := range requested {
			if symbol == p.Symbol {
				set = append(set, p.Fallback)
				break
			}
		}
	}
	return uniqueSorted(set)
}

// CacheKey identifies a quote set by window and instrument set.
func CacheKey(window string, symbols []string) string {
	return CachePrefix + window + ":" + strings.Join(uniqueSorted(symbols), ",")
}

func uniqueSorted(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
