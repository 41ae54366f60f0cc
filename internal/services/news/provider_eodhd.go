package news

import (
	"context"
	"fmt"

	"github.com/ternarybob/macrobias/internal/eodhd"
	"github.com/ternarybob/macrobias/internal/interfaces"
	"github.com/ternarybob/macrobias/internal/models"
)

// EODHDSource adapts the EODHD news endpoint to a NewsSource.
// Upstream sentiment is ignored; every headline is scored by the same analyzer.
type EODHDSource struct {
	client  *eodhd.Client
	symbols []string
	limit   int
}

var _ interfaces.NewsSource = (*EODHDSource)(nil)

// NewEODHDSource creates a news source for symbols.
func NewEODHDSource(client *eodhd.Client, symbols []string, limit int) *EODHDSource {
	return &EODHDSource{client: client, symbols: symbols, limit: limit}
}

// Name identifies the source in logs.
func (s *EODHDSource) Name() string {
	return "eodhd-news"
}

// Fetch retrieves the latest articles for the configured symbols.
func (s *EODHDSource) Fetch(ctx context.Context) ([]models.NewsItem, error) {
	if len(s.symbols) == 0 {
		return nil, fmt.Errorf("eodhd news: no symbols configured")
	}

	var opts []eodhd.QueryOption
	if s.limit > 0 {
		opts = append(opts, eodhd.WithLimit(s.limit))
	}

	resp, err := s.client.GetNews(ctx, s.symbols, opts...)
	if err != nil {
		return nil, fmt.Errorf("eodhd news: %w", err)
	}

	items := make([]models.NewsItem, 0, len(resp))
	for _, n := range resp {
		if n.Title == "" {
			continue
		}
		items = append(items, models.NewsItem{
			Title:         n.Title,
			Link:          n.Link,
			Published:     n.Date,
			PublishedText: PublishedText(n.DateStr),
			Summary:       StripHTML(truncate(n.Content, 600)),
			Source:        s.Name(),
		})
	}
	return items, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
