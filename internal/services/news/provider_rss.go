package news

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrobias/internal/common"
	"github.com/ternarybob/macrobias/internal/interfaces"
	"github.com/ternarybob/macrobias/internal/models"
)

const (
	// publishedTextLen keeps "Mon, 06 Jan 2025" from RFC1123 pubDates
	publishedTextLen = 16

	// justNow is shown when a feed entry carries no publish time
	justNow = "Just now"

	maxFeedBytes = 5 << 20
)

// RSSSource fetches one RSS/Atom feed.
type RSSSource struct {
	feed       common.FeedConfig
	httpClient *http.Client
	parser     *gofeed.Parser
	logger     arbor.ILogger
}

// Compile-time assertion
var _ interfaces.NewsSource = (*RSSSource)(nil)

// NewRSSSource creates a feed source.
func NewRSSSource(feed common.FeedConfig, httpClient *http.Client, logger arbor.ILogger) *RSSSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &RSSSource{
		feed:       feed,
		httpClient: httpClient,
		parser:     gofeed.NewParser(),
		logger:     logger,
	}
}

// Name returns the configured feed name.
func (s *RSSSource) Name() string {
	return s.feed.Name
}

// Fetch downloads and parses the feed. Entries keep feed order; MaxItems > 0
// truncates to the first MaxItems entries.
func (s *RSSSource) Fetch(ctx context.Context) ([]models.NewsItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "macrobias/1.0 (+rss)")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", s.feed.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned status %d", s.feed.Name, resp.StatusCode)
	}

	parsed, err := s.parser.Parse(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", s.feed.Name, err)
	}

	entries := parsed.Items
	if s.feed.MaxItems > 0 && len(entries) > s.feed.MaxItems {
		entries = entries[:s.feed.MaxItems]
	}

	items := make([]models.NewsItem, 0, len(entries))
	for _, entry := range entries {
		if entry == nil || strings.TrimSpace(entry.Title) == "" {
			continue
		}
		items = append(items, s.toNewsItem(entry))
	}

	if s.logger != nil {
		s.logger.Debug().
			Str("feed", s.feed.Name).
			Int("entries", len(parsed.Items)).
			Int("kept", len(items)).
			Msg("Feed parsed")
	}

	return items, nil
}

func (s *RSSSource) toNewsItem(entry *gofeed.Item) models.NewsItem {
	item := models.NewsItem{
		Title:   strings.TrimSpace(entry.Title),
		Link:    entry.Link,
		Summary: StripHTML(entry.Description),
		Source:  s.feed.Name,
	}

	switch {
	case entry.PublishedParsed != nil:
		item.Published = entry.PublishedParsed.UTC()
	case entry.UpdatedParsed != nil:
		item.Published = entry.UpdatedParsed.UTC()
	}
	item.PublishedText = PublishedText(entry.Published)
	if item.PublishedText == justNow && entry.Updated != "" {
		item.PublishedText = PublishedText(entry.Updated)
	}

	return item
}

// PublishedText is the display form of a raw feed date: its first 16 characters,
// or "Just now" when the feed omits it.
func PublishedText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return justNow
	}
	runes := []rune(raw)
	if len(runes) > publishedTextLen {
		runes = runes[:publishedTextLen]
	}
	return string(runes)
}

// StripHTML returns the visible text of an HTML fragment with whitespace collapsed.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
