package interfaces

import (
	"context"

	"github.com/ternarybob/macrobias/internal/models"
)

// QuoteSource returns trailing closing prices per symbol, oldest first.
// Symbols the source could not resolve are omitted from the result.
type QuoteSource interface {
	Name() string
	Closes(ctx context.Context, symbols []string, window string) (map[string][]float64, error)
}

// NewsSource fetches raw articles from one feed
type NewsSource interface {
	Name() string
	Fetch(ctx context.Context) ([]models.NewsItem, error)
}

// SentimentScorer returns a compound polarity score in [-1, 1] for text.
type SentimentScorer interface {
	Compound(text string) float64
}
