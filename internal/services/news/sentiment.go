package news

import (
	"strings"
	"sync"

	"github.com/jonreiter/govader"
	"github.com/ternarybob/macrobias/internal/interfaces"
)

// VaderScorer scores headlines with the VADER lexicon and heuristics
// (negation, intensifiers, caps emphasis, "but" shifts).
type VaderScorer struct {
	mu       sync.Mutex
	analyzer *govader.SentimentIntensityAnalyzer
}

var _ interfaces.SentimentScorer = (*VaderScorer)(nil)

// NewVaderScorer loads the VADER lexicon.
func NewVaderScorer() *VaderScorer {
	return &VaderScorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Compound returns VADER's normalised compound score in [-1, 1]. Blank text is 0.
func (s *VaderScorer) Compound(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analyzer.PolarityScores(text).Compound
}
