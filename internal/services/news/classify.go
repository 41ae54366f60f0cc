// Package news collects headlines from the configured feeds and classifies them
// into topic buckets with relevance and sentiment scores.
package news

import (
	"sort"
	"strings"
	"unicode"

	"github.com/ternarybob/macrobias/internal/common"
	"github.com/ternarybob/macrobias/internal/interfaces"
	"github.com/ternarybob/macrobias/internal/models"
)

// Result is the output of one classification pass.
type Result struct {
	Topics []models.TopicNews `json:"topics"`
	Feed   []models.NewsItem  `json:"feed"` // Every relevant article, highest relevance first
}

// Sentiment returns the mean compound sentiment of each topic bucket.
func (r Result) Sentiment() map[models.Topic]float64 {
	out := make(map[models.Topic]float64, len(r.Topics))
	for _, tn := range r.Topics {
		out[tn.Topic] = tn.Sentiment
	}
	return out
}

// Classifier scores relevance, assigns topics and attaches sentiment.
// It holds no state between calls.
type Classifier struct {
	config rules
	scorer interfaces.SentimentScorer
}

// rules is the lowercased, ready-to-match form of common.ClassifierConfig.
type rules struct {
	HighWeight               int
	MidWeight                int
	BlockPenalty             int
	MinRelevance             int
	PrimaryTopic             models.Topic
	PrimaryFallbackRelevance int
	PositiveThreshold        float64
	NegativeThreshold        float64
	High                     []string
	Mid                      []string
	Blocklist                []string
	Topics                   []topicLexicon
}

type topicLexicon struct {
	topic    models.Topic
	keywords []string
}

// NewClassifier creates a classifier from configuration.
func NewClassifier(config common.ClassifierConfig, scorer interfaces.SentimentScorer) *Classifier {
	r := rules{
		HighWeight:               config.HighWeight,
		MidWeight:                config.MidWeight,
		BlockPenalty:             config.BlockPenalty,
		MinRelevance:             config.MinRelevance,
		PrimaryTopic:             config.PrimaryTopic,
		PrimaryFallbackRelevance: config.PrimaryFallbackRelevance,
		PositiveThreshold:        config.PositiveThreshold,
		NegativeThreshold:        config.NegativeThreshold,
		High:                     lowerAll(config.HighKeywords),
		Mid:                      lowerAll(config.MidKeywords),
		Blocklist:                lowerAll(config.Blocklist),
	}
	if r.PositiveThreshold == 0 && r.NegativeThreshold == 0 {
		r.PositiveThreshold = 0.05
		r.NegativeThreshold = -0.05
	}
	for _, tc := range config.Topics {
		r.Topics = append(r.Topics, topicLexicon{topic: tc.Topic, keywords: lowerAll(tc.Keywords)})
	}
	return &Classifier{config: r, scorer: scorer}
}

// TopicNames returns the configured topics in configuration order.
func (c *Classifier) TopicNames() []models.Topic {
	out := make([]models.Topic, 0, len(c.config.Topics))
	for _, t := range c.config.Topics {
		out = append(out, t.topic)
	}
	return out
}

// Relevance returns the signed keyword score of text.
// Each distinct keyword counts once: +HighWeight, +MidWeight, or -BlockPenalty.
func (c *Classifier) Relevance(text string) int {
	normalized := normalizeText(text)
	score := 0
	score += c.config.HighWeight * countMatches(normalized, c.config.High)
	score += c.config.MidWeight * countMatches(normalized, c.config.Mid)
	score -= c.config.BlockPenalty * countMatches(normalized, c.config.Blocklist)
	return score
}

// Label maps a compound score to POS (>= positive threshold), NEG (<= negative threshold) or NEU.
func (c *Classifier) Label(compound float64) models.SentimentLabel {
	switch {
	case compound >= c.config.PositiveThreshold:
		return models.SentimentPositive
	case compound <= c.config.NegativeThreshold:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

// Classify filters, deduplicates and buckets articles. Every configured topic is
// present in the result; an empty bucket has sentiment 0.
func (c *Classifier) Classify(articles []models.NewsItem) Result {
	buckets := make(map[models.Topic][]models.NewsItem, len(c.config.Topics))
	seen := make(map[string]bool, len(articles))
	var feed []models.NewsItem

	for _, article := range articles {
		if seen[article.Title] {
			continue
		}
		seen[article.Title] = true

		text := article.Title + " " + article.Summary
		article.Relevance = c.Relevance(text)
		if article.Relevance < c.config.MinRelevance {
			continue
		}

		article.Topics = c.assignTopics(text, article.Relevance)
		if c.scorer != nil {
			article.Compound = clampUnit(c.scorer.Compound(article.Title))
		}
		article.Sentiment = c.Label(article.Compound)

		feed = append(feed, article)
		for _, topic := range article.Topics {
			buckets[topic] = append(buckets[topic], article)
		}
	}

	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].Relevance > feed[j].Relevance
	})

	result := Result{Feed: feed}
	if result.Feed == nil {
		result.Feed = []models.NewsItem{}
	}
	for _, t := range c.config.Topics {
		items := buckets[t.topic]
		if items == nil {
			items = []models.NewsItem{}
		}
		result.Topics = append(result.Topics, models.TopicNews{
			Topic:     t.topic,
			Items:     items,
			Sentiment: MeanSentiment(items),
		})
	}
	return result
}

// assignTopics returns every topic whose lexicon matches text. Untagged articles
// join the primary topic when their relevance exceeds PrimaryFallbackRelevance.
func (c *Classifier) assignTopics(text string, relevance int) []models.Topic {
	normalized := normalizeText(text)
	var topics []models.Topic
	for _, t := range c.config.Topics {
		if countMatches(normalized, t.keywords) > 0 {
			topics = append(topics, t.topic)
		}
	}
	if len(topics) == 0 && c.config.PrimaryTopic != "" && relevance > c.config.PrimaryFallbackRelevance {
		topics = append(topics, c.config.PrimaryTopic)
	}
	return topics
}

// MeanSentiment is the arithmetic mean of item compounds, exactly 0 for no items.
func MeanSentiment(items []models.NewsItem) float64 {
	if len(items) == 0 {
		return 0
	}
	sum := 0.0
	for _, item := range items {
		sum += item.Compound
	}
	return sum / float64(len(items))
}

// normalizeText lowercases text and pads it with spaces so keywords can be
// matched on word boundaries.
func normalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 2)
	b.WriteByte(' ')
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '&' {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	b.WriteByte(' ')
	return b.String()
}

// countMatches counts distinct keywords found as whole words in normalized text.
func countMatches(normalized string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if containsWord(normalized, kw) {
			n++
		}
	}
	return n
}

// containsWord reports whether kw occurs in text delimited by spaces or sentence
// punctuation, so "uk" does not match "ukraine" and "fed" does not match "federal".
// A plural "s"/"es" suffix still matches: "rates" for "rate", "tariffs" for "tariff".
func containsWord(text, kw string) bool {
	for offset := 0; ; {
		i := strings.Index(text[offset:], kw)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(kw)
		if isBoundary(text, start-1) && wordEnds(text, kw, end) {
			return true
		}
		offset = start + 1
	}
}

// wordEnds reports whether a keyword match ending at i ends a word, allowing a plural suffix.
func wordEnds(text, kw string, i int) bool {
	if isBoundary(text, i) || isTrailingDot(text, i) {
		return true
	}
	if strings.HasSuffix(kw, ".") {
		return false
	}
	for _, suffix := range []string{"s", "es"} {
		if strings.HasPrefix(text[i:], suffix) {
			j := i + len(suffix)
			if isBoundary(text, j) || isTrailingDot(text, j) {
				return true
			}
		}
	}
	return false
}

func isBoundary(text string, i int) bool {
	return i < 0 || i >= len(text) || text[i] == ' '
}

// isTrailingDot accepts a sentence-ending period after a keyword ("... the fed.")
func isTrailingDot(text string, i int) bool {
	return i < len(text) && text[i] == '.' && isBoundary(text, i+1)
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
