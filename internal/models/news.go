package models

import "time"

// Topic is a named bucket of news relevant to one tracked asset's macro drivers.
type Topic string

const (
	TopicUS   Topic = "US"
	TopicUKJP Topic = "UK_JP"
)

// SentimentLabel classifies a compound polarity score
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "POS"
	SentimentNeutral  SentimentLabel = "NEU"
	SentimentNegative SentimentLabel = "NEG"
)

// NewsItem is one headline plus the attributes derived by the classifier.
type NewsItem struct {
	Title         string    `json:"title"`
	Link          string    `json:"link"`
	Published     time.Time `json:"published"`
	PublishedText string    `json:"published_text"` // Display form, "Just now" when the feed omits it
	Summary       string    `json:"summary"`
	Source        string    `json:"source"`

	// Derived by the classifier
	Relevance int            `json:"relevance"`
	Topics    []Topic        `json:"topics"`
	Sentiment SentimentLabel `json:"sentiment"`
	Compound  float64        `json:"compound"`
}

// HasTopic reports whether the item was tagged with topic.
func (n NewsItem) HasTopic(topic Topic) bool {
	for _, t := range n.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// TopicNews is the classified article list for one topic bucket.
type TopicNews struct {
	Topic     Topic      `json:"topic"`
	Items     []NewsItem `json:"items"`
	Sentiment float64    `json:"sentiment"` // Mean compound, 0 when Items is empty
}
