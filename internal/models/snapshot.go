package models

import "time"

// Snapshot is the immutable output of one refresh cycle.
type Snapshot struct {
	CycleID     string           `json:"cycle_id"`
	GeneratedAt time.Time        `json:"generated_at"`
	Duration    string           `json:"duration"`
	Quotes      map[string]Quote `json:"quotes"`
	Verdicts    []Verdict        `json:"verdicts"`
	News        []TopicNews      `json:"news"`
	Feed        []NewsItem       `json:"feed"`
	Warnings    []string         `json:"warnings,omitempty"`
}

// Verdict returns the verdict for asset, or false if it was not scored.
func (s *Snapshot) Verdict(asset string) (Verdict, bool) {
	for _, v := range s.Verdicts {
		if v.Asset == asset {
			return v, true
		}
	}
	return Verdict{}, false
}

// TopicNews returns the bucket for topic. A missing bucket is returned empty.
func (s *Snapshot) TopicNews(topic Topic) TopicNews {
	for _, tn := range s.News {
		if tn.Topic == topic {
			return tn
		}
	}
	return TopicNews{Topic: topic, Items: []NewsItem{}}
}

// CalendarWidget describes the third-party economic calendar the presentation layer embeds.
type CalendarWidget struct {
	Provider   string   `json:"provider"`
	Currencies []string `json:"currencies"`
	Timezone   string   `json:"timezone"`
	Importance []string `json:"importance"`
}
