// Package common provides shared utilities and default configuration.
package common

import "github.com/ternarybob/macrobias/internal/models"

// DefaultClassifierConfig returns the relevance weights and lexicons used when
// the config file does not supply its own.
// This is the single source of truth for default keyword sets.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		HighWeight:               3,
		MidWeight:                1,
		BlockPenalty:             10,
		MinRelevance:             1,
		PrimaryTopic:             models.TopicUS,
		PrimaryFallbackRelevance: 3,
		PositiveThreshold:        0.05,
		NegativeThreshold:        -0.05,
		HighKeywords: []string{
			"inflation", "cpi", "interest rate", "rate hike", "rate cut", "yield",
			"treasury", "recession", "gdp", "payrolls", "jobs report", "unemployment",
			"central bank", "monetary policy", "tariff",
		},
		MidKeywords: []string{
			"economy", "economic", "stocks", "market", "dollar", "bond", "growth",
			"spending", "consumer", "manufacturing", "housing", "oil", "earnings",
		},
		Blocklist: []string{
			"celebrity", "kardashian", "taylor swift", "royal wedding", "oscars",
			"box office", "netflix series", "bitcoin", "crypto", "dogecoin", "nft",
			"memecoin",
		},
		Topics: []TopicConfig{
			{
				Topic: models.TopicUS,
				Keywords: []string{
					"fed", "federal reserve", "powell", "u.s.", "us economy", "wall street",
					"dow", "s&p", "nasdaq", "treasury", "white house",
				},
			},
			{
				Topic: models.TopicUKJP,
				Keywords: []string{
					"bank of england", "boe", "bailey", "uk", "britain", "british", "sterling",
					"pound", "gilt", "bank of japan", "boj", "ueda", "japan", "yen", "nikkei",
				},
			},
		},
	}
}
