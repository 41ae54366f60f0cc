package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and logs the effective runtime settings
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.Print("MacroBias", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Str("quote_provider", config.Quotes.Provider).
		Int("feeds", len(config.News.Feeds)).
		Bool("scheduler", config.Scheduler.Enabled).
		Msg("MacroBias starting")
}
