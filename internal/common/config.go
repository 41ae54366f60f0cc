package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/ternarybob/macrobias/internal/models"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	Quotes      QuotesConfig    `toml:"quotes"`
	News        NewsConfig      `toml:"news"`
	Scoring     ScoringConfig   `toml:"scoring"`
	Dashboard   DashboardConfig `toml:"dashboard"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	EODHD       EODHDConfig     `toml:"eodhd"`
	Calendar    CalendarConfig  `toml:"calendar"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=1,lte=65535"`
	Host string `toml:"host" validate:"required"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=trace debug info warn error"` // "debug", "info", "warn", "error"
	Format string   `toml:"format"`                                             // "json" or "text"
	Output []string `toml:"output"`                                             // "stdout", "file"
}

// QuotesConfig controls the quote source and normalizer
type QuotesConfig struct {
	Provider     string        `toml:"provider" validate:"oneof=yahoo eodhd"` // Upstream quote provider
	Window       string        `toml:"window" validate:"required"`            // Trailing window, e.g. "5d"
	CacheTTL     string        `toml:"cache_ttl"`                             // e.g. "120s"
	ExtraSymbols []string      `toml:"extra_symbols"`                         // Display-only symbols fetched alongside scored ones
	Proxies      []ProxyConfig `toml:"proxies" validate:"dive"`
	Yahoo        YahooConfig   `toml:"yahoo"`
}

// ProxyConfig substitutes Fallback for Symbol when Symbol's price is below MinPrice.
// Used for upstream series with a known near-zero data defect.
type ProxyConfig struct {
	Symbol   string  `toml:"symbol" validate:"required"`
	Fallback string  `toml:"fallback" validate:"required,nefield=Symbol"`
	MinPrice float64 `toml:"min_price" validate:"gte=0"`
}

type YahooConfig struct {
	BaseURL   string `toml:"base_url" validate:"required,url"`
	Timeout   string `toml:"timeout"`
	RateLimit int    `toml:"rate_limit" validate:"gte=1"` // Requests per second
}

// NewsConfig controls news collection and classification
type NewsConfig struct {
	CacheTTL   string           `toml:"cache_ttl"` // e.g. "600s"
	Feeds      []FeedConfig     `toml:"feeds" validate:"dive"`
	EODHDNews  bool             `toml:"eodhd_news"` // Also pull news from EODHD (requires eodhd.api_key)
	Timeout    string           `toml:"timeout"`
	Classifier ClassifierConfig `toml:"classifier"`
}

type FeedConfig struct {
	Name     string `toml:"name" validate:"required"`
	URL      string `toml:"url" validate:"required,url"`
	MaxItems int    `toml:"max_items" validate:"gte=0"` // 0 = all entries
}

// ClassifierConfig holds relevance weights and keyword lexicons
type ClassifierConfig struct {
	HighWeight               int           `toml:"high_weight"`
	MidWeight                int           `toml:"mid_weight"`
	BlockPenalty             int           `toml:"block_penalty" validate:"gte=0"`
	MinRelevance             int           `toml:"min_relevance"`
	PrimaryTopic             models.Topic  `toml:"primary_topic" validate:"required"`
	PrimaryFallbackRelevance int           `toml:"primary_fallback_relevance"` // Untagged articles above this join the primary topic
	PositiveThreshold        float64       `toml:"positive_threshold"`
	NegativeThreshold        float64       `toml:"negative_threshold"`
	HighKeywords             []string      `toml:"high_keywords"`
	MidKeywords              []string      `toml:"mid_keywords"`
	Blocklist                []string      `toml:"blocklist"`
	Topics                   []TopicConfig `toml:"topics" validate:"dive"`
}

type TopicConfig struct {
	Topic    models.Topic `toml:"topic" validate:"required"`
	Keywords []string     `toml:"keywords" validate:"min=1"`
}

// ScoringConfig selects the scoring profiles.
// Precedence: ProfileFile, then Profiles, then the built-in defaults.
type ScoringConfig struct {
	ProfileFile string           `toml:"profile_file"` // .yaml/.yml or .toml rule tables
	Profiles    []models.Profile `toml:"profiles" validate:"dive"`
}

type DashboardConfig struct {
	FetchTimeout string `toml:"fetch_timeout"` // Upper bound for each upstream fetch in a cycle
}

type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron expression or descriptor, e.g. "@every 2m"
}

type EODHDConfig struct {
	APIKey      string            `toml:"api_key"`
	BaseURL     string            `toml:"base_url" validate:"required,url"`
	RateLimit   int               `toml:"rate_limit" validate:"gte=1"`
	SymbolMap   map[string]string `toml:"symbol_map"`   // Dashboard symbol -> EODHD symbol
	NewsSymbols []string          `toml:"news_symbols"` // Tickers passed to the news endpoint
	NewsLimit   int               `toml:"news_limit" validate:"gte=0"`
}

type CalendarConfig struct {
	Provider   string   `toml:"provider"`
	Currencies []string `toml:"currencies"`
	Timezone   string   `toml:"timezone"`
	Importance []string `toml:"importance"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8501,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout"},
		},
		Quotes: QuotesConfig{
			Provider: "yahoo",
			Window:   "5d",
			CacheTTL: "120s",
			ExtraSymbols: []string{
				"DX-Y.NYB", // Dollar index
				"^DJI",     // Dow Jones
			},
			Proxies: []ProxyConfig{
				// DX-Y.NYB intermittently reports zero closes upstream; the futures contract tracks it
				{Symbol: "DX-Y.NYB", Fallback: "DX=F", MinPrice: 0.01},
			},
			Yahoo: YahooConfig{
				BaseURL:   "https://query1.finance.yahoo.com",
				Timeout:   "10s",
				RateLimit: 5,
			},
		},
		News: NewsConfig{
			CacheTTL: "600s",
			Timeout:  "10s",
			Feeds: []FeedConfig{
				{Name: "CNBC Economy", URL: "https://www.cnbc.com/id/10000664/device/rss/rss.html", MaxItems: 0},
			},
			Classifier: DefaultClassifierConfig(),
		},
		Dashboard: DashboardConfig{
			FetchTimeout: "15s",
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Schedule: "@every 2m",
		},
		EODHD: EODHDConfig{
			BaseURL:   "https://eodhd.com/api",
			RateLimit: 10,
			SymbolMap: map[string]string{
				"^TNX":     "TNX.INDX",
				"^VIX":     "VIX.INDX",
				"^DJI":     "DJI.INDX",
				"DX-Y.NYB": "DXY.INDX",
				"GBPUSD=X": "GBPUSD.FOREX",
				"JPY=X":    "USDJPY.FOREX",
				"DX=F":     "DX.COMM",
				"XLK":      "XLK.US",
				"XLU":      "XLU.US",
				"CL=F":     "CL.COMM",
			},
			NewsSymbols: []string{"DIA.US", "FXB.US", "FXY.US"},
			NewsLimit:   20,
		},
		Calendar: CalendarConfig{
			Provider:   "tradingview",
			Currencies: []string{"USD", "GBP", "JPY"},
			Timezone:   "Europe/London",
			Importance: []string{"0", "1"},
		},
	}
}

// LoadFromFile loads configuration from a single file
func LoadFromFile(path string) (*Config, error) {
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env.
// Later files override earlier ones. CLI flags are applied separately via ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies MACROBIAS_* environment variables
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("MACROBIAS_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server
	if port := os.Getenv("MACROBIAS_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("MACROBIAS_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Logging
	if level := os.Getenv("MACROBIAS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("MACROBIAS_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitList(output)
	}

	// Quotes
	if provider := os.Getenv("MACROBIAS_QUOTES_PROVIDER"); provider != "" {
		config.Quotes.Provider = provider
	}
	if window := os.Getenv("MACROBIAS_QUOTES_WINDOW"); window != "" {
		config.Quotes.Window = window
	}
	if ttl := os.Getenv("MACROBIAS_QUOTES_CACHE_TTL"); ttl != "" {
		config.Quotes.CacheTTL = ttl
	}

	// News
	if ttl := os.Getenv("MACROBIAS_NEWS_CACHE_TTL"); ttl != "" {
		config.News.CacheTTL = ttl
	}
	if feeds := os.Getenv("MACROBIAS_NEWS_FEEDS"); feeds != "" {
		config.News.Feeds = nil
		for i, u := range splitList(feeds) {
			config.News.Feeds = append(config.News.Feeds, FeedConfig{
				Name: fmt.Sprintf("feed-%d", i+1),
				URL:  u,
			})
		}
	}

	// Scoring
	if file := os.Getenv("MACROBIAS_SCORING_PROFILE_FILE"); file != "" {
		config.Scoring.ProfileFile = file
	}

	// Scheduler
	if schedule := os.Getenv("MACROBIAS_SCHEDULER_SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
	}
	if enabled := os.Getenv("MACROBIAS_SCHEDULER_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = b
		}
	}

	// EODHD (MACROBIAS_EODHD_API_KEY takes precedence over the vendor's own variable)
	if key := os.Getenv("MACROBIAS_EODHD_API_KEY"); key != "" {
		config.EODHD.APIKey = key
	} else if key := os.Getenv("EODHD_API_KEY"); key != "" && config.EODHD.APIKey == "" {
		config.EODHD.APIKey = key
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks struct constraints plus the cross-field rules tags cannot express
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	durations := map[string]string{
		"quotes.cache_ttl":        c.Quotes.CacheTTL,
		"quotes.yahoo.timeout":    c.Quotes.Yahoo.Timeout,
		"news.cache_ttl":          c.News.CacheTTL,
		"news.timeout":            c.News.Timeout,
		"dashboard.fetch_timeout": c.Dashboard.FetchTimeout,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", key, err)
		}
	}

	if c.Scheduler.Enabled {
		if err := ValidateSchedule(c.Scheduler.Schedule); err != nil {
			return err
		}
	}

	if c.Quotes.Provider == "eodhd" && c.EODHD.APIKey == "" {
		return fmt.Errorf("quotes.provider is eodhd but eodhd.api_key is not set")
	}
	if c.News.EODHDNews && c.EODHD.APIKey == "" {
		return fmt.Errorf("news.eodhd_news is enabled but eodhd.api_key is not set")
	}

	return nil
}

// ValidateSchedule validates a cron expression or descriptor (e.g. "@every 2m")
// and rejects intervals shorter than one minute.
func ValidateSchedule(schedule string) error {
	if strings.TrimSpace(schedule) == "" {
		return fmt.Errorf("scheduler.schedule is empty")
	}

	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	if every, ok := sched.(cron.ConstantDelaySchedule); ok && every.Delay < time.Minute {
		return fmt.Errorf("schedule interval must be at least 1 minute, got %v", every.Delay)
	}

	return nil
}

// ParseDurationOr parses value, returning fallback when value is empty or invalid
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// splitList splits a comma-separated list, dropping empty entries
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
