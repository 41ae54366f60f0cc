package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrobias/internal/common"
	"github.com/ternarybob/macrobias/internal/eodhd"
	"github.com/ternarybob/macrobias/internal/handlers"
	"github.com/ternarybob/macrobias/internal/interfaces"
	"github.com/ternarybob/macrobias/internal/models"
	"github.com/ternarybob/macrobias/internal/services/cache"
	"github.com/ternarybob/macrobias/internal/services/dashboard"
	"github.com/ternarybob/macrobias/internal/services/news"
	"github.com/ternarybob/macrobias/internal/services/quotes"
	"github.com/ternarybob/macrobias/internal/services/scheduler"
	"github.com/ternarybob/macrobias/internal/services/scoring"
	"github.com/ternarybob/macrobias/internal/yahoo"
)

const defaultNewsTimeout = 10 * time.Second

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Upstream clients
	QuoteSource interfaces.QuoteSource
	EODHDClient *eodhd.Client // nil without an API key

	// Core services
	Cache            *cache.Service
	QuoteService     *quotes.Service
	NewsService      *news.Service
	Engine           *scoring.Engine
	Profiles         []models.Profile
	DashboardService *dashboard.Service
	SchedulerService *scheduler.Service // nil when auto-refresh is disabled

	// HTTP handlers
	APIHandler       *handlers.APIHandler
	DashboardHandler *handlers.DashboardHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Str("quote_provider", app.QuoteSource.Name()).
		Int("profiles", len(app.Profiles)).
		Int("symbols", len(app.DashboardService.Symbols())).
		Bool("scheduler", app.SchedulerService != nil).
		Msg("Application initialized")

	return app, nil
}

// initClients creates the quote provider and the optional EODHD client
func (a *App) initClients() error {
	if a.Config.EODHD.APIKey != "" {
		a.EODHDClient = eodhd.NewClient(a.Config.EODHD.APIKey,
			eodhd.WithBaseURL(a.Config.EODHD.BaseURL),
			eodhd.WithRateLimit(a.Config.EODHD.RateLimit),
			eodhd.WithSymbolMap(a.Config.EODHD.SymbolMap),
			eodhd.WithLogger(a.Logger),
		)
	}

	switch a.Config.Quotes.Provider {
	case "", "yahoo":
		yc := a.Config.Quotes.Yahoo
		a.QuoteSource = yahoo.NewClient(
			yahoo.WithBaseURL(yc.BaseURL),
			yahoo.WithRateLimit(yc.RateLimit),
			yahoo.WithHTTPClient(&http.Client{Timeout: common.ParseDurationOr(yc.Timeout, yahoo.DefaultTimeout)}),
			yahoo.WithLogger(a.Logger),
		)
	case "eodhd":
		if a.EODHDClient == nil {
			return fmt.Errorf("quotes.provider is eodhd but eodhd.api_key is not set")
		}
		a.QuoteSource = a.EODHDClient
	default:
		return fmt.Errorf("unknown quote provider %q", a.Config.Quotes.Provider)
	}

	return nil
}

// initServices wires the cycle: quotes + news -> scoring -> dashboard -> scheduler
func (a *App) initServices() error {
	a.Cache = cache.NewService(a.Logger)
	a.QuoteService = quotes.NewService(a.QuoteSource, a.Cache, &a.Config.Quotes, a.Logger)

	classifier := news.NewClassifier(a.Config.News.Classifier, news.NewVaderScorer())
	a.NewsService = news.NewService(a.newsSources(), classifier, a.Cache, &a.Config.News, a.Logger)

	profiles, err := scoring.ResolveProfiles(a.Config.Scoring)
	if err != nil {
		return fmt.Errorf("failed to load scoring profiles: %w", err)
	}
	a.Profiles = profiles
	a.Engine = scoring.NewEngine()

	a.DashboardService = dashboard.NewService(
		a.QuoteService,
		a.NewsService,
		a.Engine,
		a.Profiles,
		classifier.TopicNames(),
		a.Config,
		a.Logger,
	)

	if a.Config.Scheduler.Enabled {
		a.SchedulerService = scheduler.NewService(a.DashboardService, a.Config.Scheduler, a.Logger)
	}

	return nil
}

// newsSources builds one RSS source per configured feed plus EODHD news when enabled
func (a *App) newsSources() []interfaces.NewsSource {
	httpClient := &http.Client{Timeout: common.ParseDurationOr(a.Config.News.Timeout, defaultNewsTimeout)}

	sources := make([]interfaces.NewsSource, 0, len(a.Config.News.Feeds)+1)
	for _, feed := range a.Config.News.Feeds {
		sources = append(sources, news.NewRSSSource(feed, httpClient, a.Logger))
	}

	if a.Config.News.EODHDNews {
		if a.EODHDClient == nil {
			a.Logger.Warn().Msg("news.eodhd_news is enabled but eodhd.api_key is not set, skipping EODHD news")
		} else {
			sources = append(sources, news.NewEODHDSource(a.EODHDClient, a.Config.EODHD.NewsSymbols, a.Config.EODHD.NewsLimit))
		}
	}

	if len(sources) == 0 {
		a.Logger.Warn().Msg("No news sources configured, sentiment will be neutral")
	}
	return sources
}

func (a *App) initHandlers() {
	var sched interfaces.SchedulerService
	if a.SchedulerService != nil {
		sched = a.SchedulerService
	}

	a.APIHandler = handlers.NewAPIHandler(sched, a.Logger)
	a.DashboardHandler = handlers.NewDashboardHandler(a.DashboardService, a.Calendar(), a.Logger)
}

// Calendar returns the economic calendar widget settings
func (a *App) Calendar() models.CalendarWidget {
	c := a.Config.Calendar
	return models.CalendarWidget{
		Provider:   c.Provider,
		Currencies: c.Currencies,
		Timezone:   c.Timezone,
		Importance: c.Importance,
	}
}

// Start begins background work (the refresh scheduler)
func (a *App) Start() error {
	if a.SchedulerService == nil {
		a.Logger.Info().Msg("Scheduler disabled, refresh on demand only")
		return nil
	}
	if err := a.SchedulerService.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	// Warm the first snapshot so the dashboard is ready before the first tick
	return a.SchedulerService.TriggerNow()
}

// Close stops background work
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	a.Logger.Info().Int("cache_entries", a.Cache.Len()).Msg("Application closed")
	return nil
}
