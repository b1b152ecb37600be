package app

import (
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/matchpulse/scoring-core/internal/config"
	"github.com/matchpulse/scoring-core/internal/domain/event"
	"github.com/matchpulse/scoring-core/internal/domain/projection"
	"github.com/matchpulse/scoring-core/internal/domain/rules"
	"github.com/matchpulse/scoring-core/internal/domain/scoring"
	"github.com/matchpulse/scoring-core/internal/infrastructure/provider"
	"github.com/matchpulse/scoring-core/internal/infrastructure/provider/pulsefeed"
	"github.com/matchpulse/scoring-core/internal/infrastructure/provider/statfeed"
	repocache "github.com/matchpulse/scoring-core/internal/infrastructure/repository/cache"
	"github.com/matchpulse/scoring-core/internal/infrastructure/repository/memory"
	"github.com/matchpulse/scoring-core/internal/infrastructure/repository/postgres"
	"github.com/matchpulse/scoring-core/internal/infrastructure/stream"
	"github.com/matchpulse/scoring-core/internal/interfaces/httpapi"
	"github.com/matchpulse/scoring-core/internal/platform/cache"
	"github.com/matchpulse/scoring-core/internal/platform/logging"
	"github.com/matchpulse/scoring-core/internal/platform/resilience"
	"github.com/matchpulse/scoring-core/internal/usecase"
)

// App owns the wired object graph and the resources that need teardown.
type App struct {
	Server  *http.Server
	Gateway *usecase.GatewayService
	Hub     *stream.Hub

	db *sqlx.DB
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	var (
		eventLog  event.Log
		scoreRepo scoring.Repository
		projStore projection.Store
		db        *sqlx.DB
	)
	if cfg.UseMemoryStores {
		logger.Info("using in-memory stores", "reason", "DB_URL empty")
		eventLog = memory.NewEventLog()
		scoreRepo = memory.NewScoreRepository()
		projStore = memory.NewProjectionStore()
	} else {
		var err error
		db, err = openDB(cfg.DBURL)
		if err != nil {
			return nil, err
		}
		eventLog = postgres.NewEventLogRepository(db, cfg.DBPollInterval)
		scoreRepo = postgres.NewScoreRepository(db)
		projStore = repocache.NewProjectionStore(
			postgres.NewProjectionRepository(db),
			cache.NewStore(cfg.SnapshotCacheTTL),
		)
	}

	registry := rules.NewRegistry()
	if err := registry.Register("FOOTBALL", rules.FootballConfig()); err != nil {
		return nil, fmt.Errorf("register football rules: %w", err)
	}
	if err := registry.Register("BASKETBALL", rules.BasketballConfig()); err != nil {
		return nil, fmt.Errorf("register basketball rules: %w", err)
	}

	hub := stream.NewHub(logger.Named("stream"))
	projections := usecase.NewProjectionService(eventLog, scoreRepo, projStore, logger.Named("projections"))
	bonuses := usecase.NewBonusService(eventLog, scoreRepo, registry, projections, hub, logger.Named("bonuses"))
	scorer := usecase.NewScoreService(eventLog, scoreRepo, registry, projections, bonuses, hub, logger.Named("scoring"))

	var adapters []provider.Adapter
	if cfg.StatFeedEnabled {
		adapters = append(adapters, statfeed.NewClient(
			"statfeed",
			cfg.StatFeedBaseURL,
			cfg.StatFeedToken,
			&http.Client{Timeout: cfg.StatFeedTimeout},
			logger.Named("statfeed"),
			statfeed.WithPollInterval(cfg.StatFeedPollInterval),
		))
	}
	if cfg.PulseFeedEnabled {
		adapters = append(adapters, pulsefeed.NewClient(
			"pulsefeed",
			cfg.PulseFeedBaseURL,
			cfg.PulseFeedAPIKey,
			logger.Named("pulsefeed"),
		))
	}

	gateway, err := usecase.NewGatewayService(adapters, scorer, usecase.GatewayConfig{
		DedupWindow:    cfg.DedupWindow,
		ScheduleTTL:    cfg.ScheduleTTL,
		HealthInterval: cfg.ProviderHealthInterval,
		IngestWorkers:  cfg.IngestWorkers,
		RatePerSecond:  cfg.IngestRatePerSecond,
		RateBurst:      cfg.IngestRateBurst,
		Retry: resilience.RetryConfig{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: cfg.RetryInitialBackoff,
			MaxBackoff:     cfg.RetryMaxBackoff,
		},
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:            cfg.CircuitEnabled,
			FailureThreshold:   cfg.CircuitFailureCount,
			Cooldown:           cfg.CircuitOpenTimeout,
			HalfOpenSuccessRun: cfg.CircuitHalfOpenSuccessRun,
		},
	}, logger.Named("gateway"))
	if err != nil {
		return nil, err
	}

	handler := httpapi.NewHandler(gateway, projections, bonuses, registry, hub, logger.Named("http"))
	router := httpapi.NewRouter(handler, logger.Named("http"), cfg.CORSAllowedOrigins, cfg.InternalToken)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if server.Addr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return &App{
		Server:  server,
		Gateway: gateway,
		Hub:     hub,
		db:      db,
	}, nil
}

// Close releases everything New acquired, in reverse order.
func (a *App) Close() error {
	a.Gateway.Close()
	a.Hub.Close()
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
