package main

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/hivewatch/honeynet-analytics/internal/config"
	"github.com/hivewatch/honeynet-analytics/internal/geoip"
	"github.com/hivewatch/honeynet-analytics/internal/handlers"
	"github.com/hivewatch/honeynet-analytics/internal/httpserver"
	"github.com/hivewatch/honeynet-analytics/internal/metrics"
	"github.com/hivewatch/honeynet-analytics/internal/notify"
	"github.com/hivewatch/honeynet-analytics/internal/scoring"
	"github.com/hivewatch/honeynet-analytics/internal/store"
)

// main boots the service: config → DB → schema → adapters → HTTP server.
func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// Load runtime config from environment (DB_URL, API_KEYS, adapters).
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load failed")
	}

	// Connect to durable storage (Postgres) using a connection pool.
	db, err := store.NewPostgresStore(cfg.DBURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	// Ensure required tables/indexes exist so `docker compose up --build` is enough.
	if err := db.EnsureSchema(); err != nil {
		logger.Fatal().Err(err).Msg("schema bootstrap failed")
	}

	// Scorer: remote model when configured, indicator heuristic otherwise.
	var scorer scoring.Scorer = scoring.NewHeuristicScorer()
	if cfg.ScorerURL != "" {
		scorer = scoring.NewHTTPScorer(cfg.ScorerURL, cfg.ScorerTimeout)
		logger.Info().Str("url", cfg.ScorerURL).Msg("using remote scorer")
	}

	enricher, err := geoip.New(cfg.GeoIPURL, cfg.GeoIPTimeout, cfg.GeoIPCacheSize, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("geoip client init failed")
	}

	// Alert push is optional; without a broker the engine is poll-only.
	var publisher notify.Publisher
	if cfg.NATSURL != "" {
		natsPub, err := notify.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("nats connection failed")
		}
		defer natsPub.Close()
		publisher = natsPub
		logger.Info().Str("url", cfg.NATSURL).Str("subject", notify.AlertSubject).Msg("alert notifier enabled")
	}
	notifier := notify.NewNotifier(publisher, logger)
	defer notifier.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	pipeline := handlers.IngestPipeline{
		Store:          db,
		Scorer:         scorer,
		Enricher:       enricher,
		Alerts:         notifier,
		Metrics:        m,
		AlertThreshold: cfg.AlertThreshold,
		EnrichTimeout:  cfg.GeoIPTimeout,
		Logger:         logger.With().Str("component", "ingest").Logger(),
	}

	// Build HTTP router (public health + authenticated APIs).
	router := httpserver.NewRouter(cfg, db, pipeline, reg)

	logger.Info().Str("addr", cfg.ListenAddr).Msg("server started")
	if err := router.Run(cfg.ListenAddr); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
