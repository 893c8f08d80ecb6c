package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/accessforge/erp-access-advisor/internal/api/rest"
	"github.com/accessforge/erp-access-advisor/internal/domain/license"
	"github.com/accessforge/erp-access-advisor/internal/domain/values"
	"github.com/accessforge/erp-access-advisor/internal/infrastructure/cache"
	"github.com/accessforge/erp-access-advisor/internal/infrastructure/config"
	"github.com/accessforge/erp-access-advisor/internal/infrastructure/database"
	"github.com/accessforge/erp-access-advisor/internal/infrastructure/repository"
	"github.com/accessforge/erp-access-advisor/internal/infrastructure/snapshot"
	"github.com/accessforge/erp-access-advisor/internal/infrastructure/telemetry"
	"github.com/accessforge/erp-access-advisor/internal/metrics"
	"github.com/accessforge/erp-access-advisor/internal/service/confidence"
	"github.com/accessforge/erp-access-advisor/internal/service/observation"
	"github.com/accessforge/erp-access-advisor/internal/service/recommendation"
)

func main() {
	var configPath = flag.String("config", "", "Path to configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		slog.Error("failed to setup logger", "error", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// The meter provider must be installed before any instruments are
	// created, or they bind to the global no-op provider.
	meterProvider, err := telemetry.NewMeterProvider("erp-access-advisor", cfg.Environment, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer func() { _ = meterProvider.Shutdown(context.Background()) }()

	registry, err := metrics.NewRegistry("erp-access-advisor")
	if err != nil {
		return err
	}

	pool, err := database.NewPool(ctx, &cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	catalog, err := buildCatalog(&cfg.Catalog)
	if err != nil {
		return err
	}

	securityFeed := repository.NewSecurityFeedRepository(pool)
	ruleFeed := repository.NewSoDRuleRepository(pool)
	ledgerRepo := repository.NewLedgerRepository(pool)

	ledger := confidence.NewLedger(cfg.Confidence, cfg.Recommender.LogicVersion, ledgerRepo, registry, logger)
	if err := ledger.LoadFromStore(ctx); err != nil {
		return err
	}
	controller := observation.NewController(ledger, cfg.Observation, logger)

	store := snapshot.NewStore(logger)
	rebuilder := snapshot.NewRebuilder(store, securityFeed, ruleFeed, logger)
	if err := rebuilder.Rebuild(ctx); err != nil {
		// Serve anyway: health reports the snapshot as not ready and the
		// scheduler retries via the admin rebuild endpoint.
		logger.Warn("initial snapshot rebuild failed", zap.Error(err))
		registry.RecordRebuild(ctx, false)
	} else {
		registry.RecordRebuild(ctx, true)
	}

	recommender := recommendation.NewRecommender(catalog)
	svc := recommendation.NewService(store, recommender, controller, registry, logger,
		cfg.Recommender.AlgorithmID, cfg.Recommender.DefaultTopK, cfg.Recommender.MaxRequiredItems)

	var patternCache *cache.PatternCache
	if cfg.Redis.URL != "" {
		client, err := cache.NewRedisClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("redis unavailable, pattern cache disabled", zap.Error(err))
		} else {
			defer func() { _ = client.Close() }()
			patternCache = cache.NewPatternCache(client, cfg.Redis.PatternTTL, logger)
		}
	}

	handler := rest.NewHandler(svc, ledger, controller, store, rebuilder, patternCache,
		cfg.Recommender.AlgorithmID, logger)
	server := rest.NewServer(&cfg.Server, handler, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	logger.Info("shutting down")
	return server.Shutdown(shutdownCtx)
}

// buildCatalog turns the configured price list into a versioned catalog
func buildCatalog(cfg *config.CatalogConfig) (*license.Catalog, error) {
	prices := make(map[license.Tier]values.Money, len(cfg.Prices))
	for name, amount := range cfg.Prices {
		tier, err := license.ParseTier(name)
		if err != nil {
			return nil, err
		}
		money, err := values.NewMoneyFromFloat(amount, cfg.Currency)
		if err != nil {
			return nil, err
		}
		prices[tier] = money
	}
	return license.NewCatalog(cfg.Version, prices)
}
