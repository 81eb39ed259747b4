package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/affilink/internal/config"
	"github.com/kailas-cloud/affilink/internal/db"
	"github.com/kailas-cloud/affilink/internal/db/memory"
	dbRedis "github.com/kailas-cloud/affilink/internal/db/redis"
	"github.com/kailas-cloud/affilink/internal/domain/task"
	logpkg "github.com/kailas-cloud/affilink/internal/logger"
	"github.com/kailas-cloud/affilink/internal/metrics"
	"github.com/kailas-cloud/affilink/internal/repository/content"
	"github.com/kailas-cloud/affilink/internal/repository/productcache"
	queuerepo "github.com/kailas-cloud/affilink/internal/repository/queue"
	chiTransport "github.com/kailas-cloud/affilink/internal/transport/chi"
	"github.com/kailas-cloud/affilink/internal/transport/feed"
	autolinkuc "github.com/kailas-cloud/affilink/internal/usecase/autolink"
	cataloguc "github.com/kailas-cloud/affilink/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/affilink/internal/usecase/health"
	placementuc "github.com/kailas-cloud/affilink/internal/usecase/placement"
	queueuc "github.com/kailas-cloud/affilink/internal/usecase/queue"
	"github.com/kailas-cloud/affilink/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting affilink daemon",
		zap.String("version", version.String()),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Strings("sources", cfg.EnabledSources()),
	)

	// Domain metrics are registered explicitly (no init()).
	metrics.RegisterCatalogMetrics()
	metrics.RegisterQueueMetrics()

	store, err := newStore(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, config.Seconds(cfg.Database.ReadinessTimeout)); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	prefix := cfg.Storage.KeyPrefix

	// Catalog: feed adapter -> product cache, fanned out by the aggregator.
	catalog := cataloguc.New(newSources(cfg, store, logger), logger).
		WithCallTimeout(config.Seconds(cfg.Catalog.CallTimeoutSec)).
		WithCountry(cfg.Catalog.Country)

	docs := content.New(store, logger).WithPrefix(prefix)
	placements := placementuc.NewManager(docs, catalog, logger)

	queueRepo := queuerepo.New(store, logger).
		WithPrefix(prefix).
		WithMarkerTTL(time.Duration(cfg.Queue.MarkerTTLHours) * time.Hour)
	queue := queueuc.New(queueRepo, queueuc.Config{
		BatchSize:   cfg.Queue.BatchSize,
		LeaseTTL:    config.Seconds(cfg.Queue.LeaseTTLSec),
		TaskTimeout: config.Seconds(cfg.Queue.TaskTimeoutSec),
		FollowUp:    config.Seconds(cfg.Queue.FollowUpSec),
		StaleAfter:  time.Duration(cfg.Refresh.StaleAfterHours) * time.Hour,
		SweepLimit:  cfg.Refresh.SweepLimit,
	}, logger)

	// Pass a nil interface, not a typed nil, when the sweep is off.
	var sweep queueuc.PlacementReader
	workerCfg := queueuc.WorkerConfig{DrainInterval: config.Seconds(cfg.Queue.DrainIntervalSec)}
	if cfg.Refresh.IsEnabled() {
		sweep = docs
		workerCfg.SweepInterval = time.Duration(cfg.Refresh.IntervalMin) * time.Minute
	}
	worker := queueuc.NewWorker(queue, sweep, workerCfg, logger)

	autolink := autolinkuc.New(docs, catalog, placements, queue, autolinkuc.Settings{
		Enabled:     cfg.AutoLink.IsEnabled(),
		PostTypes:   cfg.AutoLink.PostTypes,
		Categories:  cfg.AutoLink.Categories,
		MaxProducts: cfg.AutoLink.MaxProducts,
		MinSpacing:  cfg.AutoLink.MinSpacing,
	}, logger).WithTrigger(worker)
	queue.Handle(task.ActionAutoLink, autolink.HandleAutoLink)
	queue.Handle(task.ActionRefreshProduct, autolink.HandleRefresh)

	health := healthuc.New(store, catalog)

	server := chiTransport.NewServer(docs, autolink, placements, queue, catalog, health, logger)
	handler := chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger)

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if err := worker.Start(workerCtx); err != nil {
		logger.Fatal("Failed to start queue worker", zap.Error(err))
	}

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       config.Seconds(cfg.HTTP.ReadTimeoutSec),
		ReadHeaderTimeout: config.Seconds(cfg.HTTP.ReadTimeoutSec),
		WriteTimeout:      config.Seconds(cfg.HTTP.WriteTimeoutSec),
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.HTTP.ShutdownSec))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	worker.Stop()

	logger.Info("Server stopped gracefully")
}

// newStore opens the configured database. Redis and Valkey share the rueidis store.
func newStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.NewStore(), nil
	case config.DriverRedis, config.DriverValkey:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// newSources builds the chain feed adapter -> product cache for every enabled source.
func newSources(cfg config.Config, store db.Store, logger *zap.Logger) []cataloguc.Source {
	var sources []cataloguc.Source
	for _, id := range cfg.EnabledSources() {
		sc := cfg.Sources[id]
		if sc.Token == "" {
			logger.Warn("Catalog source has no token, requests will fail", zap.String("source", id))
		}
		base := feed.New(feed.Config{
			ID:              id,
			BaseURL:         sc.BaseURL,
			Token:           sc.Token,
			Country:         sc.Country,
			Timeout:         config.Seconds(sc.TimeoutSec),
			RateLimit:       sc.RateLimit,
			Burst:           sc.Burst,
			BreakerFailures: sc.BreakerFailures,
			BreakerTimeout:  config.Seconds(sc.BreakerTimeoutSec),
			Logger:          logger,
		})
		cached := productcache.New(base, store, metrics.ProductCacheTotal, logger).
			WithPrefix(cfg.Storage.KeyPrefix).
			WithTTL(
				time.Duration(cfg.Catalog.CacheHours)*time.Hour,
				time.Duration(cfg.Catalog.SearchCacheHours)*time.Hour,
			)
		sources = append(sources, cached)
	}
	return sources
}
