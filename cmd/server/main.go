package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ironinsights/iron-insights/internal/broadcast"
	"github.com/ironinsights/iron-insights/internal/cache"
	"github.com/ironinsights/iron-insights/internal/config"
	"github.com/ironinsights/iron-insights/internal/dataset"
	"github.com/ironinsights/iron-insights/internal/httpapi"
	"github.com/ironinsights/iron-insights/internal/logx"
	"github.com/ironinsights/iron-insights/internal/router"
	"github.com/ironinsights/iron-insights/internal/sqlengine"
	"github.com/ironinsights/iron-insights/internal/vector"
)

// Init/shutdown order follows the teacher's cmd/api/main.go: loader,
// engines, cache, router, HTTP/WS listeners, broadcaster. Shutdown
// reverses this order (spec.md §9 "Global mutable state").
func main() {
	configPath := flag.String("config", "", "path to config file (yaml/toml/json)")
	flag.Parse()

	bootLogger := logx.NewLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("load config")
	}

	logger := logx.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Dataset loader.
	store, err := dataset.NewStore(cfg.Dataset.Path, logger.With().Str("component", "dataset").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("load dataset")
	}
	logger.Info().
		Int("rows", store.Get().Len()).
		Uint64("fingerprint", store.Get().Fingerprint()).
		Msg("dataset loaded")

	if cfg.Dataset.Watch {
		go func() {
			if err := store.Watch(ctx); err != nil && err != context.Canceled {
				logger.Warn().Err(err).Msg("dataset watcher stopped")
			}
		}()
	}

	// 2. Engines.
	vectorEngine := vector.NewEngine(vector.Config{
		SampleSize:           cfg.Query.SampleSize,
		HistogramBins:        cfg.Query.HistogramBins,
		SplitTotalForScatter: cfg.Query.SplitTotal,
	})

	sqlEngine, err := sqlengine.Open(ctx, store.Get(), sqlengine.Config{
		Threads:          cfg.SQL.Threads,
		MemoryLimitBytes: cfg.SQL.MemoryLimitBytes,
	}, logger.With().Str("component", "sqlengine").Logger())
	if err != nil {
		logger.Error().Err(err).Msg("SQL engine unavailable, vector endpoints continue without it")
		sqlEngine = nil
	}

	// 3. Cache.
	resultCache := cache.New(cfg.Cache.MaxCapacity, cfg.Cache.TTL)
	resultCache.SetDatasetFingerprint(store.Get().Fingerprint())

	// 4. Router.
	appRouter := router.New(store, vectorEngine, sqlEngine, resultCache, cfg.Query, logger)

	store.OnReload(func(ds *dataset.Dataset) {
		resultCache.SetDatasetFingerprint(ds.Fingerprint())
		if sqlEngine != nil {
			if err := sqlEngine.Reload(ctx, ds); err != nil {
				logger.Error().Err(err).Msg("SQL engine reload failed")
			}
		}
	})

	// 5. Activity broadcaster.
	activity := broadcast.NewActivityState(50)
	hub := broadcast.NewHub(activity, logger.With().Str("component", "broadcast").Logger())
	go hub.Run(ctx)

	// 6. HTTP/WS listeners.
	srv := &http.Server{
		Addr:         addrFor(cfg.Server.Port),
		Handler:      httpapi.NewRouter(logger, appRouter, hub),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("iron insights listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown error")
	}

	if sqlEngine != nil {
		if err := sqlEngine.Close(); err != nil {
			logger.Warn().Err(err).Msg("SQL engine close error")
		}
	}

	logger.Info().Msg("shutdown complete")
}

func addrFor(port int) string {
	return ":" + strconv.Itoa(port)
}
