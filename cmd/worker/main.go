package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"server/internal/adapter/repo"
	"server/internal/broadcast"
	"server/internal/db"
	"server/internal/infra"
	"server/internal/pipeline"
	"server/internal/providers/writer"
	"server/internal/scheduler"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	if err := db.Migrate(ctx, dbpool); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}

	orders := repo.NewOrderRepository(dbpool)
	queue := repo.NewQueueRepository(dbpool)

	writerHandler, err := writer.New(writer.Options{
		APIKey:  cfg.WriterAPIKey,
		BaseURL: cfg.WriterBaseURL,
		Model:   cfg.WriterModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build writer handler")
	}
	catalog := pipeline.NewCatalog()
	for _, svc := range writer.Services(writerHandler) {
		catalog.Register(svc)
	}

	broadcaster := broadcast.New(orders, logger)
	broadcaster.AddSink(broadcast.NewLogSink(logger))

	engine := pipeline.New(orders, queue, catalog, broadcaster, pipeline.Config{
		StepTimeout:    cfg.StepTimeout,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
		MaxAttempts:    cfg.MaxAttempts,
	}, logger)

	registry := prometheus.NewRegistry()
	metrics := scheduler.NewMetrics(registry)
	pool := scheduler.New(queue, engine, scheduler.Config{
		Workers:      cfg.WorkerCount,
		PollInterval: cfg.PollInterval,
	}, metrics, logger)
	pool.Start(ctx)

	// Liveness and scrape endpoint for the worker process itself.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !pool.Healthy() {
			http.Error(w, "queue store unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	healthSrv := infra.NewHTTPServer(cfg, cfg.WorkerPort, mux)

	go func() {
		logger.Info().Msgf("worker listening on :%s", cfg.WorkerPort)
		if err := healthSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("worker http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("worker shutting down")
	pool.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown worker http server")
	}
	logger.Info().Msg("worker stopped")
}
