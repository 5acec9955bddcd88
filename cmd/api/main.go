package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"server/internal/adapter/repo"
	"server/internal/broadcast"
	"server/internal/db"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/pipeline"
	"server/internal/providers/writer"
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

	app := handlers.NewApp(engine, broadcaster, logger)
	router := httpapi.NewRouter(app, logger, prometheus.DefaultGatherer)
	server := infra.NewHTTPServer(cfg, cfg.Port, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
