package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"subtrack/internal/config"
	apphttp "subtrack/internal/http"
	"subtrack/internal/log"
	"subtrack/internal/rates"
	"subtrack/internal/services"
	"subtrack/internal/storage"
)

func main() {
	// Load .env for local development; in containers the env is already set.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentApp,
	})

	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("starting subtrack API", "port", cfg.Port)

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, log.WithComponent(logger, log.ComponentStorage))
	if err != nil {
		logger.Error("failed to open storage", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ratesLogger := log.WithComponent(logger, log.ComponentRates)
	provider := rates.NewHTTPProvider(cfg.RatesURL, cfg.RatesTimeout, ratesLogger)
	rateCache := rates.NewCache(provider, cfg.RatesTTL, ratesLogger)
	aggregator := services.NewAggregator(rateCache, logger)

	server := apphttp.NewServer(":"+cfg.Port, repo, aggregator, log.WithComponent(logger, log.ComponentHTTP))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server failed", log.FieldError, err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", log.FieldError, err)
	}
	logger.Info("subtrack API stopped")
}
