package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"subtrack/internal/amqp"
	"subtrack/internal/config"
	"subtrack/internal/log"
	"subtrack/internal/services"
	"subtrack/internal/storage"
)

func main() {
	// Load .env for local development; in containers the env is already set.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentSweep,
	})

	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("starting reminder-worker", "schedule", cfg.SweepSchedule)

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, log.WithComponent(logger, log.ComponentStorage))
	if err != nil {
		logger.Error("failed to open storage", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
		log.WithComponent(logger, log.ComponentAMQP))
	if err != nil {
		logger.Error("failed to connect to AMQP", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	sweep := services.NewReminderSweep(repo, amqpClient, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runSweep := func() {
		now := time.Now()
		sent, err := sweep.Run(ctx, now)
		if err != nil {
			logger.Error("sweep failed", log.FieldError, err)
			return
		}
		logger.Info("sweep finished", "dispatched", sent)
	}

	// Catch up immediately on startup, then follow the cron schedule.
	runSweep()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SweepSchedule, runSweep); err != nil {
		logger.Error("failed to schedule sweep", log.FieldError, err, "schedule", cfg.SweepSchedule)
		os.Exit(1)
	}
	scheduler.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("shutdown signal received", "signal", sig.String())

	cancel()
	stopCtx := scheduler.Stop() // waits for a running sweep to finish
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("shutdown timeout reached with sweep still running")
	}
	logger.Info("reminder-worker stopped")
}
