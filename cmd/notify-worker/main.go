package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"subtrack/internal/amqp"
	"subtrack/internal/config"
	"subtrack/internal/log"
	"subtrack/internal/notify"
)

func main() {
	// Load .env for local development; in containers the env is already set.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentNotify,
	})

	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.TelegramBotToken == "" {
		logger.Error("TELEGRAM_BOT_TOKEN is required for notify-worker")
		os.Exit(1)
	}

	logger.Info("starting notify-worker", "queue", cfg.AMQPQueue)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
		log.WithComponent(logger, log.ComponentAMQP))
	if err != nil {
		logger.Error("failed to connect to AMQP", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	sender := notify.NewTelegramSender(cfg.TelegramAPIURL, cfg.TelegramBotToken,
		10*time.Second, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutdown signal received", "signal", sig.String())
		cancel()
	}()

	err = amqpClient.ConsumeReminders(ctx, sender.SendReminder)
	if err != nil && err != context.Canceled {
		logger.Error("consumer stopped", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("notify-worker stopped")
}
