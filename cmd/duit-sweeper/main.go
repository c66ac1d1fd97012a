package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"duit/internal/config"
	"duit/internal/events"
	"duit/internal/ledger"
	"duit/internal/log"
	"duit/internal/services"
	"duit/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentSweeper,
	})
	log.SetDefault(logger)

	logger.Info("Starting duit-sweeper")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Event publishing is optional; the sweeper works standalone without a
	// broker.
	var pub events.Publisher
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP publisher, continuing without events", "error", err)
		} else {
			defer amqpPub.Close()
			pub = amqpPub
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - change events will not be published")
	}

	engine := ledger.NewEngine(repo, pub)
	recurring := services.NewRecurringService(repo, engine, pub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweep := func() {
		processed, failed, err := recurring.SweepDue(ctx, cfg.SweepConcurrency)
		if err != nil {
			logger.Error("Sweep failed", "error", err)
			return
		}
		logger.Info("Sweep complete", "processed", processed, "failed", failed)
	}

	// Run a catch-up sweep on startup, then on the configured schedule.
	logger.Info("Running initial sweep...")
	sweep()

	// A slow catch-up sweep must finish before the next tick starts.
	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := scheduler.AddFunc(cfg.SweepCronSpec, sweep); err != nil {
		logger.Error("Invalid sweep cron spec", "error", err, "spec", cfg.SweepCronSpec)
		os.Exit(1)
	}
	scheduler.Start()
	logger.Info("Sweep scheduled", "spec", cfg.SweepCronSpec, "concurrency", cfg.SweepConcurrency)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())

	cancel()
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()
	logger.Info("duit-sweeper stopped")
}
