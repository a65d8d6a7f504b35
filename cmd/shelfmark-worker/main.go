// Package main initializes and runs a Shelfmark chunk worker.
//
// Workers pop dispatched chunks from the Redis queue, process them against
// Postgres, and fold their statistics back into the owning job. Any number
// of workers can run side by side.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mpontes/shelfmark/internal/config"
	"github.com/mpontes/shelfmark/internal/database"
	"github.com/mpontes/shelfmark/internal/discount"
	"github.com/mpontes/shelfmark/internal/inventory"
	"github.com/mpontes/shelfmark/internal/logger"
	"github.com/mpontes/shelfmark/internal/ml"
	"github.com/mpontes/shelfmark/internal/observability"
	"github.com/mpontes/shelfmark/internal/pipeline"
	"github.com/mpontes/shelfmark/internal/pricing"
	"github.com/mpontes/shelfmark/internal/rules"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Fatal error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Configuration & Logging
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if !cfg.Redis.IsConfigured() {
		return fmt.Errorf("worker requires redis to be configured")
	}

	slogger := logger.New(&cfg.App)
	slog.SetDefault(slogger)
	cfg.LogConfig(slogger)

	// 2. Rules
	holder, err := rules.NewHolder(cfg.Pipeline.RulesPath)
	if err != nil {
		return fmt.Errorf("failed to load discount rules: %w", err)
	}

	// 3. Infrastructure
	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()

	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	// 4. Domain wiring
	manager := discount.NewManager(discount.NewPostgresStore(pool), slogger)

	var decider pricing.Source = pricing.NewRuleSource(holder)
	if cfg.ML.IsConfigured() {
		decider = ml.NewDecider(ml.NewClient(&cfg.ML), holder, decider, slogger)
	}

	runner := pipeline.NewRunner(inventory.NewPostgresSource(pool), decider, manager, slogger)
	worker := pipeline.NewWorker(runner, redisClient, cfg.Redis.PopTimeout, slogger)

	// 5. Observability server (probes + metrics)
	obsServer := observability.NewServer(slogger, &cfg.Observability,
		observability.NewPostgresChecker(pool),
		observability.NewRedisChecker(redisClient),
	)
	obsServer.Start()

	// 6. Consume until the shutdown signal
	err = worker.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if shutdownErr := obsServer.Shutdown(shutdownCtx); shutdownErr != nil {
		slogger.Error("observability server shutdown failed", slog.String("error", shutdownErr.Error()))
	}

	if err != nil {
		return fmt.Errorf("worker failed: %w", err)
	}
	slogger.Info("worker exited")
	return nil
}
