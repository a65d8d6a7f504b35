// Package main runs a one-shot recomputation from the command line, for
// cron jobs and operators. It prints the run statistics as JSON on stdout
// and exits non-zero on a failed run.
package main

import (
	"context"
	"encoding/json"
	"flag"
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
	days := flag.Int("days", -1, "expiry window in days (default: configured value)")
	chunk := flag.Int("chunk", -1, "batches per chunk (default: configured value)")
	invalidateExpired := flag.Bool("invalidate-expired", false, "also close active discounts of expired batches")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	slogger := logger.New(&cfg.App)
	slog.SetDefault(slogger)

	daysThreshold := cfg.Pipeline.DefaultDaysThreshold
	if *days >= 0 {
		daysThreshold = *days
	}
	chunkSize := cfg.Pipeline.DefaultChunkSize
	if *chunk > 0 {
		chunkSize = *chunk
	}

	holder, err := rules.NewHolder(cfg.Pipeline.RulesPath)
	if err != nil {
		return fmt.Errorf("failed to load discount rules: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()

	manager := discount.NewManager(discount.NewPostgresStore(pool), slogger)

	var decider pricing.Source = pricing.NewRuleSource(holder)
	if cfg.ML.IsConfigured() {
		decider = ml.NewDecider(ml.NewClient(&cfg.ML), holder, decider, slogger)
	}

	runner := pipeline.NewRunner(inventory.NewPostgresSource(pool), decider, manager, slogger)

	stats, err := runner.Run(ctx, daysThreshold, chunkSize)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if *invalidateExpired {
		if _, err := manager.InvalidateExpired(ctx); err != nil {
			return fmt.Errorf("failed to invalidate expired discounts: %w", err)
		}
	}

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
