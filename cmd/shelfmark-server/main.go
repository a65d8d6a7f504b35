// Package main initializes and runs the Shelfmark API server.
//
// It is the composition root of the control surface: it loads configuration,
// connects Postgres and (optionally) Redis, compiles the discount rules, and
// wires the pipeline behind the REST API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mpontes/shelfmark/internal/api"
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
	ctx := context.Background()

	// 1. Configuration & Logging
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	slogger := logger.New(&cfg.App)
	slog.SetDefault(slogger)
	cfg.LogConfig(slogger)

	// 2. Rules
	holder, err := rules.NewHolder(cfg.Pipeline.RulesPath)
	if err != nil {
		return fmt.Errorf("failed to load discount rules: %w", err)
	}
	general, overrides := holder.Snapshot().RuleCount()
	slogger.Info("discount rules loaded",
		slog.String("path", cfg.Pipeline.RulesPath),
		slog.Int("general_rules", general),
		slog.Int("override_rules", overrides),
	)

	// 3. Infrastructure
	pool, err := database.NewPostgresPool(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer pool.Close()

	checkers := []observability.Checker{observability.NewPostgresChecker(pool)}

	var dispatcher *pipeline.Dispatcher
	source := inventory.NewPostgresSource(pool)
	if cfg.Redis.IsConfigured() {
		redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisClient.Close()

		dispatcher = pipeline.NewDispatcher(source, redisClient, cfg.Redis.JobTTL, slogger)
		checkers = append(checkers, observability.NewRedisChecker(redisClient))
	} else {
		slogger.Warn("redis not configured, asynchronous dispatch disabled")
	}

	// 4. Domain wiring
	manager := discount.NewManager(discount.NewPostgresStore(pool), slogger)

	var decider pricing.Source = pricing.NewRuleSource(holder)
	if cfg.ML.IsConfigured() {
		decider = ml.NewDecider(ml.NewClient(&cfg.ML), holder, decider, slogger)
		slogger.Info("ml recommender enabled", slog.String("endpoint", cfg.ML.Endpoint))
	}

	runner := pipeline.NewRunner(source, decider, manager, slogger)

	// 5. Observability server (probes + metrics) on its own port
	obsServer := observability.NewServer(slogger, &cfg.Observability, checkers...)
	obsServer.Start()

	// 6. HTTP API server
	controlAPI := api.NewAPI(runner, dispatcher, manager, holder, &cfg.Pipeline)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           controlAPI.Router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		slogger.Info("starting API server", slog.String("addr", addr), slog.Bool("tls", cfg.Server.TLSEnabled))

		var serveErr error
		if cfg.Server.TLSEnabled {
			serveErr = server.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			serveErr = server.ListenAndServe()
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	// 7. Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	case sig := <-sigChan:
		slogger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slogger.Error("API server shutdown failed", slog.String("error", err.Error()))
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		slogger.Error("observability server shutdown failed", slog.String("error", err.Error()))
	}

	slogger.Info("service exited")
	return nil
}
