// Agencysim - Insurance agency simulation and advisory reporting service.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-finance/agencysim/internal/api"
	"github.com/opensource-finance/agencysim/internal/bus"
	"github.com/opensource-finance/agencysim/internal/cache"
	"github.com/opensource-finance/agencysim/internal/clock"
	"github.com/opensource-finance/agencysim/internal/config"
	"github.com/opensource-finance/agencysim/internal/domain"
	"github.com/opensource-finance/agencysim/internal/pipeline"
	"github.com/opensource-finance/agencysim/internal/repository"
	"github.com/opensource-finance/agencysim/internal/rules"
	"github.com/opensource-finance/agencysim/internal/scoring"
	"github.com/opensource-finance/agencysim/internal/simulator"
	"github.com/opensource-finance/agencysim/internal/velocity"
	"github.com/opensource-finance/agencysim/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg := settings.Config

	logLevel := slog.LevelInfo
	if settings.Debug {
		logLevel = slog.LevelDebug
	}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	slog.Info("starting agencysim",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"assumptions_file", cfg.AssumptionsFile,
		"scoring_file", cfg.ScoringFile,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	clk := clock.NewReal()

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	cacheImpl, err := cache.New(cfg.Cache, clk)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	engine, err := rules.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	ruleCount, err := rules.LoadStored(ctx, repo, engine, domain.GlobalTenantID)
	if err != nil {
		slog.Error("failed to load scoring rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", ruleCount)

	duplicates := velocity.NewService(repo, cacheImpl, settings.Scoring.DuplicateWindow(), clk)
	scorer := scoring.NewScorer(settings.Scoring, clk, engine, duplicates, logger)

	sim := simulator.New(cfg.Assumptions, clk)
	processor := pipeline.NewProcessor(sim, repo, cacheImpl, busImpl, clk, logger)

	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || settings.AsyncWorker {
		asyncWorker = worker.NewWorker(busImpl, processor, logger)
		if err := asyncWorker.Start(worker.Config{TenantIDs: settings.Tenants}); err != nil {
			slog.Error("failed to start async worker", "error", err)
			asyncWorker = nil
		} else {
			slog.Info("async worker started", "tenant_count", len(settings.Tenants))
		}
	}

	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, sim, processor, scorer, Version)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			cancel()
		}
	}()

	slog.Info("agencysim is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)
	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("agencysim shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  +-------------------------------------------+")
	fmt.Println("  |                AGENCYSIM                  |")
	fmt.Println("  |   Agency economics, month by month.       |")
	fmt.Println("  +-------------------------------------------+")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /simulate/month          - Simulate one month")
	fmt.Println("    POST /simulate/run            - Simulate a multi-month scenario")
	fmt.Println("    POST /reports                 - Generate a report (?async=true to queue)")
	fmt.Println("    GET  /reports                 - List reports")
	fmt.Println("    GET  /reports/{id}            - Get report by ID")
	fmt.Println("    GET  /reports/{id}/html       - Render report as HTML")
	fmt.Println("    GET  /reports/{id}/markdown   - Render report as Markdown")
	fmt.Println("    POST /leads/score             - Score leads")
	fmt.Println("    POST /leads/import            - Score a CSV or HTML lead export")
	fmt.Println("    GET  /scoring-rules           - List loaded scoring rules")
	fmt.Println("    POST /scoring-rules           - Create a scoring rule")
	fmt.Println("    DELETE /scoring-rules/{id}    - Disable a scoring rule")
	fmt.Println("    POST /scoring-rules/reload    - Hot-reload scoring rules")
	fmt.Println("    GET  /health                  - Health check")
	fmt.Println()
}
