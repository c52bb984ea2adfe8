// Harrier - Trading-signal governance for prop firms.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/harrier/internal/api"
	"github.com/opensource-finance/harrier/internal/breach"
	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/cooldown"
	"github.com/opensource-finance/harrier/internal/dashboard"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("HARRIER_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting harrier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("HARRIER_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	if *configPath != "" {
		loaded, err := domain.LoadConfigFile(*configPath, cfg)
		if err != nil {
			slog.Error("failed to load config file", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
		slog.Info("config file loaded", "path", *configPath)
	}
	cfg.ApplyEnv()

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize services
	breachSvc := breach.NewService(repo, cacheImpl, busImpl)
	dashboardSvc := dashboard.NewService(repo)
	cooldownSvc := cooldown.NewService(repo, busImpl)
	slog.Info("governance services initialized")

	// Initialize Sweeper
	var sweeper *worker.Sweeper
	if cfg.Sweeper.Enabled {
		sweeper = worker.NewSweeper(repo, busImpl)

		// Tenants whose breach stream feeds provider statistics
		var tenantIDs []string
		if envTenants := os.Getenv("HARRIER_TENANTS"); envTenants != "" {
			for _, id := range strings.Split(envTenants, ",") {
				if id = strings.TrimSpace(id); id != "" {
					tenantIDs = append(tenantIDs, id)
				}
			}
		}

		sweeperCfg := worker.Config{
			Schedule:  cfg.Sweeper.Schedule,
			TenantIDs: tenantIDs,
		}

		if err := sweeper.Start(sweeperCfg); err != nil {
			slog.Error("failed to start sweeper", "error", err)
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, breachSvc, dashboardSvc, cooldownSvc, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("harrier is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop sweeper first
	if sweeper != nil {
		if err := sweeper.Stop(); err != nil {
			slog.Error("failed to stop sweeper", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("harrier shutdown complete")
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🪶 HARRIER                  ║")
	fmt.Println("  ║     Signal Provider Governance            ║")
	fmt.Println("  ║      Every signal, accountable.           ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    GET  /rulesets                        - List rule sets")
	fmt.Println("    POST /rulesets                        - Create a rule set")
	fmt.Println("    PUT  /rulesets/{id}/rules/{ruleType}  - Replace one sub-rule config")
	fmt.Println("    GET  /rulesets/{id}/summary           - Rule summaries in plain English")
	fmt.Println("    POST /breaches                        - Ingest a breach event")
	fmt.Println("    GET  /breaches                        - Query breaches (filters + expr)")
	fmt.Println("    GET  /dashboard/kpis                  - Headline KPIs")
	fmt.Println("    GET  /dashboard/heatmap               - Hour/market heatmap")
	fmt.Println("    GET  /dashboard/toprulesets           - Most-breached rule sets")
	fmt.Println("    GET  /cooldowns                       - Active cooldown board")
	fmt.Println("    POST /cooldowns/{id}/end              - End a cooldown early")
	fmt.Println("    GET  /providers                       - List signal providers")
	fmt.Println("    GET  /health                          - Health check")
	fmt.Println()
}
