package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jfrlite/jfrlite/internal/api"
	"github.com/jfrlite/jfrlite/internal/config"
	"github.com/jfrlite/jfrlite/internal/database"
	"github.com/jfrlite/jfrlite/internal/notifications"
	"github.com/jfrlite/jfrlite/internal/platform"
	"github.com/jfrlite/jfrlite/internal/recordings"
	"github.com/jfrlite/jfrlite/internal/reports"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logger
	logger := initLogger(cfg.Logging)
	slog.SetDefault(logger)
	logger.Info("Starting jfrlite server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := notifications.NewHub(notifications.Config{
		TargetBufferSize: cfg.Notifications.TargetBufferSize,
		ReportBufferSize: cfg.Notifications.ReportBufferSize,
	})
	defer hub.Close()
	notifications.StartLogger(ctx, hub, logger)

	// Platform detection happens once; a failure here is fatal.
	deps := platform.Deps{Config: cfg, Hub: hub, Logger: logger}
	selection, err := platform.Init(platform.NewStrategies(deps).Strategies(), platform.ConfiguredAuth(deps))
	if err != nil {
		log.Fatalf("Platform initialization failed: %v", err)
	}
	logger.Info("Platform selected",
		"strategy", selection.Strategy.Name(),
		"source", selection.Client.Source(),
		"auth", selection.AuthManager.Scheme(),
	)
	selection.Client.Start(ctx)

	readyChecks := map[string]api.ReadyCheck{}

	// Recording catalog
	var catalog recordings.Catalog
	switch cfg.Recordings.Backend {
	case "postgres":
		pool, err := database.Open(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("DB init failed: %v", err)
		}
		defer pool.Close()

		// Run embedded migrations (compiled into the binary)
		if err := database.RunMigrations(ctx, pool); err != nil {
			log.Fatalf("Migrations failed: %v", err)
		}
		catalog = recordings.NewPostgresCatalog(pool)
		readyChecks["database"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	default:
		catalog = recordings.NewMemoryCatalog()
	}

	agent := recordings.NewAgentClient(cfg.Recordings.AgentTimeout())
	if !cfg.Recordings.DisableBackground {
		syncer := recordings.NewSyncer(
			selection.Client,
			agent,
			catalog,
			cfg.Recordings.SyncInterval(),
			cfg.Recordings.SyncWorkerCount,
			logger,
		)
		go func() {
			if err := syncer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Recording sync stopped", "error", err)
			}
		}()
	}

	// Report pipeline
	generator := reports.NewSubprocessGenerator(
		cfg.Reports.WorkerBinary,
		cfg.Reports.SubprocessTimeout(),
		cfg.Reports.MaxHeapMB,
		logger,
	)
	reportService := reports.NewService(generator, hub, logger)

	router := api.NewRouter(api.Dependencies{
		Config:      cfg,
		Targets:     selection.Client,
		AuthManager: selection.AuthManager,
		Reports:     reportService,
		Catalog:     catalog,
		ReadyChecks: readyChecks,
		Logger:      logger,
	})

	// Create HTTP server
	srv := api.NewServer(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), router, cfg)

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Cancel the main context to stop discovery and sync workers
	cancel()

	logger.Info("Server stopped gracefully")
}

func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	// Set log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Set format
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
