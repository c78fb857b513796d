package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"varulv/internal/app"
	"varulv/internal/config"
	"varulv/internal/logging"
	"varulv/internal/storage"
	"varulv/internal/tally"
	"varulv/internal/thread"
	httpTransport "varulv/internal/transport/http"
)

func main() {
	configPath := flag.String("config", os.Getenv("VARULV_CONFIG"), "path to a YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Set up logger
	logger, logCloser, err := logging.New(cfg.Logging, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logCloser.Close()

	slog.SetDefault(logger)

	logger.Info("starting varulv vote server",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"data", cfg.Data.Dir,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// Parsed-vote cache
	var store *storage.Store
	if cfg.Cache.Enabled {
		db, err := storage.Open(cfg.Cache.Path)
		if err != nil {
			return fmt.Errorf("open vote cache: %w", err)
		}
		defer db.Close()

		store, err = storage.New(db)
		if err != nil {
			return fmt.Errorf("open vote cache: %w", err)
		}
		logger.Info("vote cache ready", "path", cfg.Cache.Path)
	}

	// Thread library
	library := thread.NewLibrary(cfg.Data.Dir, cfg.Data.VerifyTitles, logger)
	if err := library.Refresh(context.Background()); err != nil {
		return fmt.Errorf("read thread library: %w", err)
	}

	parser := tally.NewParser(cfg.Data.VoteMarker, logger)
	catalog := app.NewCatalog(library, parser, store, logger)

	// Create session hub
	hub := app.NewHub(catalog, app.HubOptions{
		DefaultDelay: cfg.Replay.DefaultDelay,
		StaleAfter:   cfg.Session.StaleAfter,
	}, logger)
	defer hub.Close()

	// Background jobs
	scheduler := app.NewScheduler(logger)
	for _, job := range app.MaintenanceJobs(hub, catalog.Refresh, cfg.Schedule.Rescan, cfg.Schedule.Cleanup) {
		if err := scheduler.Schedule(job); err != nil {
			return err
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Create HTTP server
	server := httpTransport.NewServer(cfg, hub, scheduler, logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		return err
	}

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
	return nil
}
