package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/cassette/internal/config"
	"github.com/tjfontaine/cassette/internal/replay"
	"github.com/tjfontaine/cassette/internal/server"
	"github.com/tjfontaine/cassette/internal/storage"
	"github.com/tjfontaine/cassette/internal/storage/sqlite"
	"github.com/tjfontaine/cassette/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	shutdown, err := telemetry.InitTracer("vcrd", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	sets, err := replay.LoadDir(cfg.Cassettes.Dir, cfg.Cassettes.Capabilities())
	if err != nil {
		log.Fatalf("Failed to load cassettes: %v", err)
	}
	logger.Info("cassettes loaded",
		slog.String("dir", cfg.Cassettes.Dir),
		slog.Int("count", len(sets)))

	var hits storage.HitStore
	if cfg.Storage.Path != "" {
		store, err := sqlite.New(cfg.Storage.Path)
		if err != nil {
			log.Fatalf("Failed to open hit store: %v", err)
		}
		defer store.Close()
		hits = store
		logger.Info("hit log enabled", slog.String("path", cfg.Storage.Path))
	}

	handler := replay.NewHandler(sets, hits, logger)

	srv := server.New(cfg.Server.Port, time.Duration(cfg.Server.Timeout)*time.Second, logger)
	srv.Router.Get("/admin/cassettes", handler.AdminCassettes)
	srv.Router.Get("/admin/hits", handler.AdminHits)
	srv.Router.Handle("/*", handler)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
		return
	case <-sigChan:
	}

	logger.Info("Shutdown signal received, stopping server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Server shutdown complete")
}
