// Package main is the entry point for the TeamTerrain API server.
//
// main stays minimal. Its job is to:
//  1. Read configuration (env vars, optionally from .env)
//  2. Create dependencies (logger, database)
//  3. Start the application
//
// All actual logic lives in internal/. The cmd/ directory holds one
// directory per executable: cmd/server here, cmd/seed for demo data.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/teamterrain/internal/config"
	"github.com/sakif/teamterrain/internal/logger"
	"github.com/sakif/teamterrain/internal/server"
	"github.com/sakif/teamterrain/internal/storage"
)

func main() {
	// === 1. CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		// No configured logger yet; fall back to the default one.
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. LOGGING ===
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(log)

	// === 3. DATABASE ===
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := storage.Open(ctx, cfg.DB, log)
	if err != nil {
		log.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 4. SERVER ===
	// The server owns the store from here on and closes it on shutdown.
	srv, err := server.New(cfg, log, store)
	if err != nil {
		store.Close()
		log.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := srv.BootstrapAdmin(ctx); err != nil {
		store.Close()
		log.Error("failed to bootstrap admin", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
