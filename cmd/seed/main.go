// Command seed loads the demo team into the configured database.
//
// Usage:
//
//	go run ./cmd/seed
//
// It reads the same environment as the server. Re-running replaces the
// demo accounts (matched by email) and leaves every other user alone.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/teamterrain/internal/auth"
	"github.com/sakif/teamterrain/internal/config"
	"github.com/sakif/teamterrain/internal/logger"
	"github.com/sakif/teamterrain/internal/service"
	"github.com/sakif/teamterrain/internal/storage"
)

func main() {
	if err := run(); err != nil {
		slog.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(log)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := storage.Open(ctx, cfg.DB, log)
	if err != nil {
		return err
	}
	defer store.Close()

	seeder := service.NewSeeder(store, store, auth.NewPasswordService(cfg.BcryptCost), log)
	users, err := seeder.Seed(ctx, service.DemoUsers)
	if err != nil {
		return err
	}

	fmt.Println("\nSeed data inserted. Test credentials:")
	for _, demo := range service.DemoUsers {
		fmt.Printf("  %-16s %s / %s\n", demo.Name, demo.Email, demo.Password)
	}
	log.Info("seeding complete", slog.Int("users", len(users)))
	return nil
}
