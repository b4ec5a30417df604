// Package storage opens the configured repository.Store. Both binaries
// (server and seed) go through Open so they always agree on the backend.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/teamterrain/internal/config"
	"github.com/sakif/teamterrain/internal/repository"
	"github.com/sakif/teamterrain/internal/repository/postgres"
	sqliteRepo "github.com/sakif/teamterrain/internal/repository/sqlite"
)

// Open connects to the backend named by cfg.Driver and applies migrations.
func Open(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) (repository.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		if cfg.Path != ":memory:" {
			// os.MkdirAll is `mkdir -p`: a no-op when the directory exists.
			dir := filepath.Dir(cfg.Path)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("storage: creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqliteRepo.New(cfg.Path, sqliteRepo.Options{QueryTimeout: cfg.QueryTimeout})
		if err != nil {
			return nil, err
		}
		logger.Info("database ready", slog.String("driver", cfg.Driver), slog.String("path", cfg.Path))
		return db, nil

	case config.DriverPostgres:
		db, err := postgres.New(ctx, postgres.Config{
			URL:             cfg.URL,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			QueryTimeout:    cfg.QueryTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("database ready", slog.String("driver", cfg.Driver))
		return db, nil

	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
