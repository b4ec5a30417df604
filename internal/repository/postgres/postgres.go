// Package postgres implements repository.Store on PostgreSQL using sqlx.
//
// Schema changes live in migrations/ as numbered up/down SQL files. They are
// embedded into the binary and applied with golang-migrate on startup, so a
// deployed server never depends on files next to it.
//
// Queries are written with "?" placeholders and passed through
// sqlx.Rebind, which rewrites them to Postgres' "$1, $2, ..." form.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sakif/teamterrain/internal/apperror"
	"github.com/sakif/teamterrain/internal/repository"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// compile-time check that *DB implements repository.Store
var _ repository.Store = (*DB)(nil)

// Config holds connection and pool settings.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// QueryTimeout bounds every repository call, including the wait for a
	// free pooled connection. Zero disables the bound.
	QueryTimeout time.Duration
}

// DB is a pooled PostgreSQL store.
type DB struct {
	db           *sqlx.DB
	queryTimeout time.Duration
	logger       *slog.Logger
}

// New connects, sizes the pool, and applies pending migrations.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	start := time.Now()

	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: connecting: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := applyMigrations(cfg.URL, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("postgres store ready",
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	return &DB{db: db, queryTimeout: cfg.QueryTimeout, logger: logger}, nil
}

// applyMigrations runs every pending up migration from the embedded files.
func applyMigrations(databaseURL string, logger *slog.Logger) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("postgres: opening embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("postgres: creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("postgres migrations already up to date")
			return nil
		}
		return fmt.Errorf("postgres: applying migrations: %w", err)
	}

	logger.Info("postgres migrations applied")
	return nil
}

// Close closes the pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks the server is reachable. Used by GET /health.
func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	if err := d.db.PingContext(ctx); err != nil {
		return translateError(fmt.Errorf("postgres: ping: %w", err))
	}
	return nil
}

func (d *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.queryTimeout)
}

// inTx runs fn in a transaction, committing on nil.
func (d *DB) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: beginning transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: committing transaction: %w", err)
	}
	return nil
}

// Postgres SQLSTATE codes we translate.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// translateError maps driver failures onto the apperror taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.Unavailable("database is busy, try again", err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return &apperror.AppError{Err: apperror.ErrConflict, Message: "Resource already exists"}
		case codeForeignKeyViolation:
			return apperror.ValidationFailed("", "Referenced resource does not exist")
		}
	}

	return err
}
