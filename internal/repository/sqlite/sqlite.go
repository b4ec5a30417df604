// Package sqlite implements repository.Store on an embedded SQLite database.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite: no CGo, no C compiler, and cross
// compilation just works.
//
// CONNECTION POOL:
// sql.DB is a pool, not a connection. We cap it at ONE open connection:
//   - ":memory:" databases exist per connection, so a second connection
//     would see an empty database
//   - SQLite allows one writer at a time anyway; serialising in the pool
//     turns SQLITE_BUSY errors into orderly queueing
//
// Every operation runs under the configured query timeout. A caller stuck
// behind a long transaction gets apperror.ErrUnavailable instead of waiting
// forever.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// The driver registers itself with database/sql as "sqlite" in its
	// init(). We also use its Error type to read constraint codes.
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/teamterrain/internal/apperror"
	"github.com/sakif/teamterrain/internal/repository"
)

// compile-time check that *DB implements repository.Store
var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn         *sql.DB
	queryTimeout time.Duration
}

// Options tunes a DB. The zero value is usable.
type Options struct {
	// QueryTimeout bounds every repository call, including the wait for the
	// pooled connection. Zero disables the bound.
	QueryTimeout time.Duration
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/teamterrain.db" → file-based database (persistent)
//   - ":memory:"            → in-memory database (tests)
func New(dbPath string, opts Options) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0) // keep the single connection (and its PRAGMAs) forever

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers in other processes (backups, sqlite3 CLI) read while
	// we write. In-memory databases ignore it.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite; history rows must point at
	// real users.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn, queryTimeout: opts.QueryTimeout}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable. Used by GET /health.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	if err := db.conn.PingContext(ctx); err != nil {
		return translateError(fmt.Errorf("sqlite: ping: %w", err))
	}
	return nil
}

// migrate creates the schema. Every statement is idempotent (IF NOT EXISTS),
// so it is safe to run on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			email       TEXT NOT NULL UNIQUE,
			password    TEXT NOT NULL,
			coordinates TEXT,
			city        TEXT NOT NULL DEFAULT '',
			state       TEXT NOT NULL DEFAULT '',
			country     TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// ON DELETE CASCADE backs up the explicit history delete in DeleteUser.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS location_updates (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			coordinates TEXT NOT NULL,
			city        TEXT NOT NULL DEFAULT '',
			state       TEXT NOT NULL DEFAULT '',
			country     TEXT NOT NULL DEFAULT '',
			timestamp   DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_location_updates_user_id ON location_updates(user_id);
		CREATE INDEX IF NOT EXISTS idx_location_updates_timestamp ON location_updates(timestamp);
	`)
	if err != nil {
		return fmt.Errorf("creating location_updates table: %w", err)
	}

	return nil
}

func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.queryTimeout)
}

// inTx runs fn inside a transaction, committing on nil and rolling back on
// error or panic.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
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
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// translateError maps engine failures onto the apperror taxonomy. Errors
// that already are *apperror.AppError pass through untouched.
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

	var sqliteErr *moderncsqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return &apperror.AppError{Err: apperror.ErrConflict, Message: "Resource already exists"}
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return apperror.ValidationFailed("", "Referenced resource does not exist")
		}
	}

	return err
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
