// Package repository declares the storage contracts the services depend on.
//
// Two implementations exist, one per engine: repository/sqlite (embedded,
// single file) and repository/postgres (server, pooled). Both satisfy Store
// and behave identically, including error translation: missing rows come
// back as apperror.ErrNotFound, unique violations as apperror.ErrConflict.
package repository

import (
	"context"

	"github.com/sakif/teamterrain/internal/model"
)

// ListOptions is a limit/offset window. A Limit of zero or less means
// no limit.
type ListOptions struct {
	Limit  int
	Offset int
}

// Unbounded reports whether the window has no row limit.
func (o ListOptions) Unbounded() bool {
	return o.Limit <= 0
}

// UserRepository stores accounts and their current position.
type UserRepository interface {
	// CreateUser inserts u, filling ID (when empty) and timestamps.
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// ListUsers returns every user, newest account first.
	ListUsers(ctx context.Context) ([]model.User, error)
	// UpdateUser applies the non-nil fields of patch. Setting non-empty
	// coordinates also appends a history row in the same transaction.
	UpdateUser(ctx context.Context, id string, patch model.UserPatch) (*model.User, error)
	// DeleteUser removes the user and all of their history atomically.
	DeleteUser(ctx context.Context, id string) error
	// TouchUser bumps updated_at, e.g. on login.
	TouchUser(ctx context.Context, id string) error
}

// LocationRepository stores position changes and history.
type LocationRepository interface {
	// ApplyLocation sets the user's current position and, unless the change
	// clears it, appends the matching history row. Both writes commit
	// together or not at all.
	ApplyLocation(ctx context.Context, userID string, change model.LocationChange) (*model.User, error)
	// ListHistory returns one page of a user's history, newest first, and
	// the user's total row count.
	ListHistory(ctx context.Context, userID string, opts ListOptions) ([]model.LocationUpdate, int, error)
	// ClearHistory deletes every history row for the user and reports how
	// many were removed.
	ClearHistory(ctx context.Context, userID string) (int64, error)
	// ListRecent returns the latest updates across all users with the
	// owner's name and email filled in.
	ListRecent(ctx context.Context, limit int) ([]model.LocationUpdate, error)
}

// Store is a complete storage backend.
type Store interface {
	UserRepository
	LocationRepository
	Ping(ctx context.Context) error
	Close() error
}
