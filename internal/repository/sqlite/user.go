package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/teamterrain/internal/apperror"
	"github.com/sakif/teamterrain/internal/model"
)

const userColumns = `id, name, email, password, coordinates, city, state, country, created_at, updated_at`

func scanUser(s rowScanner) (*model.User, error) {
	var (
		u      model.User
		coords sql.NullString
	)
	err := s.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&coords,
		&u.City,
		&u.State,
		&u.Country,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if coords.Valid {
		u.Coordinates = &coords.String
	}
	return &u, nil
}

// CreateUser inserts a new user. An empty ID gets a fresh xid; seeded and
// bootstrap accounts may bring their own.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = xid.New().String()
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		nullString(user.Coordinates),
		user.City,
		user.State,
		user.Country,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		err = translateError(fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err))
		if errors.Is(err, apperror.ErrConflict) {
			return apperror.Conflict("user", "email "+user.Email)
		}
		return err
	}

	return nil
}

// GetUserByID retrieves a user by ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	return getUser(ctx, db.conn, id)
}

// GetUserByEmail retrieves a user by exact email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "user not found"}
		}
		return nil, translateError(fmt.Errorf("sqlite: getting user by email: %w", err))
	}
	return u, nil
}

// ListUsers returns all users, newest account first.
func (db *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, translateError(fmt.Errorf("sqlite: listing users: %w", err))
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(fmt.Errorf("sqlite: iterating users: %w", err))
	}

	return users, nil
}

// UpdateUser writes the non-nil fields of patch. When the patch places the
// user on the map, the new position is also appended to history so the
// current coordinates always match the latest history row.
func (db *DB) UpdateUser(ctx context.Context, id string, patch model.UserPatch) (*model.User, error) {
	if patch.Empty() {
		return nil, apperror.ValidationFailed("", "No valid fields to update")
	}

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var updated *model.User
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getUser(ctx, tx, id); err != nil {
			return err
		}

		now := time.Now().UTC()
		sets, args := patchAssignments(patch)
		sets = append(sets, "updated_at = ?")
		args = append(args, now, id)

		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...,
		); err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", id, err)
		}

		u, err := getUser(ctx, tx, id)
		if err != nil {
			return err
		}

		if patch.Coordinates != nil && *patch.Coordinates != "" {
			if err := insertHistory(ctx, tx, u.ID, model.LocationChange{
				Coordinates: *u.Coordinates,
				City:        u.City,
				State:       u.State,
				Country:     u.Country,
			}, now); err != nil {
				return err
			}
		}

		updated = u
		return nil
	})
	if err != nil {
		err = translateError(err)
		if errors.Is(err, apperror.ErrConflict) && patch.Email != nil {
			return nil, apperror.Conflict("user", "email "+*patch.Email)
		}
		return nil, err
	}

	return updated, nil
}

// DeleteUser removes the user's history and then the user, atomically.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	err := db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM location_updates WHERE user_id = ?`, id); err != nil {
			return fmt.Errorf("sqlite: deleting history for user %s: %w", id, err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
		}

		// RowsAffected tells us if the DELETE actually removed a row.
		// 0 means no user had that ID; the history delete is rolled back with it.
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("user", id)
		}
		return nil
	})
	return translateError(err)
}

// TouchUser sets updated_at to now.
func (db *DB) TouchUser(ctx context.Context, id string) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id,
	)
	if err != nil {
		return translateError(fmt.Errorf("sqlite: touching user %s: %w", id, err))
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getUser(ctx context.Context, q queryer, id string) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, translateError(fmt.Errorf("sqlite: getting user %s: %w", id, err))
	}
	return u, nil
}

// patchAssignments turns the set fields of patch into "col = ?" clauses.
// Column names come from this fixed list, never from input.
func patchAssignments(p model.UserPatch) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Email != nil {
		add("email", *p.Email)
	}
	if p.Coordinates != nil {
		add("coordinates", nullString(p.Coordinates))
	}
	// Descriptors describe the current pin, so clearing it blanks them.
	if p.ClearsLocation() {
		add("city", "")
		add("state", "")
		add("country", "")
		return sets, args
	}
	if p.City != nil {
		add("city", *p.City)
	}
	if p.State != nil {
		add("state", *p.State)
	}
	if p.Country != nil {
		add("country", *p.Country)
	}
	return sets, args
}

// nullString maps nil and "" to SQL NULL.
func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
