package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/teamterrain/internal/apperror"
	"github.com/sakif/teamterrain/internal/model"
)

const userColumns = `id, name, email, password, coordinates, city, state, country, created_at, updated_at`

func (d *DB) CreateUser(ctx context.Context, user *model.User) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = xid.New().String()
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := d.db.NamedExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (:id, :name, :email, :password, :coordinates, :city, :state, :country, :created_at, :updated_at)`,
		user,
	)
	if err != nil {
		err = translateError(fmt.Errorf("postgres: inserting user %s: %w", user.Email, err))
		if errors.Is(err, apperror.ErrConflict) {
			return apperror.Conflict("user", "email "+user.Email)
		}
		return err
	}
	return nil
}

func (d *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	return getUser(ctx, d.db, id)
}

func (d *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	var u model.User
	err := d.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &apperror.AppError{Err: apperror.ErrNotFound, Message: "user not found"}
		}
		return nil, translateError(fmt.Errorf("postgres: getting user by email: %w", err))
	}
	return &u, nil
}

func (d *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	users := []model.User{}
	if err := d.db.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`,
	); err != nil {
		return nil, translateError(fmt.Errorf("postgres: listing users: %w", err))
	}
	return users, nil
}

// UpdateUser applies the set fields of patch; see repository.UserRepository.
func (d *DB) UpdateUser(ctx context.Context, id string, patch model.UserPatch) (*model.User, error) {
	if patch.Empty() {
		return nil, apperror.ValidationFailed("", "No valid fields to update")
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	var updated *model.User
	err := d.inTx(ctx, func(tx *sqlx.Tx) error {
		// FOR UPDATE holds the row so a concurrent delete cannot slip in
		// between the existence check and the write.
		if _, err := getUserForUpdate(ctx, tx, id); err != nil {
			return err
		}

		now := time.Now().UTC()
		sets, args := patchAssignments(patch)
		sets = append(sets, "updated_at = ?")
		args = append(args, now, id)

		query := tx.Rebind(`UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("postgres: updating user %s: %w", id, err)
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

func (d *DB) DeleteUser(ctx context.Context, id string) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	err := d.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM location_updates WHERE user_id = $1`, id); err != nil {
			return fmt.Errorf("postgres: deleting history for user %s: %w", id, err)
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("postgres: deleting user %s: %w", id, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("postgres: checking rows affected: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("user", id)
		}
		return nil
	})
	return translateError(err)
}

func (d *DB) TouchUser(ctx context.Context, id string) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	result, err := d.db.ExecContext(ctx, `UPDATE users SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return translateError(fmt.Errorf("postgres: touching user %s: %w", id, err))
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

func getUser(ctx context.Context, q sqlx.QueryerContext, id string) (*model.User, error) {
	var u model.User
	if err := sqlx.GetContext(ctx, q, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, translateError(fmt.Errorf("postgres: getting user %s: %w", id, err))
	}
	return &u, nil
}

func getUserForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.User, error) {
	var u model.User
	if err := tx.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("postgres: locking user %s: %w", id, err)
	}
	return &u, nil
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
		if *p.Coordinates == "" {
			add("coordinates", nil)
		} else {
			add("coordinates", *p.Coordinates)
		}
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
