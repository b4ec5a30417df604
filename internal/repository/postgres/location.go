package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/teamterrain/internal/apperror"
	"github.com/sakif/teamterrain/internal/model"
	"github.com/sakif/teamterrain/internal/repository"
)

const historyColumns = `id, user_id, coordinates, city, state, country, timestamp`

// ApplyLocation locks the user row, writes the new position and appends
// history in one transaction. Row locking serialises concurrent writers for
// the same user: last commit wins, every commit keeps its history row.
func (d *DB) ApplyLocation(ctx context.Context, userID string, change model.LocationChange) (*model.User, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	var updated *model.User
	err := d.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := getUserForUpdate(ctx, tx, userID); err != nil {
			return err
		}

		now := time.Now().UTC()
		var coords any
		if !change.Clears() {
			coords = change.Coordinates
		}

		_, err := tx.ExecContext(ctx,
			`UPDATE users
			 SET coordinates = $1, city = $2, state = $3, country = $4, updated_at = $5
			 WHERE id = $6`,
			coords, change.City, change.State, change.Country, now, userID,
		)
		if err != nil {
			return fmt.Errorf("postgres: updating location for user %s: %w", userID, err)
		}

		if !change.Clears() {
			if err := insertHistory(ctx, tx, userID, change, now); err != nil {
				return err
			}
		}

		updated, err = getUser(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, translateError(err)
	}
	return updated, nil
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, userID string, change model.LocationChange, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO location_updates (user_id, coordinates, city, state, country, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		userID, change.Coordinates, change.City, change.State, change.Country, at,
	)
	if err != nil {
		return fmt.Errorf("postgres: inserting history for user %s: %w", userID, err)
	}
	return nil
}

func (d *DB) ListHistory(ctx context.Context, userID string, opts repository.ListOptions) ([]model.LocationUpdate, int, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	if _, err := getUser(ctx, d.db, userID); err != nil {
		return nil, 0, err
	}

	var total int
	if err := d.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM location_updates WHERE user_id = $1`, userID,
	); err != nil {
		return nil, 0, translateError(fmt.Errorf("postgres: counting history for user %s: %w", userID, err))
	}

	// LIMIT NULL is LIMIT ALL in PostgreSQL.
	var limit any = opts.Limit
	if opts.Unbounded() {
		limit = nil
	}

	locations := []model.LocationUpdate{}
	if err := d.db.SelectContext(ctx, &locations,
		`SELECT `+historyColumns+` FROM location_updates
		 WHERE user_id = $1
		 ORDER BY timestamp DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, opts.Offset,
	); err != nil {
		return nil, 0, translateError(fmt.Errorf("postgres: listing history for user %s: %w", userID, err))
	}

	return locations, total, nil
}

func (d *DB) ClearHistory(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	var deleted int64
	err := d.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := getUserForUpdate(ctx, tx, userID); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM location_updates WHERE user_id = $1`, userID)
		if err != nil {
			return fmt.Errorf("postgres: clearing history for user %s: %w", userID, err)
		}
		deleted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, translateError(err)
	}
	return deleted, nil
}

func (d *DB) ListRecent(ctx context.Context, limit int) ([]model.LocationUpdate, error) {
	if limit <= 0 {
		return nil, apperror.ValidationFailed("limit", "limit must be positive")
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	locations := []model.LocationUpdate{}
	if err := d.db.SelectContext(ctx, &locations,
		`SELECT lu.id, lu.user_id, lu.coordinates, lu.city, lu.state, lu.country, lu.timestamp,
		        u.name AS user_name, u.email AS user_email
		 FROM location_updates lu
		 JOIN users u ON u.id = lu.user_id
		 ORDER BY lu.timestamp DESC, lu.id DESC
		 LIMIT $1`,
		limit,
	); err != nil {
		return nil, translateError(fmt.Errorf("postgres: listing recent updates: %w", err))
	}
	return locations, nil
}
