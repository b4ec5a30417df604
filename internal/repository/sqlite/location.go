package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/teamterrain/internal/apperror"
	"github.com/sakif/teamterrain/internal/model"
	"github.com/sakif/teamterrain/internal/repository"
)

const historyColumns = `id, user_id, coordinates, city, state, country, timestamp`

func scanLocation(s rowScanner, extra ...any) (model.LocationUpdate, error) {
	var l model.LocationUpdate
	dest := append([]any{
		&l.ID,
		&l.UserID,
		&l.Coordinates,
		&l.City,
		&l.State,
		&l.Country,
		&l.Timestamp,
	}, extra...)
	err := s.Scan(dest...)
	return l, err
}

// ApplyLocation updates the user's current position and appends history in
// one transaction. Concurrent callers are serialised by the single pooled
// connection: the last commit wins the users row, and every commit gets
// its own history row.
func (db *DB) ApplyLocation(ctx context.Context, userID string, change model.LocationChange) (*model.User, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var updated *model.User
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getUser(ctx, tx, userID); err != nil {
			return err
		}

		now := time.Now().UTC()
		var coords sql.NullString
		if !change.Clears() {
			coords = sql.NullString{String: change.Coordinates, Valid: true}
		}

		_, err := tx.ExecContext(ctx,
			`UPDATE users
			 SET coordinates = ?, city = ?, state = ?, country = ?, updated_at = ?
			 WHERE id = ?`,
			coords, change.City, change.State, change.Country, now, userID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating location for user %s: %w", userID, err)
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

func insertHistory(ctx context.Context, tx *sql.Tx, userID string, change model.LocationChange, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO location_updates (user_id, coordinates, city, state, country, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		userID, change.Coordinates, change.City, change.State, change.Country, at,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting history for user %s: %w", userID, err)
	}
	return nil
}

// ListHistory returns one page of history, newest first. The id tie-break
// keeps the order stable for rows written within the same clock tick.
func (db *DB) ListHistory(ctx context.Context, userID string, opts repository.ListOptions) ([]model.LocationUpdate, int, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	if _, err := getUser(ctx, db.conn, userID); err != nil {
		return nil, 0, err
	}

	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM location_updates WHERE user_id = ?`, userID,
	).Scan(&total); err != nil {
		return nil, 0, translateError(fmt.Errorf("sqlite: counting history for user %s: %w", userID, err))
	}

	// SQLite reads a negative LIMIT as "no limit".
	limit := opts.Limit
	if opts.Unbounded() {
		limit = -1
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM location_updates
		 WHERE user_id = ?
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ? OFFSET ?`,
		userID, limit, opts.Offset,
	)
	if err != nil {
		return nil, 0, translateError(fmt.Errorf("sqlite: listing history for user %s: %w", userID, err))
	}
	defer rows.Close()

	locations := []model.LocationUpdate{}
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning history row: %w", err)
		}
		locations = append(locations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translateError(fmt.Errorf("sqlite: iterating history: %w", err))
	}

	return locations, total, nil
}

// ClearHistory deletes all history rows for the user. The user's current
// position is left as is.
func (db *DB) ClearHistory(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var deleted int64
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getUser(ctx, tx, userID); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM location_updates WHERE user_id = ?`, userID)
		if err != nil {
			return fmt.Errorf("sqlite: clearing history for user %s: %w", userID, err)
		}
		deleted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, translateError(err)
	}
	return deleted, nil
}

// ListRecent returns the latest updates across all users, joined with the
// owning user's name and email.
func (db *DB) ListRecent(ctx context.Context, limit int) ([]model.LocationUpdate, error) {
	if limit <= 0 {
		return nil, apperror.ValidationFailed("limit", "limit must be positive")
	}

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT lu.id, lu.user_id, lu.coordinates, lu.city, lu.state, lu.country, lu.timestamp,
		        u.name, u.email
		 FROM location_updates lu
		 JOIN users u ON u.id = lu.user_id
		 ORDER BY lu.timestamp DESC, lu.id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, translateError(fmt.Errorf("sqlite: listing recent updates: %w", err))
	}
	defer rows.Close()

	locations := []model.LocationUpdate{}
	for rows.Next() {
		var name, email string
		l, err := scanLocation(rows, &name, &email)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning recent update: %w", err)
		}
		l.UserName, l.UserEmail = name, email
		locations = append(locations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(fmt.Errorf("sqlite: iterating recent updates: %w", err))
	}

	return locations, nil
}
