package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/openpantry/pantryscan/internal/model"
)

func (r *Repository) ListLocations(ctx context.Context, userID int64) ([]model.Location, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, created_at FROM locations
		WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Location
	for rows.Next() {
		var (
			loc       model.Location
			createdAt string
		)
		if err := rows.Scan(&loc.ID, &loc.UserID, &loc.Name, &createdAt); err != nil {
			return nil, err
		}
		loc.CreatedAt = parseTime(createdAt)
		result = append(result, loc)
	}
	return result, rows.Err()
}

func (r *Repository) GetLocation(ctx context.Context, userID, id int64) (model.Location, error) {
	var (
		loc       model.Location
		createdAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, created_at FROM locations WHERE user_id = ? AND id = ?`,
		userID, id).Scan(&loc.ID, &loc.UserID, &loc.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Location{}, ErrNotFound
	}
	if err != nil {
		return model.Location{}, err
	}
	loc.CreatedAt = parseTime(createdAt)
	return loc, nil
}

// GetOrCreateLocation creates the named location for the user unless it
// already exists; the returned bool reports whether a row was created.
func (r *Repository) GetOrCreateLocation(ctx context.Context, userID int64, name string) (model.Location, bool, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO locations (user_id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id, name) DO NOTHING`,
		userID, name, formatTime(now))
	if err != nil {
		return model.Location{}, false, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return model.Location{}, false, err
	}

	var (
		loc       model.Location
		createdAt string
	)
	err = r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, created_at FROM locations WHERE user_id = ? AND name = ?`,
		userID, name).Scan(&loc.ID, &loc.UserID, &loc.Name, &createdAt)
	if err != nil {
		return model.Location{}, false, err
	}
	loc.CreatedAt = parseTime(createdAt)
	return loc, inserted > 0, nil
}
