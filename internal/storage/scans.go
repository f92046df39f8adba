package storage

import (
	"context"

	"github.com/openpantry/pantryscan/internal/model"
)

func (r *Repository) InsertScan(ctx context.Context, scan model.Scan) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scans (id, user_id, barcode, detected, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		scan.ID, scan.UserID, scan.Barcode, scan.Detected, scan.Source, formatTime(scan.CreatedAt))
	return err
}

// ListRecentScans returns the newest scans for a user, newest first.
func (r *Repository) ListRecentScans(ctx context.Context, userID int64, limit int) ([]model.Scan, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, barcode, detected, source, created_at FROM scans
		WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Scan
	for rows.Next() {
		var (
			scan      model.Scan
			createdAt string
		)
		if err := rows.Scan(&scan.ID, &scan.UserID, &scan.Barcode, &scan.Detected, &scan.Source, &createdAt); err != nil {
			return nil, err
		}
		scan.CreatedAt = parseTime(createdAt)
		result = append(result, scan)
	}
	return result, rows.Err()
}
