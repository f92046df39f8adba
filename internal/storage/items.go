package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/openpantry/pantryscan/internal/model"
)

func (r *Repository) GetItemByBarcode(ctx context.Context, barcode string) (model.Item, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, barcode, title, alias, description, category, created_at, updated_at
		FROM items WHERE barcode = ?`, barcode)
	return scanItem(row)
}

func (r *Repository) GetItemByID(ctx context.Context, id int64) (model.Item, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, barcode, title, alias, description, category, created_at, updated_at
		FROM items WHERE id = ?`, id)
	return scanItem(row)
}

// GetOrCreateItem creates the item unless one with the same barcode already
// exists; the returned bool reports whether a row was created.
func (r *Repository) GetOrCreateItem(ctx context.Context, item model.Item) (model.Item, bool, error) {
	existing, err := r.GetItemByBarcode(ctx, item.Barcode)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return model.Item{}, false, err
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO items (barcode, title, alias, description, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.Barcode, item.Title, item.Alias, item.Description,
		string(model.NormalizeCategory(string(item.Category))), formatTime(now), formatTime(now))
	if err != nil {
		if IsUniqueConstraintError(err) {
			// Lost a race against a concurrent insert; the row exists now.
			existing, err := r.GetItemByBarcode(ctx, item.Barcode)
			return existing, false, err
		}
		return model.Item{}, false, fmt.Errorf("create item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Item{}, false, err
	}
	item.ID = id
	item.Category = model.NormalizeCategory(string(item.Category))
	item.CreatedAt = now
	item.UpdatedAt = now
	return item, true, nil
}

func (r *Repository) GetOrCreateBrand(ctx context.Context, name string) (model.Brand, error) {
	if _, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO brands (name) VALUES (?)`, name); err != nil {
		return model.Brand{}, err
	}
	var brand model.Brand
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM brands WHERE name = ?`, name).
		Scan(&brand.ID, &brand.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Brand{}, ErrNotFound
	}
	return brand, err
}

func (r *Repository) GetOrCreateManufacturer(ctx context.Context, name string) (model.Manufacturer, error) {
	if _, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO manufacturers (name) VALUES (?)`, name); err != nil {
		return model.Manufacturer{}, err
	}
	var manufacturer model.Manufacturer
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM manufacturers WHERE name = ?`, name).
		Scan(&manufacturer.ID, &manufacturer.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Manufacturer{}, ErrNotFound
	}
	return manufacturer, err
}

// AddToUser links an item to a user at a location, creating the row at
// quantity 1 or incrementing an existing one. Returns the resulting quantity.
func (r *Repository) AddToUser(ctx context.Context, userID, itemID, locationID int64) (int, error) {
	now := formatTime(time.Now().UTC())
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_items (user_id, item_id, location_id, quantity, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(user_id, item_id, location_id) DO UPDATE SET
			quantity = quantity + 1,
			updated_at = excluded.updated_at`,
		userID, itemID, locationID, now)
	if err != nil {
		return 0, fmt.Errorf("add to user: %w", err)
	}
	var quantity int
	err = r.db.QueryRowContext(ctx, `
		SELECT quantity FROM user_items WHERE user_id = ? AND item_id = ? AND location_id = ?`,
		userID, itemID, locationID).Scan(&quantity)
	return quantity, err
}

// ListInventory returns the user's items joined with location names,
// ordered by item title.
func (r *Repository) ListInventory(ctx context.Context, userID int64) ([]model.InventoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.id, i.barcode, i.title, i.alias, i.description, i.category, i.created_at, i.updated_at,
		       l.name, ui.quantity
		FROM user_items ui
		JOIN items i ON i.id = ui.item_id
		JOIN locations l ON l.id = ui.location_id
		WHERE ui.user_id = ?
		ORDER BY i.title`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.InventoryEntry
	for rows.Next() {
		var (
			entry                model.InventoryEntry
			category             string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&entry.Item.ID, &entry.Item.Barcode, &entry.Item.Title,
			&entry.Item.Alias, &entry.Item.Description, &category,
			&createdAt, &updatedAt, &entry.Location, &entry.Quantity); err != nil {
			return nil, err
		}
		entry.Item.Category = model.Category(category)
		entry.Item.CreatedAt = parseTime(createdAt)
		entry.Item.UpdatedAt = parseTime(updatedAt)
		result = append(result, entry)
	}
	return result, rows.Err()
}

func scanItem(row rowScanner) (model.Item, error) {
	var (
		item                 model.Item
		category             string
		createdAt, updatedAt string
	)
	err := row.Scan(&item.ID, &item.Barcode, &item.Title, &item.Alias, &item.Description,
		&category, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Item{}, ErrNotFound
	}
	if err != nil {
		return model.Item{}, err
	}
	item.Category = model.Category(category)
	item.CreatedAt = parseTime(createdAt)
	item.UpdatedAt = parseTime(updatedAt)
	return item, nil
}
