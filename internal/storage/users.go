package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/openpantry/pantryscan/internal/model"
)

// ErrDuplicateEmail is returned when registering an already-known email.
var ErrDuplicateEmail = errors.New("email already registered")

func (r *Repository) CreateUser(ctx context.Context, email, username, passwordHash string) (model.User, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (email, username, password_hash, created_at)
		VALUES (?, ?, ?, ?)`,
		email, username, passwordHash, formatTime(now))
	if err != nil {
		if IsUniqueConstraintError(err) {
			return model.User{}, ErrDuplicateEmail
		}
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return model.User{ID: id, Email: email, Username: username, PasswordHash: passwordHash, CreatedAt: now}, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, username, password_hash, created_at FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *Repository) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, username, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// SearchUsers matches users by email or username substring, ordered by email.
func (r *Repository) SearchUsers(ctx context.Context, query string) ([]model.User, error) {
	pattern := "%" + query + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, username, password_hash, created_at FROM users
		WHERE email LIKE ? OR username LIKE ?
		ORDER BY email`, pattern, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		user      model.User
		createdAt string
	)
	err := row.Scan(&user.ID, &user.Email, &user.Username, &user.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	user.CreatedAt = parseTime(createdAt)
	return user, nil
}
