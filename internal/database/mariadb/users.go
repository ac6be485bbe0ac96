package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-recognizer/internal/database"
)

// UserRepository provides MariaDB-backed user storage.
type UserRepository struct {
	db *sql.DB
}

// Create inserts a user. Returns database.ErrUserExists when the id is taken.
func (r *UserRepository) Create(ctx context.Context, user *database.StoredUser) error {
	if user.Status == "" {
		user.Status = database.UserStatusUnverified
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users (id, name, email, phone, address, status) VALUES (?, ?, ?, ?, ?, ?)",
		user.ID, user.Name, user.Email, user.Phone, user.Address, string(user.Status),
	)
	if isDuplicateKey(err) {
		return database.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, "SELECT created_at FROM users WHERE id = ?", user.ID).Scan(&user.CreatedAt); err != nil {
		return fmt.Errorf("read created_at: %w", err)
	}
	return nil
}

// Get returns a user by id, or nil if not found.
func (r *UserRepository) Get(ctx context.Context, id string) (*database.StoredUser, error) {
	var u database.StoredUser
	var status string
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, email, phone, address, status, created_at FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Address, &status, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.Status = database.UserStatus(status)
	return &u, nil
}

// UpdateName changes the name of a user.
func (r *UserRepository) UpdateName(ctx context.Context, id, name string) error {
	return r.requireExisting(ctx, id, "UPDATE users SET name = ? WHERE id = ?", name, id)
}

// UpdateStatus changes the verification status of a user.
func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status database.UserStatus) error {
	return r.requireExisting(ctx, id, "UPDATE users SET status = ? WHERE id = ?", string(status), id)
}

// Delete removes a user.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.requireExisting(ctx, id, "DELETE FROM users WHERE id = ?", id)
}

// requireExisting runs stmt after checking that the user exists.
// MySQL reports zero affected rows when an UPDATE leaves the data unchanged,
// so RowsAffected cannot tell a missing user apart.
func (r *UserRepository) requireExisting(ctx context.Context, id, stmt string, args ...any) error {
	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return database.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("check user %s: %w", id, err)
	}
	if _, err := r.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("update user %s: %w", id, err)
	}
	return nil
}
