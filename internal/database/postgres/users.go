package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-recognizer/internal/database"
)

// UserRepository provides PostgreSQL-backed user storage.
type UserRepository struct {
	pool *Pool
}

// NewUserRepository creates a new PostgreSQL user repository.
func NewUserRepository(pool *Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts a user. Returns database.ErrUserExists when the id is taken.
func (r *UserRepository) Create(ctx context.Context, user *database.StoredUser) error {
	status := user.Status
	if status == "" {
		status = database.UserStatusUnverified
	}

	query := `
		INSERT INTO users (id, name, email, phone, address, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at
	`

	err := r.pool.QueryRow(ctx, query, user.ID, user.Name, user.Email, user.Phone, user.Address, string(status)).
		Scan(&user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return database.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	user.Status = status
	return nil
}

// Get returns a user by id, or nil if not found.
func (r *UserRepository) Get(ctx context.Context, id string) (*database.StoredUser, error) {
	query := `
		SELECT id, name, email, phone, address, status, created_at
		FROM users
		WHERE id = $1
	`

	var u database.StoredUser
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.Address, &status, &u.CreatedAt)
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
	return r.updateOne(ctx, "UPDATE users SET name = $2 WHERE id = $1", id, name)
}

// UpdateStatus changes the verification status of a user.
func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status database.UserStatus) error {
	return r.updateOne(ctx, "UPDATE users SET status = $2 WHERE id = $1", id, string(status))
}

// Delete removes a user.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.updateOne(ctx, "DELETE FROM users WHERE id = $1", id)
}

func (r *UserRepository) updateOne(ctx context.Context, query, id string, args ...any) error {
	result, err := r.pool.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("update user %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return database.ErrUserNotFound
	}
	return nil
}
