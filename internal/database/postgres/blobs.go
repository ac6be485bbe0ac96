package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// BlobRepository stores model files as bytea rows. Every call is a single statement.
type BlobRepository struct {
	pool *Pool
}

// NewBlobRepository creates a new PostgreSQL blob repository.
func NewBlobRepository(pool *Pool) *BlobRepository {
	return &BlobRepository{pool: pool}
}

// Clear empties the named buffer.
func (r *BlobRepository) Clear(ctx context.Context, name string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM model_blobs WHERE name = $1", name); err != nil {
		return fmt.Errorf("clear blob %s: %w", name, err)
	}
	return nil
}

// Append concatenates chunk to the named buffer and returns the new size.
func (r *BlobRepository) Append(ctx context.Context, name string, chunk []byte) (int64, error) {
	query := `
		INSERT INTO model_blobs (name, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE
		SET data = model_blobs.data || EXCLUDED.data, updated_at = NOW()
		RETURNING octet_length(data)
	`

	if chunk == nil {
		chunk = []byte{}
	}

	var size int64
	if err := r.pool.QueryRow(ctx, query, name, chunk).Scan(&size); err != nil {
		return 0, fmt.Errorf("append blob %s: %w", name, err)
	}
	return size, nil
}

// Read returns the full named buffer, or an empty slice if it does not exist.
func (r *BlobRepository) Read(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, "SELECT data FROM model_blobs WHERE name = $1", name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return []byte{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", name, err)
	}
	return data, nil
}

// Size returns the length of the named buffer.
func (r *BlobRepository) Size(ctx context.Context, name string) (int64, error) {
	var size int64
	err := r.pool.QueryRow(ctx,
		"SELECT COALESCE((SELECT octet_length(data) FROM model_blobs WHERE name = $1), 0)", name,
	).Scan(&size)
	if err != nil {
		return 0, fmt.Errorf("size of blob %s: %w", name, err)
	}
	return size, nil
}
