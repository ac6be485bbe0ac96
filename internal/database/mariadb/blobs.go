package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// BlobRepository stores model files as LONGBLOB rows.
type BlobRepository struct {
	db *sql.DB
}

// Clear empties the named buffer.
func (r *BlobRepository) Clear(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM model_blobs WHERE name = ?", name); err != nil {
		return fmt.Errorf("clear blob %s: %w", name, err)
	}
	return nil
}

// Append concatenates chunk to the named buffer and returns the new size.
// The upsert holds the row lock until commit, so the size read in the same
// transaction never includes a concurrent caller's chunk.
// Chunks must fit in the server's max_allowed_packet.
func (r *BlobRepository) Append(ctx context.Context, name string, chunk []byte) (int64, error) {
	if chunk == nil {
		chunk = []byte{}
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append blob %s: %w", name, err)
	}

	query := `
		INSERT INTO model_blobs (name, data) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE data = CONCAT(data, VALUES(data))
	`
	if _, err := tx.ExecContext(ctx, query, name, chunk); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("append blob %s: %w", name, err)
	}

	var size int64
	if err := tx.QueryRowContext(ctx, "SELECT LENGTH(data) FROM model_blobs WHERE name = ?", name).Scan(&size); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("size of blob %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append blob %s: %w", name, err)
	}
	return size, nil
}

// Read returns the full named buffer, or an empty slice if it does not exist.
func (r *BlobRepository) Read(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, "SELECT data FROM model_blobs WHERE name = ?", name).Scan(&data)
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
	err := r.db.QueryRowContext(ctx, "SELECT LENGTH(data) FROM model_blobs WHERE name = ?", name).Scan(&size)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("size of blob %s: %w", name, err)
	}
	return size, nil
}
