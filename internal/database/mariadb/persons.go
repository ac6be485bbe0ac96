package mariadb

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/kozaktomas/face-recognizer/internal/facematch"
)

// PersonRepository provides MariaDB-backed person registry storage.
type PersonRepository struct {
	db *sql.DB
}

func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob has %d bytes, not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}

// Count returns the number of enrolled entries.
func (r *PersonRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM persons").Scan(&count); err != nil {
		return 0, fmt.Errorf("count persons: %w", err)
	}
	return count, nil
}

// CountByLabel returns the number of entries with the same normalized label.
func (r *PersonRepository) CountByLabel(ctx context.Context, label string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM persons WHERE label_normalized = ?", facematch.NormalizeLabel(label),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count persons by label: %w", err)
	}
	return count, nil
}

// List returns all entries ordered by id.
func (r *PersonRepository) List(ctx context.Context) ([]database.StoredPerson, error) {
	return r.query(ctx, "SELECT id, label, embedding, created_at FROM persons ORDER BY id")
}

// Get returns the entries with the given ids ordered by id.
func (r *PersonRepository) Get(ctx context.Context, ids []int64) ([]database.StoredPerson, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return r.query(ctx,
		"SELECT id, label, embedding, created_at FROM persons WHERE id IN ("+placeholders+") ORDER BY id", args...,
	)
}

// Nearest scans the entries with the query's dimension and returns the closest one.
func (r *PersonRepository) Nearest(ctx context.Context, embedding []float32) (*database.StoredPerson, float64, error) {
	if len(embedding) == 0 {
		return nil, 0, nil
	}
	persons, err := r.query(ctx,
		"SELECT id, label, embedding, created_at FROM persons WHERE dims = ? ORDER BY id", len(embedding),
	)
	if err != nil {
		return nil, 0, err
	}
	idx, dist := database.NearestPerson(persons, embedding)
	if idx < 0 {
		return nil, 0, nil
	}
	return &persons[idx], dist, nil
}

// Enroll inserts a new entry.
func (r *PersonRepository) Enroll(ctx context.Context, label string, embedding []float32) (*database.StoredPerson, error) {
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO persons (label, label_normalized, dims, embedding) VALUES (?, ?, ?, ?)",
		label, facematch.NormalizeLabel(label), len(embedding), encodeEmbedding(embedding),
	)
	if err != nil {
		return nil, fmt.Errorf("insert person: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	p := database.StoredPerson{ID: id, Label: label, Embedding: embedding}
	if err := r.db.QueryRowContext(ctx, "SELECT created_at FROM persons WHERE id = ?", id).Scan(&p.CreatedAt); err != nil {
		return nil, fmt.Errorf("read created_at: %w", err)
	}
	return &p, nil
}

// Clear removes every entry. DELETE keeps the auto-increment counter, TRUNCATE would reset it.
func (r *PersonRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM persons"); err != nil {
		return fmt.Errorf("delete persons: %w", err)
	}
	return nil
}

func (r *PersonRepository) query(ctx context.Context, query string, args ...any) ([]database.StoredPerson, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()

	var persons []database.StoredPerson
	for rows.Next() {
		var p database.StoredPerson
		var blob []byte
		if err := rows.Scan(&p.ID, &p.Label, &blob, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		if p.Embedding, err = decodeEmbedding(blob); err != nil {
			return nil, fmt.Errorf("person %d: %w", p.ID, err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}
	return persons, nil
}
