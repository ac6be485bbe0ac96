package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/kozaktomas/face-recognizer/internal/facematch"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PersonRepository provides PostgreSQL-backed person registry storage.
type PersonRepository struct {
	pool *Pool
}

// NewPersonRepository creates a new PostgreSQL person repository.
func NewPersonRepository(pool *Pool) *PersonRepository {
	return &PersonRepository{pool: pool}
}

// Count returns the number of enrolled entries.
func (r *PersonRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM persons").Scan(&count); err != nil {
		return 0, fmt.Errorf("count persons: %w", err)
	}
	return count, nil
}

// CountByLabel returns the number of entries with the same normalized label.
func (r *PersonRepository) CountByLabel(ctx context.Context, label string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM persons WHERE label_normalized = $1", facematch.NormalizeLabel(label),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count persons by label: %w", err)
	}
	return count, nil
}

// List returns all entries ordered by id.
func (r *PersonRepository) List(ctx context.Context) ([]database.StoredPerson, error) {
	rows, err := r.pool.Query(ctx, "SELECT id, label, embedding, created_at FROM persons ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()

	return scanPersons(rows)
}

// Get returns the entries with the given ids ordered by id.
func (r *PersonRepository) Get(ctx context.Context, ids []int64) ([]database.StoredPerson, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		"SELECT id, label, embedding, created_at FROM persons WHERE id = ANY($1) ORDER BY id", pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("query persons by id: %w", err)
	}
	defer rows.Close()

	return scanPersons(rows)
}

// Nearest returns the entry closest to embedding by L2 distance. Ties go to the lowest id.
func (r *PersonRepository) Nearest(ctx context.Context, embedding []float32) (*database.StoredPerson, float64, error) {
	if len(embedding) == 0 {
		return nil, 0, nil
	}

	query := `
		SELECT id, label, embedding, created_at, embedding <-> $1 AS distance
		FROM persons
		WHERE vector_dims(embedding) = $2
		ORDER BY distance, id
		LIMIT 1
	`

	var p database.StoredPerson
	var vec pgvector.Vector
	var distance float64
	err := r.pool.QueryRow(ctx, query, pgvector.NewVector(embedding), len(embedding)).
		Scan(&p.ID, &p.Label, &vec, &p.CreatedAt, &distance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("query nearest person: %w", err)
	}

	p.Embedding = vec.Slice()
	return &p, distance, nil
}

// Enroll inserts a new entry.
func (r *PersonRepository) Enroll(ctx context.Context, label string, embedding []float32) (*database.StoredPerson, error) {
	query := `
		INSERT INTO persons (label, label_normalized, embedding)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	p := database.StoredPerson{Label: label, Embedding: embedding}
	err := r.pool.QueryRow(ctx, query, label, facematch.NormalizeLabel(label), pgvector.NewVector(embedding)).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert person: %w", err)
	}
	return &p, nil
}

// Clear removes every entry. The id sequence is not reset.
func (r *PersonRepository) Clear(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, "TRUNCATE persons"); err != nil {
		return fmt.Errorf("truncate persons: %w", err)
	}
	return nil
}

func scanPersons(rows *sql.Rows) ([]database.StoredPerson, error) {
	var persons []database.StoredPerson
	for rows.Next() {
		var p database.StoredPerson
		var vec pgvector.Vector
		if err := rows.Scan(&p.ID, &p.Label, &vec, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		p.Embedding = vec.Slice()
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}
	return persons, nil
}
