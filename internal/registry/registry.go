// Package registry matches face embeddings against enrolled persons.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/kozaktomas/face-recognizer/internal/database"
)

// Match is the nearest enrolled person and its Euclidean distance to the query.
type Match struct {
	Person   database.StoredPerson
	Distance float64
}

// Options configures the optional in-memory HNSW index.
type Options struct {
	HNSW      bool
	IndexPath string
}

// Registry wraps the durable person store. With HNSW enabled, lookups fetch
// approximate candidates from the index and re-rank them exactly.
type Registry struct {
	store     database.PersonWriter
	index     *database.PersonIndex
	indexPath string
}

// New creates a registry on top of store. Call Init before use when HNSW is enabled.
func New(store database.PersonWriter, opts Options) *Registry {
	r := &Registry{store: store, indexPath: opts.IndexPath}
	if opts.HNSW {
		r.index = database.NewPersonIndex()
	}
	return r
}

// HNSWEnabled reports whether the approximate index is in use.
func (r *Registry) HNSWEnabled() bool {
	return r.index != nil
}

// Init loads the saved index if it matches the store, otherwise rebuilds it
// from the stored rows. It is a no-op without HNSW.
func (r *Registry) Init(ctx context.Context) error {
	if r.index == nil {
		return nil
	}

	persons, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing persons: %w", err)
	}

	if r.indexPath != "" && r.loadSavedIndex(persons) {
		log.Printf("Person index: loaded %d entries from %s", r.index.Count(), r.indexPath)
		return nil
	}

	r.index.Build(persons)
	log.Printf("Person index: built from %d entries", r.index.Count())
	return nil
}

func (r *Registry) loadSavedIndex(persons []database.StoredPerson) bool {
	meta, err := database.LoadPersonIndexMetadata(r.indexPath)
	if err != nil {
		return false
	}
	var maxID int64
	if n := len(persons); n > 0 {
		maxID = persons[n-1].ID
	}
	if meta.PersonCount != len(persons) || meta.MaxPersonID != maxID {
		log.Printf("Person index: saved index is stale (%d entries, max id %d; registry has %d, max id %d)",
			meta.PersonCount, meta.MaxPersonID, len(persons), maxID)
		return false
	}
	if err := r.index.Load(r.indexPath); err != nil {
		log.Printf("Warning: loading person index: %v", err)
		return false
	}
	return true
}

// Save writes the index to the configured path. No-op without HNSW or a path.
func (r *Registry) Save() error {
	if r.index == nil || r.indexPath == "" {
		return nil
	}
	if err := r.index.Save(r.indexPath); err != nil {
		return fmt.Errorf("saving person index: %w", err)
	}
	return nil
}

// Enroll stores a new (label, embedding) entry. Duplicate labels are allowed.
func (r *Registry) Enroll(ctx context.Context, label string, embedding []float32) (*database.StoredPerson, error) {
	person, err := r.store.Enroll(ctx, label, embedding)
	if err != nil {
		return nil, fmt.Errorf("enrolling %q: %w", label, err)
	}
	if r.index != nil {
		if err := r.index.Add(person); err != nil {
			// Match falls back to the store for queries the index cannot answer
			log.Printf("Warning: person %d not indexed: %v", person.ID, err)
		}
	}
	return person, nil
}

// Match returns the enrolled entry nearest to embedding, or nil if the registry
// has no entry of the same dimension. Exact ties go to the earliest enrolled entry.
func (r *Registry) Match(ctx context.Context, embedding []float32) (*Match, error) {
	if r.index != nil {
		m, err := r.matchIndexed(ctx, embedding)
		if err == nil && m != nil {
			return m, nil
		}
		if err != nil && !errors.Is(err, database.ErrDimensionMismatch) {
			return nil, err
		}
	}

	person, dist, err := r.store.Nearest(ctx, embedding)
	if err != nil {
		return nil, fmt.Errorf("nearest person: %w", err)
	}
	if person == nil {
		return nil, nil
	}
	return &Match{Person: *person, Distance: dist}, nil
}

func (r *Registry) matchIndexed(ctx context.Context, embedding []float32) (*Match, error) {
	ids, err := r.index.Search(embedding, database.HNSWSearchCandidates)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	candidates, err := r.store.Get(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading candidates: %w", err)
	}
	idx, dist := database.NearestPerson(candidates, embedding)
	if idx < 0 {
		return nil, nil
	}
	return &Match{Person: candidates[idx], Distance: dist}, nil
}

// Count returns the number of enrolled entries.
func (r *Registry) Count(ctx context.Context) (int, error) {
	n, err := r.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting persons: %w", err)
	}
	return n, nil
}

// CountByLabel returns the number of entries enrolled under label after normalization.
func (r *Registry) CountByLabel(ctx context.Context, label string) (int, error) {
	n, err := r.store.CountByLabel(ctx, label)
	if err != nil {
		return 0, fmt.Errorf("counting persons by label: %w", err)
	}
	return n, nil
}

// Clear removes every entry.
func (r *Registry) Clear(ctx context.Context) error {
	if err := r.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing persons: %w", err)
	}
	if r.index != nil {
		r.index.Reset()
	}
	return nil
}
