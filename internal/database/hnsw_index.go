package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// ErrDimensionMismatch is returned when a vector does not match the index dimension.
var ErrDimensionMismatch = errors.New("embedding dimension does not match index")

// PersonIndexMetadata stores metadata for validating cached person indexes.
type PersonIndexMetadata struct {
	PersonCount int       `json:"person_count"`
	MaxPersonID int64     `json:"max_person_id"`
	BuildTime   time.Time `json:"build_time"`
	Version     int       `json:"version"`
}

const personIndexMetadataVersion = 1

// PersonIndex wraps an HNSW graph over person embeddings using Euclidean distance.
// Keys are person ids from the registry.
type PersonIndex struct {
	graph *hnsw.Graph[int64]
	dims  int
	maxID int64
	mu    sync.RWMutex
}

// NewPersonIndex creates a new empty person index.
func NewPersonIndex() *PersonIndex {
	return &PersonIndex{}
}

func newPersonGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors)
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Build replaces the index content with persons.
// Entries whose dimension differs from the first entry are skipped.
func (h *PersonIndex) Build(persons []StoredPerson) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.graph = nil
	h.dims = 0
	h.maxID = 0

	for i := range persons {
		_ = h.addLocked(&persons[i])
	}
}

// Add inserts a single person.
func (h *PersonIndex) Add(person *StoredPerson) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addLocked(person)
}

func (h *PersonIndex) addLocked(person *StoredPerson) error {
	if len(person.Embedding) == 0 {
		return nil
	}
	if h.graph == nil {
		h.graph = newPersonGraph()
		h.dims = len(person.Embedding)
	}
	if len(person.Embedding) != h.dims {
		return fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(person.Embedding), h.dims)
	}
	h.graph.Add(hnsw.MakeNode(person.ID, person.Embedding))
	h.maxID = max(h.maxID, person.ID)
	return nil
}

// Search returns up to k candidate ids closest to query. The result is approximate.
func (h *PersonIndex) Search(query []float32, k int) ([]int64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil || h.graph.Len() == 0 {
		return nil, nil
	}
	if len(query) != h.dims {
		return nil, fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(query), h.dims)
	}

	neighbors := h.graph.Search(query, k)
	ids := make([]int64, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.Key
	}
	return ids, nil
}

// Reset empties the index.
func (h *PersonIndex) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph = nil
	h.dims = 0
	h.maxID = 0
}

// Count returns the number of indexed persons.
func (h *PersonIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.graph == nil {
		return 0
	}
	return h.graph.Len()
}

// Metadata describes the current index content.
func (h *PersonIndex) Metadata() PersonIndexMetadata {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	if h.graph != nil {
		count = h.graph.Len()
	}
	return PersonIndexMetadata{
		PersonCount: count,
		MaxPersonID: h.maxID,
		Version:     personIndexMetadataVersion,
	}
}

// Save persists the graph to path and its metadata to path.meta.
// An empty index removes both files.
func (h *PersonIndex) Save(path string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil || h.graph.Len() == 0 {
		// best-effort cleanup
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create person index file: %w", err)
	}
	if err := h.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export person index: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing person index file: %w", err)
	}

	metadata := PersonIndexMetadata{
		PersonCount: h.graph.Len(),
		MaxPersonID: h.maxID,
		BuildTime:   time.Now(),
		Version:     personIndexMetadataVersion,
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", data, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// LoadPersonIndexMetadata reads the metadata written next to a saved index.
func LoadPersonIndexMetadata(path string) (PersonIndexMetadata, error) {
	var metadata PersonIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}

// Load replaces the index content with the graph saved at path.
// The caller is expected to compare LoadPersonIndexMetadata against the
// registry first and rebuild instead when the saved index is stale.
func (h *PersonIndex) Load(path string) error {
	metadata, err := LoadPersonIndexMetadata(path)
	if err != nil {
		return err
	}
	if metadata.Version != personIndexMetadataVersion {
		return fmt.Errorf("unsupported person index version %d", metadata.Version)
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return fmt.Errorf("failed to load person index: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.graph = saved.Graph
	h.graph.Distance = hnsw.EuclideanDistance
	h.dims = h.graph.Dims()
	h.maxID = metadata.MaxPersonID
	return nil
}
