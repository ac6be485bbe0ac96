// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/kozaktomas/face-recognizer/internal/facematch"
)

// MockBlobStore is an in-memory implementation of database.BlobStore
type MockBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	// Error injection
	ClearError  error
	AppendError error
	ReadError   error
	SizeError   error
}

// NewMockBlobStore creates a new mock blob store
func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{blobs: make(map[string][]byte)}
}

// Clear empties the named buffer
func (m *MockBlobStore) Clear(ctx context.Context, name string) error {
	if m.ClearError != nil {
		return m.ClearError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, name)
	return nil
}

// Append appends chunk to the named buffer
func (m *MockBlobStore) Append(ctx context.Context, name string, chunk []byte) (int64, error) {
	if m.AppendError != nil {
		return 0, m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = append(m.blobs[name], chunk...)
	return int64(len(m.blobs[name])), nil
}

// Read returns a copy of the named buffer
func (m *MockBlobStore) Read(ctx context.Context, name string) ([]byte, error) {
	if m.ReadError != nil {
		return nil, m.ReadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.blobs[name]), nil
}

// Size returns the length of the named buffer
func (m *MockBlobStore) Size(ctx context.Context, name string) (int64, error) {
	if m.SizeError != nil {
		return 0, m.SizeError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.blobs[name])), nil
}

// MockPersonStore is an in-memory implementation of database.PersonWriter
type MockPersonStore struct {
	mu      sync.RWMutex
	persons []database.StoredPerson
	nextID  int64

	// Error injection
	CountError   error
	ListError    error
	GetError     error
	NearestError error
	EnrollError  error
	ClearError   error
}

// NewMockPersonStore creates a new mock person store
func NewMockPersonStore() *MockPersonStore {
	return &MockPersonStore{nextID: 1}
}

// Count returns the number of entries
func (m *MockPersonStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.persons), nil
}

// CountByLabel counts entries with a matching normalized label
func (m *MockPersonStore) CountByLabel(ctx context.Context, label string) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	normalized := facematch.NormalizeLabel(label)
	count := 0
	for _, p := range m.persons {
		if facematch.NormalizeLabel(p.Label) == normalized {
			count++
		}
	}
	return count, nil
}

// List returns all entries in insertion order
func (m *MockPersonStore) List(ctx context.Context) ([]database.StoredPerson, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.persons), nil
}

// Get returns the entries with the given ids in insertion order
func (m *MockPersonStore) Get(ctx context.Context, ids []int64) ([]database.StoredPerson, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []database.StoredPerson
	for _, p := range m.persons {
		if slices.Contains(ids, p.ID) {
			result = append(result, p)
		}
	}
	return result, nil
}

// Nearest returns the closest entry by exact scan
func (m *MockPersonStore) Nearest(ctx context.Context, embedding []float32) (*database.StoredPerson, float64, error) {
	if m.NearestError != nil {
		return nil, 0, m.NearestError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, dist := database.NearestPerson(m.persons, embedding)
	if idx < 0 {
		return nil, 0, nil
	}
	p := m.persons[idx]
	return &p, dist, nil
}

// Enroll appends an entry
func (m *MockPersonStore) Enroll(ctx context.Context, label string, embedding []float32) (*database.StoredPerson, error) {
	if m.EnrollError != nil {
		return nil, m.EnrollError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := database.StoredPerson{
		ID:        m.nextID,
		Label:     label,
		Embedding: slices.Clone(embedding),
		CreatedAt: time.Now(),
	}
	m.nextID++
	m.persons = append(m.persons, p)
	return &p, nil
}

// Clear removes every entry. Ids keep increasing like a database sequence.
func (m *MockPersonStore) Clear(ctx context.Context) error {
	if m.ClearError != nil {
		return m.ClearError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persons = nil
	return nil
}

// MockUserStore is an in-memory implementation of database.UserStore
type MockUserStore struct {
	mu    sync.RWMutex
	users map[string]*database.StoredUser

	// Error injection
	CreateError error
	GetError    error
	UpdateError error
	DeleteError error
}

// NewMockUserStore creates a new mock user store
func NewMockUserStore() *MockUserStore {
	return &MockUserStore{users: make(map[string]*database.StoredUser)}
}

// Create stores a user
func (m *MockUserStore) Create(ctx context.Context, user *database.StoredUser) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; ok {
		return database.ErrUserExists
	}
	if user.Status == "" {
		user.Status = database.UserStatusUnverified
	}
	user.CreatedAt = time.Now()
	u := *user
	m.users[u.ID] = &u
	return nil
}

// Get returns a copy of the user, or nil
func (m *MockUserStore) Get(ctx context.Context, id string) (*database.StoredUser, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

// UpdateName changes a user's name
func (m *MockUserStore) UpdateName(ctx context.Context, id, name string) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return database.ErrUserNotFound
	}
	u.Name = name
	return nil
}

// UpdateStatus changes a user's verification status
func (m *MockUserStore) UpdateStatus(ctx context.Context, id string, status database.UserStatus) error {
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return database.ErrUserNotFound
	}
	u.Status = status
	return nil
}

// Delete removes a user
func (m *MockUserStore) Delete(ctx context.Context, id string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return database.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

// NewMockBackend returns a database.Backend backed by fresh mock stores.
func NewMockBackend() (*database.Backend, *MockBlobStore, *MockPersonStore, *MockUserStore) {
	blobs := NewMockBlobStore()
	persons := NewMockPersonStore()
	users := NewMockUserStore()
	return database.NewBackend("mock", blobs, persons, users, nil), blobs, persons, users
}
