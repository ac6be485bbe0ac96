package database

import (
	"context"
	"errors"
)

var (
	// ErrUserExists is returned when creating a user whose id is taken.
	ErrUserExists = errors.New("user with this id already exists")
	// ErrUserNotFound is returned for operations on an unknown user id.
	ErrUserNotFound = errors.New("user not found")
)

// BlobStore holds named byte buffers that are built up chunk by chunk.
type BlobStore interface {
	// Clear empties the named buffer. Clearing a missing buffer is not an error.
	Clear(ctx context.Context, name string) error
	// Append adds chunk to the end of the named buffer and returns the new size
	Append(ctx context.Context, name string, chunk []byte) (int64, error)
	// Read returns the full content of the named buffer, empty if it was never written
	Read(ctx context.Context, name string) ([]byte, error)
	// Size returns the length of the named buffer in bytes
	Size(ctx context.Context, name string) (int64, error)
}

// PersonReader provides read-only access to the person registry
type PersonReader interface {
	// Count returns the number of enrolled entries
	Count(ctx context.Context) (int, error)
	// CountByLabel returns the number of entries whose normalized label equals
	// the normalized form of label (see facematch.NormalizeLabel)
	CountByLabel(ctx context.Context, label string) (int, error)
	// List returns all entries in insertion order
	List(ctx context.Context) ([]StoredPerson, error)
	// Get returns the entries with the given ids in insertion order. Unknown ids are skipped.
	Get(ctx context.Context, ids []int64) ([]StoredPerson, error)
	// Nearest returns the entry with the smallest Euclidean distance to embedding
	// and that distance. Ties go to the earliest inserted entry. Entries whose
	// dimension differs from the query are ignored. Returns nil when nothing matches.
	Nearest(ctx context.Context, embedding []float32) (*StoredPerson, float64, error)
}

// PersonWriter provides write access to the person registry
type PersonWriter interface {
	PersonReader

	// Enroll appends a (label, embedding) entry and returns it with its id set
	Enroll(ctx context.Context, label string, embedding []float32) (*StoredPerson, error)
	// Clear removes every entry
	Clear(ctx context.Context) error
}

// UserStore provides access to the user registry
type UserStore interface {
	// Create stores a new user. Returns ErrUserExists if the id is taken.
	Create(ctx context.Context, user *StoredUser) error
	// Get returns the user with the given id, or nil if not found
	Get(ctx context.Context, id string) (*StoredUser, error)
	// UpdateName changes the name of a user. Returns ErrUserNotFound for unknown ids.
	UpdateName(ctx context.Context, id, name string) error
	// UpdateStatus changes the verification status of a user. Returns ErrUserNotFound for unknown ids.
	UpdateStatus(ctx context.Context, id string, status UserStatus) error
	// Delete removes a user. Returns ErrUserNotFound for unknown ids.
	Delete(ctx context.Context, id string) error
}
