package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/face-recognizer/internal/config"
)

// Backend bundles the stores of one storage backend.
type Backend struct {
	Name    string
	Blobs   BlobStore
	Persons PersonWriter
	Users   UserStore
	close   func() error
}

// NewBackend creates a Backend. closeFn is called by Close and may be nil.
func NewBackend(name string, blobs BlobStore, persons PersonWriter, users UserStore, closeFn func() error) *Backend {
	return &Backend{Name: name, Blobs: blobs, Persons: persons, Users: users, close: closeFn}
}

// Close releases the backend's connections.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenFunc connects to a backend, applies its migrations and returns its stores.
type OpenFunc func(ctx context.Context, cfg *config.DatabaseConfig) (*Backend, error)

var (
	backends   = make(map[string]OpenFunc)
	backendsMu sync.RWMutex
)

// RegisterBackend registers a backend constructor under name.
// This is called from the init function of the backend packages to avoid import cycles.
func RegisterBackend(name string, open OpenFunc) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if _, dup := backends[name]; dup {
		panic("database: RegisterBackend called twice for " + name)
	}
	backends[name] = open
}

// Backends returns the names of the registered backends.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens the backend selected by cfg (DATABASE_URL for PostgreSQL, MARIADB_DSN for MariaDB).
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*Backend, error) {
	name := cfg.Backend()
	if name == "" {
		return nil, fmt.Errorf("no database configured: DATABASE_URL or MARIADB_DSN is required")
	}

	backendsMu.RLock()
	open, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s backend not registered", name)
	}

	backend, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", name, err)
	}
	return backend, nil
}
