// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Upload constants
const (
	// DefaultChunkSize is the number of model bytes the CLI sends per append call.
	// It must not exceed the server's MAX_CHUNK_BYTES.
	DefaultChunkSize = 1 << 20

	// MaxJSONBodyBytes caps JSON request bodies (user endpoints)
	MaxJSONBodyBytes = 1 << 20
)

// Timeouts
const (
	// RequestTimeout bounds a single API request; model setup on large files is the slowest call
	RequestTimeout = 5 * time.Minute

	// ShutdownTimeout is how long the server waits for in-flight requests on shutdown
	ShutdownTimeout = 30 * time.Second
)
