// Package loader turns model bytes into activated model handles.
package loader

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kozaktomas/face-recognizer/internal/inference"
)

// Model names used in LoadError.
const (
	ModelDetection   = "face-detection"
	ModelRecognition = "face-recognition"
)

// ErrNotLoaded is returned when no models have been activated yet.
var ErrNotLoaded = errors.New("no models loaded")

// LoadError reports which model failed to load and why.
type LoadError struct {
	Model string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s model: %v", e.Model, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Models is a pair of activated handles that are always replaced together.
type Models struct {
	Detector inference.Model
	Embedder inference.Model
}

// State describes the loader for status reporting.
type State struct {
	Loaded        bool      `json:"loaded"`
	ActivatedAt   time.Time `json:"activated_at,omitzero"`
	DetectorBytes int       `json:"detector_bytes"`
	EmbedderBytes int       `json:"embedder_bytes"`
}

// Loader owns the active models.
//
// Setup closes the handles it replaces, so callers running inference must not
// overlap with Setup or Reset. The recognition service guarantees this with
// its own lock.
type Loader struct {
	runtime inference.Runtime

	mu     sync.RWMutex
	active *Models
	state  State
}

// New creates an unloaded Loader that parses models with runtime.
func New(runtime inference.Runtime) *Loader {
	return &Loader{runtime: runtime}
}

// Setup parses both buffers and, if both succeed, activates them in one step.
// On failure the previously active models stay in place.
func (l *Loader) Setup(detectorBytes, embedderBytes []byte) error {
	if len(detectorBytes) == 0 {
		return &LoadError{Model: ModelDetection, Err: inference.ErrEmptyModel}
	}
	if len(embedderBytes) == 0 {
		return &LoadError{Model: ModelRecognition, Err: inference.ErrEmptyModel}
	}

	detector, err := l.runtime.Load(detectorBytes)
	if err != nil {
		return &LoadError{Model: ModelDetection, Err: err}
	}
	embedder, err := l.runtime.Load(embedderBytes)
	if err != nil {
		if cerr := detector.Close(); cerr != nil {
			log.Printf("Warning: closing unused detector: %v", cerr)
		}
		return &LoadError{Model: ModelRecognition, Err: err}
	}

	l.mu.Lock()
	old := l.active
	l.active = &Models{Detector: detector, Embedder: embedder}
	l.state = State{
		Loaded:        true,
		ActivatedAt:   time.Now(),
		DetectorBytes: len(detectorBytes),
		EmbedderBytes: len(embedderBytes),
	}
	l.mu.Unlock()

	closeModels(old)
	return nil
}

// Active returns the active models or ErrNotLoaded.
func (l *Loader) Active() (*Models, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.active == nil {
		return nil, ErrNotLoaded
	}
	return l.active, nil
}

// Reset drops the active models.
func (l *Loader) Reset() {
	l.mu.Lock()
	old := l.active
	l.active = nil
	l.state = State{}
	l.mu.Unlock()

	closeModels(old)
}

// State returns a snapshot of the loader state.
func (l *Loader) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func closeModels(m *Models) {
	if m == nil {
		return
	}
	if err := m.Detector.Close(); err != nil {
		log.Printf("Warning: closing detector: %v", err)
	}
	if err := m.Embedder.Close(); err != nil {
		log.Printf("Warning: closing embedder: %v", err)
	}
}
