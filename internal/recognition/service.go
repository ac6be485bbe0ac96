// Package recognition implements the face pipeline and model provisioning on
// top of the chunk store, the model loader and the person registry.
package recognition

import (
	"context"
	"fmt"
	"image"
	"log"
	"strings"
	"sync"

	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/kozaktomas/face-recognizer/internal/facematch"
	"github.com/kozaktomas/face-recognizer/internal/imaging"
	"github.com/kozaktomas/face-recognizer/internal/loader"
	"github.com/kozaktomas/face-recognizer/internal/registry"
)

// Person is the result of a recognition.
type Person struct {
	Label    string  `json:"label"`
	Distance float64 `json:"distance"`
}

// Status summarizes the provisioning state of the service.
type Status struct {
	Models        loader.State     `json:"models"`
	Blobs         map[string]int64 `json:"blobs"`
	Persons       int              `json:"persons"`
	RegistryIndex string           `json:"registry_index"`
}

// Service owns the active models and the registry. Pipeline and setup calls
// are serialized by one lock; chunk uploads are not.
type Service struct {
	mu       sync.Mutex
	loader   *loader.Loader
	blobs    database.BlobStore
	registry *registry.Registry
	users    database.UserStore
	pipeline config.PipelineConfig
}

// NewService creates a Service. users may be nil when user verification is not needed.
func NewService(
	l *loader.Loader,
	blobs database.BlobStore,
	reg *registry.Registry,
	users database.UserStore,
	pipeline config.PipelineConfig,
) *Service {
	return &Service{
		loader:   l,
		blobs:    blobs,
		registry: reg,
		users:    users,
		pipeline: pipeline,
	}
}

// Resume is the restart hook. Activated models never survive a restart, so the
// loader is reset and an explicit SetupModels call is required.
func (s *Service) Resume(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loader.Reset()

	det, _ := s.blobs.Size(ctx, database.BlobFaceDetection)
	rec, _ := s.blobs.Size(ctx, database.BlobFaceRecognition)
	if det > 0 && rec > 0 {
		log.Printf("Stored models found (%d and %d bytes), call setup to activate them", det, rec)
	} else {
		log.Printf("No stored models, upload both models and call setup")
	}
}

// ClearModelBytes empties the named model blob.
func (s *Service) ClearModelBytes(ctx context.Context, name string) error {
	if !database.ValidBlobName(name) {
		return fmt.Errorf("%w: unknown model %q", ErrUploadSequence, name)
	}
	if err := s.blobs.Clear(ctx, name); err != nil {
		return fmt.Errorf("clearing %s: %w", name, err)
	}
	return nil
}

// AppendModelBytes appends chunk to the named model blob and returns its new size.
func (s *Service) AppendModelBytes(ctx context.Context, name string, chunk []byte) (int64, error) {
	if !database.ValidBlobName(name) {
		return 0, fmt.Errorf("%w: unknown model %q", ErrUploadSequence, name)
	}
	size, err := s.blobs.Append(ctx, name, chunk)
	if err != nil {
		return 0, fmt.Errorf("appending to %s: %w", name, err)
	}
	return size, nil
}

// SetupModels activates the stored model blobs.
func (s *Service) SetupModels(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	detector, err := s.blobs.Read(ctx, database.BlobFaceDetection)
	if err != nil {
		return fmt.Errorf("reading %s: %w", database.BlobFaceDetection, err)
	}
	embedder, err := s.blobs.Read(ctx, database.BlobFaceRecognition)
	if err != nil {
		return fmt.Errorf("reading %s: %w", database.BlobFaceRecognition, err)
	}

	if err := s.loader.Setup(detector, embedder); err != nil {
		return err
	}
	log.Printf("Models activated (detector %d bytes, embedder %d bytes)", len(detector), len(embedder))
	return nil
}

// Status reports model state, blob sizes and the registry size.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	st := &Status{
		Models:        s.loader.State(),
		Blobs:         make(map[string]int64, 2),
		RegistryIndex: "exact",
	}
	if s.registry.HNSWEnabled() {
		st.RegistryIndex = "hnsw"
	}
	for _, name := range []string{database.BlobFaceDetection, database.BlobFaceRecognition} {
		size, err := s.blobs.Size(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("size of %s: %w", name, err)
		}
		st.Blobs[name] = size
	}
	n, err := s.registry.Count(ctx)
	if err != nil {
		return nil, err
	}
	st.Persons = n
	return st, nil
}

// Detect returns the primary face in the image.
func (s *Service) Detect(ctx context.Context, data []byte) (facematch.BoundingBox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	models, err := s.loader.Active()
	if err != nil {
		return facematch.BoundingBox{}, err
	}
	_, box, err := s.detectPrimary(models, data)
	return box, err
}

// DetectAll returns every face in the image after non-maximum suppression,
// strongest first.
func (s *Service) DetectAll(ctx context.Context, data []byte) ([]facematch.BoundingBox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	models, err := s.loader.Active()
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	candidates, err := runDetector(models.Detector, img, s.pipeline.Detector)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoFaceFound
	}
	return facematch.NonMaxSuppression(candidates, s.pipeline.Detector.IoUThreshold), nil
}

// Recognize returns the enrolled person nearest to the primary face in the image.
func (s *Service) Recognize(ctx context.Context, data []byte) (*Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.recognizeLocked(ctx, data)
}

func (s *Service) recognizeLocked(ctx context.Context, data []byte) (*Person, error) {
	models, err := s.loader.Active()
	if err != nil {
		return nil, err
	}
	n, err := s.registry.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrEmptyRegistry
	}

	embedding, err := s.embed(models, data)
	if err != nil {
		return nil, err
	}

	match, err := s.registry.Match(ctx, embedding)
	if err != nil {
		return nil, err
	}
	if match == nil {
		// entries exist but none has this embedder's dimension
		return nil, ErrEmptyRegistry
	}
	return &Person{Label: match.Person.Label, Distance: match.Distance}, nil
}

// Add enrolls the primary face of the image under label and returns its embedding.
// Nothing is stored unless the embedding was computed.
func (s *Service) Add(ctx context.Context, label string, data []byte) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	models, err := s.loader.Active()
	if err != nil {
		return nil, err
	}
	embedding, err := s.embed(models, data)
	if err != nil {
		return nil, err
	}
	if _, err := s.registry.Enroll(ctx, label, embedding); err != nil {
		return nil, err
	}
	return embedding, nil
}

// CountPersons returns the registry size, or the number of entries for label
// when label is not empty.
func (s *Service) CountPersons(ctx context.Context, label string) (int, error) {
	if label != "" {
		return s.registry.CountByLabel(ctx, label)
	}
	return s.registry.Count(ctx)
}

// ClearRegistry removes every enrolled person.
func (s *Service) ClearRegistry(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Clear(ctx)
}

// VerifyUser recognizes the face in the image and marks the user as verified
// when the recognized label matches the user's name, failed otherwise.
// Pipeline errors leave the status unchanged.
func (s *Service) VerifyUser(ctx context.Context, id string, data []byte) (*database.StoredUser, error) {
	if s.users == nil {
		return nil, fmt.Errorf("user store not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading user %s: %w", id, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	person, err := s.recognizeLocked(ctx, data)
	if err != nil {
		return nil, err
	}

	status := database.UserStatusFailed
	if facematch.NormalizeLabel(person.Label) == facematch.NormalizeLabel(user.Name) {
		status = database.UserStatusSuccess
	}
	if err := s.users.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("updating user %s: %w", id, err)
	}
	user.Status = status
	return user, nil
}

// detectPrimary decodes the image and returns it with its primary face.
func (s *Service) detectPrimary(models *loader.Models, data []byte) (image.Image, facematch.BoundingBox, error) {
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, facematch.BoundingBox{}, err
	}
	candidates, err := runDetector(models.Detector, img, s.pipeline.Detector)
	if err != nil {
		return nil, facematch.BoundingBox{}, err
	}
	idx := facematch.SelectPrimary(candidates)
	if idx < 0 {
		return nil, facematch.BoundingBox{}, ErrNoFaceFound
	}
	return img, candidates[idx], nil
}

func (s *Service) embed(models *loader.Models, data []byte) ([]float32, error) {
	img, box, err := s.detectPrimary(models, data)
	if err != nil {
		return nil, err
	}
	return runEmbedder(models.Embedder, img, box, s.pipeline.Embedder)
}

// ValidLabel trims label and reports whether it can be enrolled.
func ValidLabel(label string) (string, bool) {
	label = strings.TrimSpace(label)
	return label, label != ""
}
