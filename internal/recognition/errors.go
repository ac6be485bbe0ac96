package recognition

import (
	"errors"

	"github.com/kozaktomas/face-recognizer/internal/imaging"
	"github.com/kozaktomas/face-recognizer/internal/loader"
)

var (
	// ErrNoModelsLoaded is returned by pipeline calls before a successful setup.
	ErrNoModelsLoaded = loader.ErrNotLoaded
	// ErrDecode is returned for unsupported or corrupt images.
	ErrDecode = imaging.ErrDecode
	// ErrNoFaceFound is returned when the detector finds no face above the threshold.
	ErrNoFaceFound = errors.New("no face found")
	// ErrEmptyRegistry is returned by Recognize when nobody is enrolled.
	ErrEmptyRegistry = errors.New("no persons enrolled")
	// ErrUploadSequence is returned for misuse of the model upload calls.
	ErrUploadSequence = errors.New("invalid model upload")
	// ErrInference is returned when a model produces unusable output.
	ErrInference = errors.New("inference failed")
	// ErrUserNotFound is returned when verifying an unknown user.
	ErrUserNotFound = errors.New("user not found")
)

// Error kinds reported to API clients.
const (
	KindNoModelsLoaded = "no_models_loaded"
	KindLoadError      = "load_error"
	KindDecodeError    = "decode_error"
	KindNoFaceFound    = "no_face_found"
	KindEmptyRegistry  = "empty_registry"
	KindUploadSequence = "upload_sequence"
	KindInference      = "inference"
	KindNotFound       = "not_found"
	KindInternal       = "internal"
)

// KindOf classifies err into one of the Kind constants.
func KindOf(err error) string {
	var loadErr *loader.LoadError
	switch {
	case errors.Is(err, ErrNoModelsLoaded):
		return KindNoModelsLoaded
	case errors.As(err, &loadErr):
		return KindLoadError
	case errors.Is(err, ErrDecode):
		return KindDecodeError
	case errors.Is(err, ErrNoFaceFound):
		return KindNoFaceFound
	case errors.Is(err, ErrEmptyRegistry):
		return KindEmptyRegistry
	case errors.Is(err, ErrUploadSequence):
		return KindUploadSequence
	case errors.Is(err, ErrInference):
		return KindInference
	case errors.Is(err, ErrUserNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
