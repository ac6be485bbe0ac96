package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-recognizer/internal/recognition"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// Error kinds for request-level failures that never reach the service.
const (
	kindInvalidRequest = "invalid_request"
	kindTooLarge       = "too_large"
	kindConflict       = "conflict"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response with an explicit kind.
func respondError(w http.ResponseWriter, status int, kind, message string) {
	respondJSON(w, status, map[string]string{"error": message, "kind": kind})
}

// statusForKind maps a service error kind to its HTTP status.
func statusForKind(kind string) int {
	switch kind {
	case recognition.KindNoModelsLoaded:
		return http.StatusConflict
	case recognition.KindLoadError, recognition.KindNoFaceFound:
		return http.StatusUnprocessableEntity
	case recognition.KindDecodeError, recognition.KindUploadSequence:
		return http.StatusBadRequest
	case recognition.KindEmptyRegistry, recognition.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError converts an error returned by the recognition service
// into a JSON error response. Internal errors are logged and hidden.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := recognition.KindOf(err)
	status := statusForKind(kind)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", r.Method, sanitizeForLog(r.URL.Path), err)
		message = "internal server error"
	}
	respondError(w, status, kind, message)
}

// respondBodyError reports a failure to read the request body.
func respondBodyError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		respondError(w, http.StatusRequestEntityTooLarge, kindTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		return
	}
	respondError(w, http.StatusBadRequest, kindInvalidRequest, "failed to read request body")
}

// readImage returns the image carried by the request, either as the raw body
// or as the "image" part of a multipart form. The body is limited to maxBytes.
func readImage(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	var data []byte
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			respondBodyError(w, err)
			return nil, false
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			respondError(w, http.StatusBadRequest, kindInvalidRequest, "image is required")
			return nil, false
		}
		defer file.Close()
		if data, err = io.ReadAll(file); err != nil {
			respondBodyError(w, err)
			return nil, false
		}
	} else {
		var err error
		if data, err = io.ReadAll(r.Body); err != nil {
			respondBodyError(w, err)
			return nil, false
		}
	}

	if len(data) == 0 {
		respondError(w, http.StatusBadRequest, kindInvalidRequest, "image is required")
		return nil, false
	}
	return data, true
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
