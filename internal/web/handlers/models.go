package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-recognizer/internal/recognition"
)

// ModelsHandler handles the chunked model upload and activation endpoints
type ModelsHandler struct {
	service       *recognition.Service
	maxChunkBytes int64
}

// NewModelsHandler creates a new models handler
func NewModelsHandler(svc *recognition.Service, maxChunkBytes int64) *ModelsHandler {
	return &ModelsHandler{service: svc, maxChunkBytes: maxChunkBytes}
}

type modelBytesResponse struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// ClearBytes empties the model blob named in the URL
func (h *ModelsHandler) ClearBytes(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.service.ClearModelBytes(r.Context(), name); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, modelBytesResponse{Name: name, Size: 0})
}

// AppendBytes appends the request body to the model blob named in the URL
func (h *ModelsHandler) AppendBytes(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	r.Body = http.MaxBytesReader(w, r.Body, h.maxChunkBytes)
	chunk, err := io.ReadAll(r.Body)
	if err != nil {
		respondBodyError(w, err)
		return
	}

	size, err := h.service.AppendModelBytes(r.Context(), name, chunk)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, modelBytesResponse{Name: name, Size: size})
}

// Setup activates the uploaded models
func (h *ModelsHandler) Setup(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SetupModels(r.Context()); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "loaded"})
}

// Status reports model state and blob sizes
func (h *ModelsHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Status(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}
