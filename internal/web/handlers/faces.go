package handlers

import (
	"log"
	"net/http"

	"github.com/kozaktomas/face-recognizer/internal/facematch"
	"github.com/kozaktomas/face-recognizer/internal/recognition"
)

// FacesHandler handles detection, recognition and enrollment endpoints
type FacesHandler struct {
	service       *recognition.Service
	maxImageBytes int64
}

// NewFacesHandler creates a new faces handler
func NewFacesHandler(svc *recognition.Service, maxImageBytes int64) *FacesHandler {
	return &FacesHandler{service: svc, maxImageBytes: maxImageBytes}
}

type detectAllResponse struct {
	Faces []facematch.BoundingBox `json:"faces"`
}

type addPersonResponse struct {
	Label     string    `json:"label"`
	Embedding []float32 `json:"embedding"`
}

type countResponse struct {
	Count int `json:"count"`
}

// Detect returns the primary face of the image, or every face with ?all=true
func (h *FacesHandler) Detect(w http.ResponseWriter, r *http.Request) {
	data, ok := readImage(w, r, h.maxImageBytes)
	if !ok {
		return
	}

	if r.URL.Query().Get("all") == "true" {
		faces, err := h.service.DetectAll(r.Context(), data)
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, detectAllResponse{Faces: faces})
		return
	}

	box, err := h.service.Detect(r.Context(), data)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, box)
}

// Recognize returns the nearest enrolled person
func (h *FacesHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	data, ok := readImage(w, r, h.maxImageBytes)
	if !ok {
		return
	}

	person, err := h.service.Recognize(r.Context(), data)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, person)
}

// AddPerson enrolls the face of the image under the given label.
// The label comes from the multipart "label" field or the ?label= query parameter.
func (h *FacesHandler) AddPerson(w http.ResponseWriter, r *http.Request) {
	data, ok := readImage(w, r, h.maxImageBytes)
	if !ok {
		return
	}

	label, valid := recognition.ValidLabel(r.FormValue("label"))
	if !valid {
		respondError(w, http.StatusBadRequest, kindInvalidRequest, "label is required")
		return
	}

	embedding, err := h.service.Add(r.Context(), label, data)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	log.Printf("Enrolled person %q", sanitizeForLog(label))
	respondJSON(w, http.StatusCreated, addPersonResponse{Label: label, Embedding: embedding})
}

// CountPersons returns the registry size, or the entries for ?label=
func (h *FacesHandler) CountPersons(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.CountPersons(r.Context(), r.URL.Query().Get("label"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, countResponse{Count: count})
}

// ClearPersons removes every enrolled person
func (h *FacesHandler) ClearPersons(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearRegistry(r.Context()); err != nil {
		respondServiceError(w, r, err)
		return
	}
	log.Printf("Person registry cleared")
	respondJSON(w, http.StatusOK, countResponse{Count: 0})
}
