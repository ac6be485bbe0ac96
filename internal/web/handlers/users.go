package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/face-recognizer/internal/constants"
	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/kozaktomas/face-recognizer/internal/recognition"
)

const errUserNotFound = "user not found"

// UsersHandler handles the user registry endpoints
type UsersHandler struct {
	users         database.UserStore
	service       *recognition.Service
	maxImageBytes int64
}

// NewUsersHandler creates a new users handler
func NewUsersHandler(users database.UserStore, svc *recognition.Service, maxImageBytes int64) *UsersHandler {
	return &UsersHandler{users: users, service: svc, maxImageBytes: maxImageBytes}
}

type createUserRequest struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type updateUserRequest struct {
	Name   *string              `json:"name"`
	Status *database.UserStatus `json:"status"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, kindInvalidRequest, errInvalidRequestBody)
		return false
	}
	return true
}

// Create registers a new user. A UUID is generated when no id is given.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, kindInvalidRequest, "name is required")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	user := &database.StoredUser{
		ID:      req.ID,
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
		Status:  database.UserStatusUnverified,
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, database.ErrUserExists) {
			respondError(w, http.StatusConflict, kindConflict, "user already exists")
			return
		}
		respondServiceError(w, r, err)
		return
	}

	log.Printf("Created user %s", sanitizeForLog(user.ID))
	respondJSON(w, http.StatusCreated, user)
}

// Get returns one user
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if user == nil {
		respondError(w, http.StatusNotFound, recognition.KindNotFound, errUserNotFound)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Update changes a user's name and/or verification status
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == nil && req.Status == nil {
		respondError(w, http.StatusBadRequest, kindInvalidRequest, "nothing to update")
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		respondError(w, http.StatusBadRequest, kindInvalidRequest, "name must not be empty")
		return
	}
	if req.Status != nil && !req.Status.Valid() {
		respondError(w, http.StatusBadRequest, kindInvalidRequest, "invalid status")
		return
	}

	if req.Name != nil {
		if err := h.users.UpdateName(r.Context(), id, strings.TrimSpace(*req.Name)); err != nil {
			h.respondUserError(w, r, err)
			return
		}
	}
	if req.Status != nil {
		if err := h.users.UpdateStatus(r.Context(), id, *req.Status); err != nil {
			h.respondUserError(w, r, err)
			return
		}
	}

	h.Get(w, r)
}

// Delete removes a user
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.users.Delete(r.Context(), id); err != nil {
		h.respondUserError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Verify recognizes the uploaded face and records whether it belongs to the user
func (h *UsersHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, ok := readImage(w, r, h.maxImageBytes)
	if !ok {
		return
	}

	user, err := h.service.VerifyUser(r.Context(), id, data)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	log.Printf("User %s verification: %s", sanitizeForLog(id), user.Status)
	respondJSON(w, http.StatusOK, user)
}

func (h *UsersHandler) respondUserError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, database.ErrUserNotFound) {
		respondError(w, http.StatusNotFound, recognition.KindNotFound, errUserNotFound)
		return
	}
	respondServiceError(w, r, err)
}
