package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-recognizer/internal/loader"
	"github.com/kozaktomas/face-recognizer/internal/recognition"
)

func TestRespondJSON_SetsContentType(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusOK, map[string]string{"status": "ok"})

	assertContentType(t, recorder, "application/json")
}

func TestRespondJSON_SetsStatusCode(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"OK", http.StatusOK},
		{"Created", http.StatusCreated},
		{"NotFound", http.StatusNotFound},
		{"InternalServerError", http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondJSON(recorder, tc.statusCode, nil)

			if recorder.Code != tc.statusCode {
				t.Errorf("expected status %d, got %d", tc.statusCode, recorder.Code)
			}
		})
	}
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusOK, nil)

	// Body should be empty for nil data
	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got '%s'", recorder.Body.String())
	}
}

func TestRespondError_ContainsErrorAndKind(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondError(recorder, http.StatusBadRequest, kindInvalidRequest, "something went wrong")

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "something went wrong", kindInvalidRequest)
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind     string
		expected int
	}{
		{recognition.KindNoModelsLoaded, http.StatusConflict},
		{recognition.KindLoadError, http.StatusUnprocessableEntity},
		{recognition.KindDecodeError, http.StatusBadRequest},
		{recognition.KindNoFaceFound, http.StatusUnprocessableEntity},
		{recognition.KindEmptyRegistry, http.StatusNotFound},
		{recognition.KindUploadSequence, http.StatusBadRequest},
		{recognition.KindNotFound, http.StatusNotFound},
		{recognition.KindInference, http.StatusInternalServerError},
		{recognition.KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			if got := statusForKind(tt.kind); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestRespondServiceError_WrappedSentinel(t *testing.T) {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/recognize", nil)

	respondServiceError(recorder, req, fmt.Errorf("recognize: %w", recognition.ErrEmptyRegistry))

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "recognize: no persons enrolled", recognition.KindEmptyRegistry)
}

func TestRespondServiceError_LoadError(t *testing.T) {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/models/setup", nil)

	err := &loader.LoadError{Model: loader.ModelDetection, Err: errors.New("bad magic")}
	respondServiceError(recorder, req, err)

	assertStatusCode(t, recorder, http.StatusUnprocessableEntity)
	var result map[string]string
	parseJSONResponse(t, recorder, &result)
	if result["kind"] != recognition.KindLoadError {
		t.Errorf("expected load_error kind, got %q", result["kind"])
	}
}

func TestRespondServiceError_HidesInternalErrors(t *testing.T) {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/models/status", nil)

	respondServiceError(recorder, req, errors.New("pq: connection refused"))

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "internal server error", recognition.KindInternal)
}

func TestReadImage_RawBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/v1/detect", bytes.NewReader([]byte("raw-image")))
	req.Header.Set("Content-Type", "image/png")
	recorder := httptest.NewRecorder()

	data, ok := readImage(recorder, req, 1024)
	if !ok {
		t.Fatalf("readImage failed: %s", recorder.Body.String())
	}
	if string(data) != "raw-image" {
		t.Errorf("unexpected data %q", data)
	}
}

func TestReadImage_Multipart(t *testing.T) {
	req := multipartRequest(t, "POST", "/api/v1/detect", map[string]string{"label": "ignored"}, []byte("form-image"))
	recorder := httptest.NewRecorder()

	data, ok := readImage(recorder, req, 1<<20)
	if !ok {
		t.Fatalf("readImage failed: %s", recorder.Body.String())
	}
	if string(data) != "form-image" {
		t.Errorf("unexpected data %q", data)
	}
}

func TestReadImage_MultipartWithoutImage(t *testing.T) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	writer.WriteField("label", "alice")
	writer.Close()
	req := httptest.NewRequest("POST", "/api/v1/detect", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	recorder := httptest.NewRecorder()

	if _, ok := readImage(recorder, req, 1<<20); ok {
		t.Fatal("expected failure")
	}
	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "image is required", kindInvalidRequest)
}

func TestReadImage_EmptyBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/v1/detect", nil)
	recorder := httptest.NewRecorder()

	if _, ok := readImage(recorder, req, 1024); ok {
		t.Fatal("expected failure")
	}
	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestReadImage_TooLarge(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/v1/detect", bytes.NewReader(make([]byte, 2048)))
	recorder := httptest.NewRecorder()

	if _, ok := readImage(recorder, req, 1024); ok {
		t.Fatal("expected failure")
	}
	assertStatusCode(t, recorder, http.StatusRequestEntityTooLarge)
	assertJSONError(t, recorder, "request body exceeds 1024 bytes", kindTooLarge)
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("a\nb\rc"); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
}

func TestHealthCheck_ReturnsStatusOk(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	recorder := httptest.NewRecorder()

	HealthCheck(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%s'", result["status"])
	}
}
