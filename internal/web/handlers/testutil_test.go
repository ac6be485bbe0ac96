package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/kozaktomas/face-recognizer/internal/database/mock"
	"github.com/kozaktomas/face-recognizer/internal/inference/fake"
	"github.com/kozaktomas/face-recognizer/internal/loader"
	"github.com/kozaktomas/face-recognizer/internal/recognition"
	"github.com/kozaktomas/face-recognizer/internal/registry"
)

const testMaxBytes = 1 << 20

var (
	aliceImage = fake.Image(200, 200, fake.Alice)
	bobImage   = fake.Image(200, 200, fake.Bob)
)

// testDeps bundles a recognition service with the mock stores behind it
type testDeps struct {
	service *recognition.Service
	blobs   *mock.MockBlobStore
	persons *mock.MockPersonStore
	users   *mock.MockUserStore
}

// newTestDeps creates a service on the fake runtime with no models activated
func newTestDeps(t *testing.T) *testDeps {
	t.Helper()
	blobs := mock.NewMockBlobStore()
	persons := mock.NewMockPersonStore()
	users := mock.NewMockUserStore()
	svc := recognition.NewService(
		loader.New(fake.NewRuntime()),
		blobs,
		registry.New(persons, registry.Options{}),
		users,
		config.DefaultPipeline(),
	)
	return &testDeps{service: svc, blobs: blobs, persons: persons, users: users}
}

// newLoadedDeps uploads and activates the fake models
func newLoadedDeps(t *testing.T) *testDeps {
	t.Helper()
	d := newTestDeps(t)
	ctx := context.Background()
	if _, err := d.service.AppendModelBytes(ctx, database.BlobFaceDetection, fake.DetectorModel); err != nil {
		t.Fatal(err)
	}
	if _, err := d.service.AppendModelBytes(ctx, database.BlobFaceRecognition, fake.EmbedderModel); err != nil {
		t.Fatal(err)
	}
	if err := d.service.SetupModels(ctx); err != nil {
		t.Fatalf("setup models: %v", err)
	}
	return d
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// multipartRequest builds a multipart request with the given fields and an "image" part
func multipartRequest(t *testing.T, method, path string, fields map[string]string, image []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	part, err := writer.CreateFormFile("image", "face.png")
	if err != nil {
		t.Fatal(err)
	}
	part.Write(image)
	writer.Close()

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message and kind
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage, expectedKind string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
	if result["kind"] != expectedKind {
		t.Errorf("expected kind '%s', got '%s'", expectedKind, result["kind"])
	}
}

// assertErrorKind checks only the kind of a JSON error response
func assertErrorKind(t *testing.T, recorder *httptest.ResponseRecorder, expectedKind string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["kind"] != expectedKind {
		t.Errorf("expected kind '%s', got '%s' (%s)", expectedKind, result["kind"], result["error"])
	}
}
