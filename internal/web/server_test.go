package web

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-recognizer/internal/client"
	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/database/mock"
	"github.com/kozaktomas/face-recognizer/internal/inference/fake"
	"github.com/kozaktomas/face-recognizer/internal/loader"
	"github.com/kozaktomas/face-recognizer/internal/recognition"
	"github.com/kozaktomas/face-recognizer/internal/registry"
)

func newTestServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	backend, blobs, persons, users := mock.NewMockBackend()
	t.Cleanup(func() { backend.Close() })

	svc := recognition.NewService(
		loader.New(fake.NewRuntime()),
		blobs,
		registry.New(persons, registry.Options{}),
		users,
		config.DefaultPipeline(),
	)
	cfg := &config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           0,
		MaxChunkBytes:  4,
		MaxImageBytes:  1 << 20,
		APIToken:       token,
		AllowedOrigins: []string{"https://faces.example.com"},
	}
	srv := httptest.NewServer(NewServer(cfg, svc, users).Router())
	t.Cleanup(srv.Close)
	return srv
}

func TestServer_EndToEnd(t *testing.T) {
	srv := newTestServer(t, "")
	c := client.New(srv.URL, "")
	ctx := context.Background()

	if err := c.Health(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}

	alice := fake.Image(200, 200, fake.Alice)
	bob := fake.Image(200, 200, fake.Bob)

	if _, err := c.Detect(ctx, alice); !client.IsKind(err, recognition.KindNoModelsLoaded) {
		t.Fatalf("expected no_models_loaded before setup, got %v", err)
	}

	// Chunk limit is 4 bytes so every model is split into several appends
	if _, err := c.UploadModel(ctx, "face-detection", bytes.NewReader(fake.DetectorModel), 4, nil); err != nil {
		t.Fatalf("upload detector: %v", err)
	}
	size, err := c.UploadModel(ctx, "face-recognition", bytes.NewReader(fake.EmbedderModel), 3, nil)
	if err != nil {
		t.Fatalf("upload embedder: %v", err)
	}
	if size != int64(len(fake.EmbedderModel)) {
		t.Errorf("expected %d bytes stored, got %d", len(fake.EmbedderModel), size)
	}
	if err := c.SetupModels(ctx); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if _, err := c.Recognize(ctx, alice); !client.IsKind(err, recognition.KindEmptyRegistry) {
		t.Fatalf("expected empty_registry, got %v", err)
	}

	if _, err := c.Add(ctx, "Alice", alice); err != nil {
		t.Fatalf("add alice: %v", err)
	}
	if _, err := c.Add(ctx, "Bob", bob); err != nil {
		t.Fatalf("add bob: %v", err)
	}

	person, err := c.Recognize(ctx, alice)
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if person.Label != "Alice" || person.Distance > 1e-6 {
		t.Errorf("expected Alice at distance 0, got %+v", person)
	}

	count, err := c.CountPersons(ctx, "alice")
	if err != nil || count != 1 {
		t.Errorf("expected 1 alice, got %d (%v)", count, err)
	}

	st, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !st.Models.Loaded || st.Persons != 2 {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestServer_ChunkLimit(t *testing.T) {
	srv := newTestServer(t, "")
	c := client.New(srv.URL, "")

	_, err := c.AppendModelChunk(context.Background(), "face-detection", []byte("too long"))
	if !client.IsKind(err, "too_large") {
		t.Errorf("expected too_large, got %v", err)
	}
}

func TestServer_RequiresToken(t *testing.T) {
	srv := newTestServer(t, "s3cret")
	ctx := context.Background()

	// Health stays open
	if err := client.New(srv.URL, "").Health(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}

	_, err := client.New(srv.URL, "").Status(ctx)
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %v", err)
	}

	if _, err := client.New(srv.URL, "s3cret").Status(ctx); err != nil {
		t.Errorf("expected success with token, got %v", err)
	}
}

func TestServer_UnknownRoute(t *testing.T) {
	srv := newTestServer(t, "")

	resp, err := http.Get(srv.URL + "/api/v1/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestServer_CORSOrigins(t *testing.T) {
	srv := newTestServer(t, "")

	for origin, want := range map[string]string{
		"https://faces.example.com":     "https://faces.example.com",
		"http://localhost.evil.example": "",
	} {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/health", nil)
		req.Header.Set("Origin", origin)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()

		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != want {
			t.Errorf("origin %s: expected allow-origin %q, got %q", origin, want, got)
		}
	}
}
