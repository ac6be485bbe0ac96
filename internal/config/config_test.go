package config

import (
	"os"
	"path/filepath"
	"testing"
)

func mustLoad(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return cfg
}

func TestDefaultPipeline(t *testing.T) {
	p := DefaultPipeline()

	if p.Detector.InputWidth != 320 || p.Detector.InputHeight != 240 {
		t.Errorf("expected detector input 320x240, got %dx%d", p.Detector.InputWidth, p.Detector.InputHeight)
	}
	if p.Embedder.InputWidth != 160 || p.Embedder.InputHeight != 160 {
		t.Errorf("expected embedder input 160x160, got %dx%d", p.Embedder.InputWidth, p.Embedder.InputHeight)
	}
	if p.Detector.ScoreThreshold != 0.7 {
		t.Errorf("expected score threshold 0.7, got %f", p.Detector.ScoreThreshold)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("default pipeline should be valid: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WEB_PORT", "")
	t.Setenv("MAX_CHUNK_BYTES", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("MARIADB_DSN", "")

	cfg := mustLoad(t)

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxChunkBytes != 2<<20 {
		t.Errorf("expected default chunk limit 2MiB, got %d", cfg.Server.MaxChunkBytes)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected default max open conns 25, got %d", cfg.Database.MaxOpenConns)
	}
	if cfg.Database.Backend() != "" {
		t.Errorf("expected no backend, got %q", cfg.Database.Backend())
	}
	if cfg.Registry.HNSW {
		t.Error("expected HNSW disabled by default")
	}
}

func TestLoad_ServerConfig(t *testing.T) {
	t.Setenv("WEB_HOST", "127.0.0.1")
	t.Setenv("WEB_PORT", "9000")
	t.Setenv("MAX_CHUNK_BYTES", "1048576")

	cfg := mustLoad(t)

	if cfg.Server.Addr() != "127.0.0.1:9000" {
		t.Errorf("expected addr 127.0.0.1:9000, got %s", cfg.Server.Addr())
	}
	if cfg.Server.MaxChunkBytes != 1048576 {
		t.Errorf("expected chunk limit 1048576, got %d", cfg.Server.MaxChunkBytes)
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("WEB_PORT", "not-a-port")

	cfg := mustLoad(t)

	if cfg.Server.Port != 8080 {
		t.Errorf("expected fallback port 8080, got %d", cfg.Server.Port)
	}
}

func TestDatabaseConfig_Backend(t *testing.T) {
	tests := []struct {
		name     string
		cfg      DatabaseConfig
		expected string
	}{
		{"none", DatabaseConfig{}, ""},
		{"postgres", DatabaseConfig{URL: "postgres://localhost/db"}, "postgres"},
		{"mariadb", DatabaseConfig{MariaDBDSN: "user:pass@tcp(localhost:3306)/db"}, "mariadb"},
		{"postgres wins", DatabaseConfig{URL: "postgres://localhost/db", MariaDBDSN: "dsn"}, "postgres"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Backend(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestLoad_RegistryHNSW(t *testing.T) {
	t.Setenv("REGISTRY_HNSW", "true")
	t.Setenv("REGISTRY_INDEX_PATH", "/tmp/registry.hnsw")

	cfg := mustLoad(t)

	if !cfg.Registry.HNSW {
		t.Error("expected HNSW enabled")
	}
	if cfg.Registry.IndexPath != "/tmp/registry.hnsw" {
		t.Errorf("unexpected index path %q", cfg.Registry.IndexPath)
	}
}

func TestLoad_ScoreThresholdOverride(t *testing.T) {
	t.Setenv("DETECTION_SCORE_THRESHOLD", "0.55")

	cfg := mustLoad(t)

	if cfg.Pipeline.Detector.ScoreThreshold != 0.55 {
		t.Errorf("expected score threshold 0.55, got %f", cfg.Pipeline.Detector.ScoreThreshold)
	}
}

func TestLoad_ScoreThresholdOutOfRange(t *testing.T) {
	t.Setenv("DETECTION_SCORE_THRESHOLD", "1.5")

	if _, err := Load(); err == nil {
		t.Error("expected error for threshold above 1")
	}
}

func TestLoad_PipelineFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	content := "embedder:\n  input_width: 112\n  input_height: 112\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PIPELINE_CONFIG", path)

	cfg := mustLoad(t)

	if cfg.Pipeline.Embedder.InputWidth != 112 || cfg.Pipeline.Embedder.InputHeight != 112 {
		t.Errorf("expected embedder 112x112, got %dx%d", cfg.Pipeline.Embedder.InputWidth, cfg.Pipeline.Embedder.InputHeight)
	}
	// Keys absent from the file keep their defaults
	if cfg.Pipeline.Detector.InputWidth != 320 {
		t.Errorf("expected detector width to stay 320, got %d", cfg.Pipeline.Detector.InputWidth)
	}
}

func TestLoad_PipelineFileMissing(t *testing.T) {
	t.Setenv("PIPELINE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Error("expected error for missing pipeline config")
	}
}

func TestPipelineConfig_ValidateZeroStd(t *testing.T) {
	p := DefaultPipeline()
	p.Embedder.Std = 0

	if err := p.Validate(); err == nil {
		t.Error("expected error for zero std")
	}
}

func TestLoad_APIToken(t *testing.T) {
	t.Setenv("API_TOKEN", "s3cret")

	cfg := mustLoad(t)

	if cfg.Server.APIToken != "s3cret" || cfg.Client.APIToken != "s3cret" {
		t.Errorf("expected token on server and client, got %q and %q", cfg.Server.APIToken, cfg.Client.APIToken)
	}
}

func TestLoad_AllowedOrigins(t *testing.T) {
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://faces.example.com, ,https://admin.example.com")

	cfg := mustLoad(t)

	want := []string{"https://faces.example.com", "https://admin.example.com"}
	if len(cfg.Server.AllowedOrigins) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.Server.AllowedOrigins)
	}
	for i, o := range want {
		if cfg.Server.AllowedOrigins[i] != o {
			t.Errorf("origin %d: expected %q, got %q", i, o, cfg.Server.AllowedOrigins[i])
		}
	}
}
