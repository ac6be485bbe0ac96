package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed pipeline.yaml
var pipelineYAML []byte

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Registry RegistryConfig
	Pipeline PipelineConfig
	Client   ClientConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	MaxChunkBytes  int64    // per-call ceiling for model chunk uploads
	MaxImageBytes  int64    // per-call ceiling for detect/recognize/add images
	APIToken       string   // bearer token required on /api/v1 routes, disabled when empty
	AllowedOrigins []string // CORS origins allowed in addition to localhost
}

// Addr returns the listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MariaDBDSN   string // MariaDB DSN, used when URL is empty
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// Backend returns the name of the configured database backend, or "" if none is configured.
func (c *DatabaseConfig) Backend() string {
	switch {
	case c.URL != "":
		return "postgres"
	case c.MariaDBDSN != "":
		return "mariadb"
	default:
		return ""
	}
}

type RegistryConfig struct {
	HNSW      bool   // Use the approximate in-memory HNSW index for matching
	IndexPath string // Path to persist the HNSW graph (optional, rebuilt from the database if empty)
}

// PipelineConfig holds pre/post-processing parameters for the face pipeline.
type PipelineConfig struct {
	Detector DetectorConfig `yaml:"detector"`
	Embedder EmbedderConfig `yaml:"embedder"`
}

type DetectorConfig struct {
	InputWidth     int     `yaml:"input_width"`
	InputHeight    int     `yaml:"input_height"`
	Mean           float32 `yaml:"mean"`
	Std            float32 `yaml:"std"`
	ScoreThreshold float64 `yaml:"score_threshold"`
	IoUThreshold   float64 `yaml:"iou_threshold"`
}

type EmbedderConfig struct {
	InputWidth  int     `yaml:"input_width"`
	InputHeight int     `yaml:"input_height"`
	Mean        float32 `yaml:"mean"`
	Std         float32 `yaml:"std"`
}

type ClientConfig struct {
	ServerURL string // defaults to http://localhost:8080
	APIToken  string
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envInt64 is envInt for byte sizes.
func envInt64(key string, defaultVal int64) int64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envBool reads a boolean environment variable ("1", "true", "yes", "on").
func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// envList reads a comma-separated environment variable, skipping empty items.
func envList(key string) []string {
	var items []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// DefaultPipeline returns the pipeline parameters from the embedded pipeline.yaml.
func DefaultPipeline() PipelineConfig {
	var p PipelineConfig
	if err := yaml.Unmarshal(pipelineYAML, &p); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded pipeline.yaml: " + err.Error())
	}
	return p
}

// LoadPipelineFile overlays the YAML file at path on top of p.
// Keys missing from the file keep their current values.
func LoadPipelineFile(p *PipelineConfig, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("reading pipeline config: %w", err)
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return fmt.Errorf("parsing pipeline config %s: %w", path, err)
	}
	return p.Validate()
}

// Validate checks that the pipeline parameters are usable.
func (p *PipelineConfig) Validate() error {
	if p.Detector.InputWidth <= 0 || p.Detector.InputHeight <= 0 {
		return fmt.Errorf("detector input size must be positive, got %dx%d", p.Detector.InputWidth, p.Detector.InputHeight)
	}
	if p.Embedder.InputWidth <= 0 || p.Embedder.InputHeight <= 0 {
		return fmt.Errorf("embedder input size must be positive, got %dx%d", p.Embedder.InputWidth, p.Embedder.InputHeight)
	}
	if p.Detector.Std == 0 || p.Embedder.Std == 0 {
		return fmt.Errorf("normalization std must not be zero")
	}
	if p.Detector.ScoreThreshold < 0 || p.Detector.ScoreThreshold > 1 {
		return fmt.Errorf("detector score threshold must be in [0,1], got %v", p.Detector.ScoreThreshold)
	}
	return nil
}

func Load() (*Config, error) {
	pipeline := DefaultPipeline()
	if path := os.Getenv("PIPELINE_CONFIG"); path != "" {
		if err := LoadPipelineFile(&pipeline, path); err != nil {
			return nil, err
		}
	}
	if s := os.Getenv("DETECTION_SCORE_THRESHOLD"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid DETECTION_SCORE_THRESHOLD %q: %w", s, err)
		}
		pipeline.Detector.ScoreThreshold = v
	}
	if err := pipeline.Validate(); err != nil {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			MaxChunkBytes:  envInt64("MAX_CHUNK_BYTES", 2<<20),
			MaxImageBytes:  envInt64("MAX_IMAGE_BYTES", 10<<20),
			APIToken:       os.Getenv("API_TOKEN"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MariaDBDSN:   os.Getenv("MARIADB_DSN"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Registry: RegistryConfig{
			HNSW:      envBool("REGISTRY_HNSW"),
			IndexPath: os.Getenv("REGISTRY_INDEX_PATH"),
		},
		Pipeline: pipeline,
		Client: ClientConfig{
			ServerURL: envString("FACE_RECOGNIZER_URL", "http://localhost:8080"),
			APIToken:  os.Getenv("API_TOKEN"),
		},
	}, nil
}
