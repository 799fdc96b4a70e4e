// Package config handles pdx configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/matsen/paperdex/internal/embedding"
	"github.com/matsen/paperdex/internal/generate"
	"github.com/matsen/paperdex/internal/pdf"
	"github.com/matsen/paperdex/internal/semantic"
	"gopkg.in/yaml.v3"
)

// Config is the pdx configuration, stored as YAML.
type Config struct {
	DataDir             string  `yaml:"data_dir"`
	OllamaURL           string  `yaml:"ollama_url"`
	EmbeddingModel      string  `yaml:"embedding_model"`
	EmbeddingDimensions int     `yaml:"embedding_dimensions"`
	GenerationModel     string  `yaml:"generation_model"`
	ChunkSize           int     `yaml:"chunk_size"`
	ChunkOverlap        int     `yaml:"chunk_overlap"`
	Collection          string  `yaml:"collection"`
	RequestsPerSecond   float64 `yaml:"requests_per_second,omitempty"` // 0 disables limiting
}

const (
	MetadataDBFile = "metadata.db"
	VectorDBFile   = "vectors.db"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Default returns the configuration used when no file or environment says otherwise.
func Default() *Config {
	return &Config{
		DataDir:             DefaultDataDir(),
		OllamaURL:           embedding.DefaultOllamaURL,
		EmbeddingModel:      embedding.DefaultModel,
		EmbeddingDimensions: embedding.DefaultDimensions,
		GenerationModel:     generate.DefaultModel,
		ChunkSize:           pdf.DefaultChunkSize,
		ChunkOverlap:        pdf.DefaultChunkOverlap,
		Collection:          semantic.DefaultCollection,
	}
}

// Load reads the configuration file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg.applyEnv()
	cfg.DataDir = ExpandPath(cfg.DataDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path, creating its directory.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		c.DataDir = dir
	}
	if host := os.Getenv(EnvOllamaHost); host != "" {
		c.OllamaURL = normalizeOllamaHost(host)
	}
}

// normalizeOllamaHost accepts OLLAMA_HOST in the forms Ollama itself accepts,
// such as "127.0.0.1:11434" without a scheme.
func normalizeOllamaHost(host string) string {
	if u, err := url.Parse(host); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return host
	}
	return "http://" + host
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is empty", ErrInvalid)
	}

	u, err := url.Parse(c.OllamaURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: ollama_url %q is not an http(s) URL", ErrInvalid, c.OllamaURL)
	}

	if c.EmbeddingModel == "" {
		return fmt.Errorf("%w: embedding_model is empty", ErrInvalid)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("%w: embedding_dimensions must be positive, got %d", ErrInvalid, c.EmbeddingDimensions)
	}
	if c.GenerationModel == "" {
		return fmt.Errorf("%w: generation_model is empty", ErrInvalid)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalid, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", ErrInvalid, c.ChunkOverlap)
	}

	if !semantic.ValidCollectionName(c.Collection) {
		return fmt.Errorf("%w: collection %q is not a valid identifier", ErrInvalid, c.Collection)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requests_per_second must not be negative", ErrInvalid)
	}
	return nil
}

// MetadataDBPath returns the metadata database path inside dataDir.
func MetadataDBPath(dataDir string) string {
	return filepath.Join(dataDir, MetadataDBFile)
}

// VectorDBPath returns the chunk vector database path inside dataDir.
func VectorDBPath(dataDir string) string {
	return filepath.Join(dataDir, VectorDBFile)
}

// EnsureDataDir creates the data directory if needed.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return nil
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
