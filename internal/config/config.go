// Package config provides configuration loading and structs for the Susume server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Explain   ExplainConfig   `yaml:"explain"`
	Recommend RecommendConfig `yaml:"recommend"`
	Fallback  FallbackConfig  `yaml:"fallback"`
	Catalog   CatalogConfig   `yaml:"catalog"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// EmbeddingConfig holds embedding service settings. ServiceURL points at the
// external embedding generator; empty means the deterministic mock is used
// (development only).
type EmbeddingConfig struct {
	ServiceURL     string `yaml:"service_url"`
	Dimensions     int    `yaml:"dimensions"`
	CacheSize      int    `yaml:"cache_size"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// ExplainConfig holds explanation service settings. Empty ServiceURL means
// template explanations only.
type ExplainConfig struct {
	ServiceURL     string `yaml:"service_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// RecommendConfig holds result-count bounds for recommendation requests.
type RecommendConfig struct {
	DefaultK int `yaml:"default_k"`
	MaxK     int `yaml:"max_k"`
}

// FallbackConfig holds the trust gate settings. The threshold is plain
// configuration: the value carries no derivation and can be tuned freely.
type FallbackConfig struct {
	// Threshold is the minimum acceptable top-1 similarity score.
	Threshold float64 `yaml:"threshold"`
	// MeanGate additionally rejects rankings whose mean top-K score is
	// below Threshold.
	MeanGate bool `yaml:"mean_gate"`
	// DefaultSet names the global default list used when no per-category
	// set matches.
	DefaultSet string `yaml:"default_set"`
}

// CatalogConfig holds catalog import settings. ImportPath is the JSON file
// written by the offline embedding batch job; when Watch is true the server
// re-imports it automatically on change.
type CatalogConfig struct {
	ImportPath string `yaml:"import_path"`
	Watch      bool   `yaml:"watch"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Catalog.ImportPath != "" {
		cfg.Catalog.ImportPath = expandPath(cfg.Catalog.ImportPath, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
