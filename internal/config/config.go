// Package config provides configuration loading and structs for the kasane engine.
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
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// EmbeddingConfig holds embedding provider settings.
// Provider is one of "openai", "local", or "custom".
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Dimensions     int    `yaml:"dimensions"`
	BatchSize      int    `yaml:"batch_size"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	CacheSize      int    `yaml:"cache_size"`
}

// ChunkingConfig holds document splitting settings.
type ChunkingConfig struct {
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	Separator         string `yaml:"separator"`
	PreserveSentences bool   `yaml:"preserve_sentences"`
}

// RetrievalConfig holds default retrieval settings; per-call options override these.
type RetrievalConfig struct {
	TopK        int      `yaml:"top_k"`
	MinScore    float64  `yaml:"min_score"`
	HybridAlpha *float64 `yaml:"hybrid_alpha"`
	Rerank      *bool    `yaml:"rerank"`
}

// SnapshotConfig holds sqlite snapshot persistence settings.
// An empty path disables snapshotting.
type SnapshotConfig struct {
	Path string `yaml:"path"`
}

// WatchConfig holds directory watch settings for auto-ingestion.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
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
	if cfg.Snapshot.Path != "" {
		cfg.Snapshot.Path = expandPath(cfg.Snapshot.Path, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
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
