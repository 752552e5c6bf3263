// Package config provides configuration loading and structs for the vecshard server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects and configures the durable backend.
type StorageConfig struct {
	Backend      string       `yaml:"backend"`
	DatabasePath string       `yaml:"database_path"`
	Qdrant       QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds the Qdrant connection settings used when Backend is "qdrant".
// The collection has a fixed dimension of VectorSize: storing a vector of any other length,
// including an empty one, fails with a persistence error and is rolled back. Use the sqlite or
// memory backend when entries may carry empty or mixed-length vectors.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
	VectorSize int    `yaml:"vector_size"`
	UseTLS     bool   `yaml:"use_tls"`
	APIKey     string `yaml:"api_key"`
}

// StoreConfig holds sharding and search settings of the store.
type StoreConfig struct {
	ShardCount         int           `yaml:"shard_count"`
	RebalanceInterval  time.Duration `yaml:"rebalance_interval"`
	LoadConcurrency    int           `yaml:"load_concurrency"`
	DefaultSearchLimit int           `yaml:"default_search_limit"`
	MaxSearchLimit     int           `yaml:"max_search_limit"`
}

// EmbeddingConfig holds text encoder settings.
type EmbeddingConfig struct {
	Dimensions int `yaml:"dimensions"`
	CacheSize  int `yaml:"cache_size"`
}

// WatchConfig controls reloading of the config file while the server runs.
type WatchConfig struct {
	ConfigReload bool `yaml:"config_reload"`
}

// Load reads and parses the config file at path, expands paths, applies defaults and validates.
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
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
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

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Store.ShardCount < 1 {
		return fmt.Errorf("store.shard_count must be at least 1, got %d", c.Store.ShardCount)
	}
	if c.Store.LoadConcurrency < 1 {
		return fmt.Errorf("store.load_concurrency must be at least 1, got %d", c.Store.LoadConcurrency)
	}
	if c.Store.RebalanceInterval < 0 {
		return fmt.Errorf("store.rebalance_interval must not be negative")
	}
	if c.Store.MaxSearchLimit < c.Store.DefaultSearchLimit {
		return fmt.Errorf("store.max_search_limit (%d) is below default_search_limit (%d)",
			c.Store.MaxSearchLimit, c.Store.DefaultSearchLimit)
	}
	switch c.Storage.Backend {
	case "sqlite":
		if c.Storage.DatabasePath == "" {
			return fmt.Errorf("storage.database_path is required for the sqlite backend")
		}
	case "memory":
	case "qdrant":
		if c.Storage.Qdrant.VectorSize != c.Embedding.Dimensions {
			return fmt.Errorf("storage.qdrant.vector_size (%d) must match embedding.dimensions (%d)",
				c.Storage.Qdrant.VectorSize, c.Embedding.Dimensions)
		}
	default:
		return fmt.Errorf("unknown storage backend: %s (supported: sqlite, memory, qdrant)", c.Storage.Backend)
	}
	return nil
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
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
