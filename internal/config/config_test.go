package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
store:
  shard_count: 8
  rebalance_interval: 5m
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Addr() != "127.0.0.1:9000" {
		t.Errorf("Addr() = %s", cfg.Addr())
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Store.ShardCount != 8 {
		t.Errorf("shard_count = %d, want 8", cfg.Store.ShardCount)
	}
	if cfg.Store.RebalanceInterval != 5*time.Minute {
		t.Errorf("rebalance_interval = %v, want 5m", cfg.Store.RebalanceInterval)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	path := writeConfig(t, `
debug: true
storage:
  database_path: "test.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "./data/db/entries.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(filepath.Dir(path), "data", "db", "entries.db")
	if cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, want)
	}
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative shard count", "store:\n  shard_count: -1\n"},
		{"unknown backend", "storage:\n  backend: cassandra\n"},
		{"max below default", "store:\n  default_search_limit: 50\n  max_search_limit: 20\n"},
		{"qdrant size mismatch", "storage:\n  backend: qdrant\n  qdrant:\n    vector_size: 3\n"},
		{"bad yaml", "store: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("default backend: got %s", cfg.Storage.Backend)
	}
	if cfg.Storage.Qdrant.Port != 6334 || cfg.Storage.Qdrant.Collection != "vecshard_entries" {
		t.Errorf("qdrant defaults: got %+v", cfg.Storage.Qdrant)
	}
	if cfg.Storage.Qdrant.VectorSize != cfg.Embedding.Dimensions {
		t.Errorf("qdrant vector_size should follow embedding dimensions: %d vs %d",
			cfg.Storage.Qdrant.VectorSize, cfg.Embedding.Dimensions)
	}
	if cfg.Store.ShardCount != 16 {
		t.Errorf("default shard_count: got %d", cfg.Store.ShardCount)
	}
	if cfg.Store.LoadConcurrency != 4 {
		t.Errorf("default load_concurrency: got %d", cfg.Store.LoadConcurrency)
	}
	if cfg.Store.DefaultSearchLimit != 10 || cfg.Store.MaxSearchLimit != 100 {
		t.Errorf("search limits: got %d/%d", cfg.Store.DefaultSearchLimit, cfg.Store.MaxSearchLimit)
	}
	if cfg.Store.RebalanceInterval != 0 {
		t.Error("periodic rebalance should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{Backend: "memory"},
		Store:   StoreConfig{ShardCount: 4, RebalanceInterval: time.Minute},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Store.ShardCount != 4 || loaded.Store.RebalanceInterval != time.Minute {
		t.Errorf("loaded store: got %+v", loaded.Store)
	}
}
