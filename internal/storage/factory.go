package storage

import (
	"context"
	"fmt"

	"github.com/hyperjump/vecshard/internal/config"
)

// NewGateway creates the gateway selected by cfg.Backend.
// Supported backends: "sqlite" (default), "memory", "qdrant".
func NewGateway(ctx context.Context, cfg config.StorageConfig) (Gateway, error) {
	switch cfg.Backend {
	case BackendSQLite, "":
		return NewSQLiteGateway(cfg.DatabasePath)
	case BackendMemory:
		return NewMemoryGateway(), nil
	case BackendQdrant:
		return NewQdrantGateway(ctx, QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			Collection: cfg.Qdrant.Collection,
			VectorSize: cfg.Qdrant.VectorSize,
			UseTLS:     cfg.Qdrant.UseTLS,
			APIKey:     cfg.Qdrant.APIKey,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: sqlite, memory, qdrant)", cfg.Backend)
	}
}
