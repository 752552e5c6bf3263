package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/vecshard/internal/config"
)

func TestNewGateway(t *testing.T) {
	ctx := context.Background()

	g, err := NewGateway(ctx, config.StorageConfig{Backend: BackendMemory})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := g.(*MemoryGateway); !ok {
		t.Errorf("memory backend returned %T", g)
	}

	g, err = NewGateway(ctx, config.StorageConfig{DatabasePath: filepath.Join(t.TempDir(), "x.db")})
	if err != nil {
		t.Fatal(err)
	}
	defer g.Close()
	if _, ok := g.(*SQLiteGateway); !ok {
		t.Errorf("default backend returned %T", g)
	}

	if _, err := NewGateway(ctx, config.StorageConfig{Backend: "nope"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
