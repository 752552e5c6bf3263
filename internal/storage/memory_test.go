package storage

import (
	"context"
	"testing"

	"github.com/hyperjump/vecshard/internal/models"
)

func TestMemoryGateway(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()

	if err := g.UpsertBatch(ctx, []*models.VectorEntry{
		newEntry("p1", "b", []float32{1}),
		newEntry("p1", "a", []float32{2}),
		newEntry("p2", "a", []float32{3}),
	}); err != nil {
		t.Fatal(err)
	}
	if g.Len() != 3 {
		t.Fatalf("Len = %d, want 3", g.Len())
	}

	first, _ := g.LoadAll(ctx, "p1")
	created := first[0].CreatedAt
	if err := g.Upsert(ctx, newEntry("p1", "a", []float32{9})); err != nil {
		t.Fatal(err)
	}
	got, err := g.LoadAll(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Fingerprint != "a" || got[0].Vector[0] != 9 {
		t.Errorf("LoadAll = %v", got)
	}
	if !got[0].CreatedAt.Equal(created) {
		t.Error("CreatedAt should survive an upsert")
	}

	// Returned entries are copies.
	got[0].Fingerprint = "mutated"
	again, _ := g.LoadAll(ctx, "p1")
	if again[0].Fingerprint != "a" {
		t.Error("LoadAll must not expose internal state")
	}

	if err := g.Upsert(ctx, &models.VectorEntry{ProjectID: "p1"}); err != ErrInvalidEntry {
		t.Errorf("expected ErrInvalidEntry, got %v", err)
	}

	if err := g.Delete(ctx, "p1", "b"); err != nil {
		t.Fatal(err)
	}
	n, err := g.DeleteAll(ctx, "p1")
	if err != nil || n != 1 {
		t.Errorf("DeleteAll = %d, %v", n, err)
	}
	projects, _ := g.ListProjects(ctx)
	if len(projects) != 1 || projects[0] != "p2" {
		t.Errorf("ListProjects = %v", projects)
	}
}

func TestMemoryGateway_CanceledContext(t *testing.T) {
	g := NewMemoryGateway()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Upsert(ctx, newEntry("p1", "a", []float32{1})); err == nil {
		t.Error("expected error")
	}
	if g.Len() != 0 {
		t.Error("nothing should be stored")
	}
}
