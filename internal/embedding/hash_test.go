package embedding

import (
	"context"
	"testing"

	"github.com/hyperjump/vecshard/internal/vector"
)

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "shard placement by hash")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Embed(ctx, "Shard placement, by HASH!")
	if len(a) != 64 {
		t.Fatalf("len = %d, want 64", len(a))
	}
	if got := vector.Cosine(a, b); got < 0.999 {
		t.Errorf("same words should embed identically, cosine = %v", got)
	}
	if n := vector.L2Norm(a); n < 0.999 || n > 1.001 {
		t.Errorf("embedding should be unit length, norm = %v", n)
	}
}

func TestHashEmbedder_Similarity(t *testing.T) {
	e := NewHashEmbedder(384)
	ctx := context.Background()

	q, _ := e.Embed(ctx, "rebalance shards after resize")
	near, _ := e.Embed(ctx, "resize then rebalance the shards")
	far, _ := e.Embed(ctx, "chocolate cake recipe")
	if vector.Cosine(q, near) <= vector.Cosine(q, far) {
		t.Errorf("overlapping text should score higher: near=%v far=%v",
			vector.Cosine(q, near), vector.Cosine(q, far))
	}
}

func TestHashEmbedder_EmptyText(t *testing.T) {
	e := NewHashEmbedder(0)
	if e.Dimensions() != 384 {
		t.Errorf("default dimensions = %d", e.Dimensions())
	}
	v, err := e.Embed(context.Background(), "  ...  ")
	if err != nil {
		t.Fatal(err)
	}
	if vector.L2Norm(v) != 0 {
		t.Error("text without words should embed to the zero vector")
	}
}

func TestHashEmbedder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHashEmbedder(8).EmbedBatch(ctx, []string{"a"}); err == nil {
		t.Error("expected error")
	}
}

func TestSplitWords(t *testing.T) {
	got := SplitWords("Hello, world!\tfoo-bar 42")
	want := []string{"hello", "world", "foo", "bar", "42"}
	if len(got) != len(want) {
		t.Fatalf("SplitWords = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d = %q, want %q", i, got[i], want[i])
		}
	}
}
