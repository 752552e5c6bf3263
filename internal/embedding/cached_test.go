package embedding

import (
	"context"
	"testing"
)

type countingEmbedder struct {
	*HashEmbedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.HashEmbedder.Embed(ctx, text)
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(16)}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	if _, err := c.Embed(ctx, "hello world"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.EmbedBatch(ctx, []string{"hello world", "other"}); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
	st := c.Stats()
	if st.Size != 2 || st.Hits != 1 || st.Misses != 2 {
		t.Errorf("Stats = %+v, want size 2, 1 hit, 2 misses", st)
	}
	if c.Dimensions() != 16 {
		t.Errorf("Dimensions = %d", c.Dimensions())
	}
	if err := c.Close(); err != nil {
		t.Error(err)
	}
}
