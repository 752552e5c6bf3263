package embedding

import (
	"context"
	"time"

	"github.com/cespare/xxhash/v2"
)

// CachedEmbedder memoizes another Embedder's results in an LRU cache keyed by a text hash.
type CachedEmbedder struct {
	next  Embedder
	cache *EmbeddingCache
}

// NewCachedEmbedder wraps next with a cache of the given capacity.
func NewCachedEmbedder(next Embedder, capacity int) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: NewEmbeddingCache(capacity)}
}

// Embed returns the cached embedding or computes and caches it. Callers must not modify the
// returned slice.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := xxhash.Sum64String(text)
	if v, ok := c.cache.Get(key); ok {
		CacheLookups.WithLabelValues("hit").Inc()
		return v, nil
	}
	CacheLookups.WithLabelValues("miss").Inc()
	start := time.Now()
	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	EmbedDuration.Observe(time.Since(start).Seconds())
	c.cache.Set(key, v)
	return v, nil
}

// EmbedBatch embeds each text through the cache.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the wrapped embedder's dimension.
func (c *CachedEmbedder) Dimensions() int {
	return c.next.Dimensions()
}

// Stats returns the cache statistics.
func (c *CachedEmbedder) Stats() CacheStats {
	return c.cache.Stats()
}

// Close closes the wrapped embedder.
func (c *CachedEmbedder) Close() error {
	return c.next.Close()
}
