package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/hyperjump/vecshard/internal/embedding"
	"github.com/hyperjump/vecshard/internal/storage"
	"github.com/hyperjump/vecshard/internal/store"
	"github.com/hyperjump/vecshard/internal/vector"
)

const dims = 384

func randomVector(r *rand.Rand) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = r.Float32()*2 - 1
	}
	return v
}

func populatedStore(b *testing.B, shards, projects, perProject int) *store.Store {
	b.Helper()
	st, err := store.New(storage.NewMemoryGateway(), shards)
	if err != nil {
		b.Fatal(err)
	}
	r := rand.New(rand.NewSource(1))
	ctx := context.Background()
	for p := 0; p < projects; p++ {
		for i := 0; i < perProject; i++ {
			if _, err := st.Store(ctx, fmt.Sprintf("proj-%d", p), fmt.Sprintf("f%d", i), randomVector(r), nil); err != nil {
				b.Fatal(err)
			}
		}
	}
	return st
}

func BenchmarkStoreSearch(b *testing.B) {
	st := populatedStore(b, 16, 20, 1000)
	query := randomVector(rand.New(rand.NewSource(2)))
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := st.Search(ctx, "proj-3", query, 10, 0); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkStoreSearchParallel(b *testing.B) {
	st := populatedStore(b, 16, 20, 500)
	ctx := context.Background()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(3))
		query := randomVector(r)
		for pb.Next() {
			if _, err := st.Search(ctx, fmt.Sprintf("proj-%d", r.Intn(20)), query, 10, 0); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

func BenchmarkStore(b *testing.B) {
	st, err := store.New(storage.NewMemoryGateway(), 16)
	if err != nil {
		b.Fatal(err)
	}
	vec := randomVector(rand.New(rand.NewSource(4)))
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := st.Store(ctx, fmt.Sprintf("proj-%d", i%50), fmt.Sprintf("f%d", i), vec, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkResize(b *testing.B) {
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		st := populatedStore(b, 4, 50, 40)
		b.StartTimer()
		if _, err := st.Resize(context.Background(), 9); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCosine(b *testing.B) {
	r := rand.New(rand.NewSource(5))
	x, y := randomVector(r), randomVector(r)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = vector.Cosine(x, y)
	}
}

func BenchmarkHashEmbedder(b *testing.B) {
	e := embedding.NewHashEmbedder(dims)
	ctx := context.Background()
	text := "shard placement keeps every project on exactly one shard"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Embed(ctx, text); err != nil {
			b.Fatal(err)
		}
	}
}
