package embedding

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookups counts embedding cache lookups by result ("hit" or "miss").
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vecshard",
		Subsystem: "embedding",
		Name:      "cache_lookups_total",
		Help:      "Embedding cache lookups by result.",
	}, []string{"result"})

	// EmbedDuration observes the time spent computing embeddings on cache misses.
	EmbedDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vecshard",
		Subsystem: "embedding",
		Name:      "embed_duration_seconds",
		Help:      "Time spent computing an embedding.",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
	})
)
