package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal counts coordinator operations.
	// Labels: op, result (success, error)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecshard",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of store operations by result",
		},
		[]string{"op", "result"},
	)

	// OperationDuration tracks how long coordinator operations take.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "vecshard",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Duration of store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// RollbacksTotal counts in-memory mutations undone after a gateway failure.
	RollbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vecshard",
			Subsystem: "store",
			Name:      "rollbacks_total",
			Help:      "Total number of in-memory rollbacks after persistence failures",
		},
		[]string{"op"},
	)

	// ShardEntries is the number of entries held by each shard.
	ShardEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vecshard",
			Subsystem: "store",
			Name:      "shard_entries",
			Help:      "Number of entries currently held by a shard",
		},
		[]string{"shard"},
	)

	// ShardCount is the current number of shards.
	ShardCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "vecshard",
			Subsystem: "store",
			Name:      "shard_count",
			Help:      "Current number of shards",
		},
	)

	// RebalanceMoved counts entries moved between shards.
	RebalanceMoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vecshard",
			Subsystem: "store",
			Name:      "rebalance_moved_total",
			Help:      "Total number of entries moved by rebalancing",
		},
	)

	// RebalanceDuration tracks how long rebalances take.
	RebalanceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "vecshard",
			Subsystem: "store",
			Name:      "rebalance_duration_seconds",
			Help:      "Duration of rebalance operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func observe(op string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	OperationsTotal.WithLabelValues(op, result).Inc()
	OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
