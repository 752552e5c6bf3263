package models

import "time"

// ShardStats are the derived statistics of one shard.
type ShardStats struct {
	ShardID      string  `json:"shard_id"`
	EntryCount   int     `json:"entry_count"`
	ProjectCount int     `json:"project_count"`
	AvgVectorLen float64 `json:"avg_vector_len"`
}

// RebalanceResult reports the outcome of a rebalance.
type RebalanceResult struct {
	Moved    int           `json:"moved"`
	Duration time.Duration `json:"duration_ns"`
}
