// Package shard provides project placement and the per-shard in-memory index.
package shard

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Placer maps project IDs to shard numbers for a fixed shard count.
// A Placer is immutable; changing the shard count means constructing a new one.
type Placer struct {
	count int
}

// NewPlacer returns a placer over count shards.
func NewPlacer(count int) (*Placer, error) {
	if count < 1 {
		return nil, fmt.Errorf("shard count must be positive, got %d", count)
	}
	return &Placer{count: count}, nil
}

// Count returns the number of shards.
func (p *Placer) Count() int {
	return p.count
}

// Place returns the shard number for projectID. The hash is truncated to 32 bits before the
// modulo so placement does not depend on the platform's int size.
func (p *Placer) Place(projectID string) int {
	h := uint32(xxhash.Sum64String(projectID))
	return int(h % uint32(p.count))
}

// ShardID returns the shard identifier for projectID.
func (p *Placer) ShardID(projectID string) string {
	return ShardName(p.Place(projectID))
}

// ShardName formats a shard number as its identifier.
func ShardName(n int) string {
	return fmt.Sprintf("shard-%03d", n)
}
