// Package models defines core data structures for vector entries, queries, and shard statistics.
package models

import "time"

// VectorEntry is one stored embedding plus its identity and metadata.
type VectorEntry struct {
	ID          string                 `json:"id" db:"id"`
	ProjectID   string                 `json:"project_id" db:"project_id"`
	Fingerprint string                 `json:"fingerprint" db:"fingerprint"`
	Vector      []float32              `json:"vector" db:"vector"`
	Metadata    map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	ShardID     string                 `json:"shard_id" db:"shard_id"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at" db:"updated_at"`
}

// Clone returns a shallow copy of e. The vector and metadata are shared; entries are treated
// as immutable once placed in a shard.
func (e *VectorEntry) Clone() *VectorEntry {
	c := *e
	return &c
}

// EntryInput is the input for storing a single entry.
type EntryInput struct {
	Fingerprint string                 `json:"fingerprint,omitempty"`
	Vector      []float32              `json:"vector,omitempty"`
	Text        string                 `json:"text,omitempty"` // embedded by the server when Vector is empty
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Batch holds parallel slices for a batch store. Metadata may be nil; otherwise its length
// must match Fingerprints.
type Batch struct {
	Fingerprints []string                 `json:"fingerprints"`
	Vectors      [][]float32              `json:"vectors"`
	Metadata     []map[string]interface{} `json:"metadata,omitempty"`
}

// Len returns the number of entries in the batch.
func (b *Batch) Len() int {
	return len(b.Fingerprints)
}

// MetadataAt returns the metadata for entry i, or nil when no metadata was supplied.
func (b *Batch) MetadataAt(i int) map[string]interface{} {
	if b.Metadata == nil {
		return nil
	}
	return b.Metadata[i]
}
