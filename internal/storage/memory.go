package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hyperjump/vecshard/internal/models"
)

type memoryKey struct {
	projectID   string
	fingerprint string
}

// MemoryGateway is an in-process Gateway. It keeps nothing across restarts and is meant for
// tests and ephemeral deployments.
type MemoryGateway struct {
	entries map[memoryKey]models.VectorEntry
	mu      sync.RWMutex
}

// NewMemoryGateway creates an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		entries: make(map[memoryKey]models.VectorEntry),
	}
}

// Upsert stores a copy of entry.
func (m *MemoryGateway) Upsert(ctx context.Context, entry *models.VectorEntry) error {
	return m.UpsertBatch(ctx, []*models.VectorEntry{entry})
}

// UpsertBatch stores copies of all entries, or none if any is invalid.
func (m *MemoryGateway) UpsertBatch(ctx context.Context, entries []*models.VectorEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, e := range entries {
		if err := validateEntry(e); err != nil {
			return err
		}
	}
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		k := memoryKey{e.ProjectID, e.Fingerprint}
		c := *e
		if prev, ok := m.entries[k]; ok {
			c.CreatedAt = prev.CreatedAt
		} else if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.UpdatedAt = now
		m.entries[k] = c
	}
	return nil
}

// Delete removes one entry.
func (m *MemoryGateway) Delete(ctx context.Context, projectID, fingerprint string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, memoryKey{projectID, fingerprint})
	return nil
}

// DeleteAll removes every entry of projectID.
func (m *MemoryGateway) DeleteAll(ctx context.Context, projectID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.entries {
		if k.projectID == projectID {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

// LoadAll returns copies of every entry of projectID ordered by fingerprint.
func (m *MemoryGateway) LoadAll(ctx context.Context, projectID string) ([]*models.VectorEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.VectorEntry
	for k, e := range m.entries {
		if k.projectID == projectID {
			c := e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fingerprint < out[j].Fingerprint })
	return out, nil
}

// ListProjects returns the distinct project IDs in sorted order.
func (m *MemoryGateway) ListProjects(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	for k := range m.entries {
		seen[k.projectID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// Len returns the number of stored entries.
func (m *MemoryGateway) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close is a no-op for MemoryGateway.
func (m *MemoryGateway) Close() error {
	return nil
}
