// Package storage defines the persistence gateway for vector entries and its backends.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/vecshard/internal/models"
)

// ErrInvalidEntry is returned when an entry is missing its project or fingerprint.
var ErrInvalidEntry = errors.New("entry requires project_id and fingerprint")

// Gateway is the durable copy of the store, keyed by (project_id, fingerprint).
// Implementations must be safe for concurrent use on independent keys.
type Gateway interface {
	// Upsert inserts or replaces a single entry.
	Upsert(ctx context.Context, entry *models.VectorEntry) error
	// UpsertBatch inserts or replaces all entries, or none of them.
	UpsertBatch(ctx context.Context, entries []*models.VectorEntry) error
	// Delete removes one entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, projectID, fingerprint string) error
	// DeleteAll removes every entry of a project and returns how many were removed.
	DeleteAll(ctx context.Context, projectID string) (int, error)
	// LoadAll returns every entry of a project.
	LoadAll(ctx context.Context, projectID string) ([]*models.VectorEntry, error)
	// ListProjects returns the IDs of all projects with at least one entry.
	ListProjects(ctx context.Context) ([]string, error)

	Close() error
}

// Backend names accepted by configuration.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendQdrant = "qdrant"
)

func validateEntry(e *models.VectorEntry) error {
	if e == nil || e.ProjectID == "" || e.Fingerprint == "" {
		return ErrInvalidEntry
	}
	return nil
}
