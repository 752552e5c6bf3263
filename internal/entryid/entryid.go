// Package entryid provides deterministic entry IDs derived from a project and content fingerprint.
package entryid

import (
	"github.com/google/uuid"
)

// namespace scopes the name-based UUIDs generated by New.
var namespace = uuid.MustParse("6f1d3c4e-8a2b-5c7d-9e0f-1a2b3c4d5e6f")

// New returns a stable entry ID for (projectID, fingerprint).
// The same pair always yields the same ID, so re-ingesting identical content is an upsert.
// IDs are UUIDv5 strings and can be used directly as point IDs by UUID-keyed backends.
func New(projectID, fingerprint string) string {
	name := make([]byte, 0, len(projectID)+len(fingerprint)+1)
	name = append(name, projectID...)
	name = append(name, 0)
	name = append(name, fingerprint...)
	return uuid.NewSHA1(namespace, name).String()
}

// Valid reports whether id has the shape produced by New.
func Valid(id string) bool {
	u, err := uuid.Parse(id)
	return err == nil && u.Version() == 5
}
