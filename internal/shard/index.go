package shard

import (
	"sync"

	"github.com/hyperjump/vecshard/internal/models"
)

// Index is the in-memory keyed collection of the entries placed on one shard.
// It owns no cross-shard state. Statistics are maintained incrementally on every mutation.
// Entries are also grouped by project, so project-scoped reads cost the project's own entry
// count regardless of how many other projects share the shard.
//
// Methods with the Locked suffix require the caller to hold the appropriate lock
// (Lock for mutations, RLock or Lock for reads). The other methods lock internally.
type Index struct {
	num      int
	id       string
	mu       sync.RWMutex
	entries  map[string]*models.VectorEntry
	projects map[string]map[string]*models.VectorEntry
	dimSum   int
}

// NewIndex creates an empty index for shard number num.
func NewIndex(num int) *Index {
	return &Index{
		num:      num,
		id:       ShardName(num),
		entries:  make(map[string]*models.VectorEntry),
		projects: make(map[string]map[string]*models.VectorEntry),
	}
}

// ID returns the shard identifier.
func (x *Index) ID() string { return x.id }

// Num returns the shard number.
func (x *Index) Num() int { return x.num }

// Lock acquires the exclusive lock.
func (x *Index) Lock() { x.mu.Lock() }

// Unlock releases the exclusive lock.
func (x *Index) Unlock() { x.mu.Unlock() }

// RLock acquires the shared lock.
func (x *Index) RLock() { x.mu.RLock() }

// RUnlock releases the shared lock.
func (x *Index) RUnlock() { x.mu.RUnlock() }

// GetLocked returns the entry with id.
func (x *Index) GetLocked(id string) (*models.VectorEntry, bool) {
	e, ok := x.entries[id]
	return e, ok
}

// PutLocked inserts or replaces e and returns the entry it replaced, if any.
func (x *Index) PutLocked(e *models.VectorEntry) (*models.VectorEntry, bool) {
	prev, existed := x.entries[e.ID]
	if existed {
		x.untrack(prev)
	}
	x.entries[e.ID] = e
	x.track(e)
	return prev, existed
}

// RemoveLocked deletes the entry with id and returns it, if it was present.
func (x *Index) RemoveLocked(id string) (*models.VectorEntry, bool) {
	prev, ok := x.entries[id]
	if !ok {
		return nil, false
	}
	delete(x.entries, id)
	x.untrack(prev)
	return prev, true
}

// ProjectEntriesLocked returns the entries whose project matches projectID exactly, in no
// particular order. Entries of other projects hashed to the same shard are never visited.
func (x *Index) ProjectEntriesLocked(projectID string) []*models.VectorEntry {
	set := x.projects[projectID]
	if len(set) == 0 {
		return nil
	}
	out := make([]*models.VectorEntry, 0, len(set))
	for _, e := range set {
		out = append(out, e)
	}
	return out
}

// EachProjectLocked calls fn for every entry of projectID until fn returns false.
func (x *Index) EachProjectLocked(projectID string, fn func(e *models.VectorEntry) bool) {
	for _, e := range x.projects[projectID] {
		if !fn(e) {
			return
		}
	}
}

// ProjectCountLocked returns the number of entries of projectID on this shard.
func (x *Index) ProjectCountLocked(projectID string) int {
	return len(x.projects[projectID])
}

// EachLocked calls fn for every entry until fn returns false.
func (x *Index) EachLocked(fn func(e *models.VectorEntry) bool) {
	for _, e := range x.entries {
		if !fn(e) {
			return
		}
	}
}

// LenLocked returns the number of entries.
func (x *Index) LenLocked() int {
	return len(x.entries)
}

// StatsLocked returns the current statistics.
func (x *Index) StatsLocked() models.ShardStats {
	s := models.ShardStats{
		ShardID:      x.id,
		EntryCount:   len(x.entries),
		ProjectCount: len(x.projects),
	}
	if s.EntryCount > 0 {
		s.AvgVectorLen = float64(x.dimSum) / float64(s.EntryCount)
	}
	return s
}

// Stats returns the current statistics.
func (x *Index) Stats() models.ShardStats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.StatsLocked()
}

// Len returns the number of entries.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

func (x *Index) track(e *models.VectorEntry) {
	set := x.projects[e.ProjectID]
	if set == nil {
		set = make(map[string]*models.VectorEntry)
		x.projects[e.ProjectID] = set
	}
	set[e.ID] = e
	x.dimSum += len(e.Vector)
}

func (x *Index) untrack(e *models.VectorEntry) {
	if set := x.projects[e.ProjectID]; set != nil {
		delete(set, e.ID)
		if len(set) == 0 {
			delete(x.projects, e.ProjectID)
		}
	}
	x.dimSum -= len(e.Vector)
}
