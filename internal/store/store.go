// Package store implements the store coordinator: project placement across shards, write-through
// persistence with rollback, exact cosine search within a project, and rebalancing after a
// shard-count change.
//
// Every mutation holds the write lock of the affected shard across the synchronous gateway call,
// so the in-memory and durable order of writes to one key never diverge. When the gateway fails
// (or the context is cancelled while it runs) the in-memory change is undone before returning.
//
// After Resize the previous placement stays pending until the following rebalance completes.
// While it is pending, operations on a project consult both its current and its previous shard.
package store

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hyperjump/vecshard/internal/entryid"
	"github.com/hyperjump/vecshard/internal/models"
	"github.com/hyperjump/vecshard/internal/shard"
	"github.com/hyperjump/vecshard/internal/storage"
	"github.com/hyperjump/vecshard/internal/vector"
)

const instrumentationName = "github.com/hyperjump/vecshard/internal/store"

// Store is the coordinator over all shard indexes. It is safe for concurrent use.
type Store struct {
	// mu guards placer, prev and the shards slice. Operations hold it shared for their whole
	// duration; only epoch changes take it exclusively.
	mu     sync.RWMutex
	placer *shard.Placer
	prev   *shard.Placer
	shards []*shard.Index

	// rebalanceMu serializes Rebalance and Resize.
	rebalanceMu sync.Mutex

	gateway         storage.Gateway
	logger          *zap.Logger
	tracer          trace.Tracer
	loadConcurrency int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards all output.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLoadConcurrency bounds how many projects Load reads from the gateway at once.
func WithLoadConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.loadConcurrency = n
		}
	}
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Store) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// New creates an empty store with shardCount shards writing through to gateway.
func New(gateway storage.Gateway, shardCount int, opts ...Option) (*Store, error) {
	if gateway == nil {
		return nil, invalid("gateway", "must not be nil")
	}
	placer, err := shard.NewPlacer(shardCount)
	if err != nil {
		return nil, invalid("shard_count", err.Error())
	}
	s := &Store{
		placer:          placer,
		shards:          make([]*shard.Index, shardCount),
		gateway:         gateway,
		logger:          zap.NewNop(),
		tracer:          otel.Tracer(instrumentationName),
		loadConcurrency: 4,
	}
	for i := range s.shards {
		s.shards[i] = shard.NewIndex(i)
		ShardEntries.WithLabelValues(s.shards[i].ID()).Set(0)
	}
	ShardCount.Set(float64(shardCount))
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// shardsFor returns the current shard of projectID and, while an epoch is pending and the
// project used to live elsewhere, its previous shard. Caller holds s.mu.
func (s *Store) shardsFor(projectID string) (cur, old *shard.Index) {
	cur = s.shards[s.placer.Place(projectID)]
	if s.prev != nil {
		if o := s.shards[s.prev.Place(projectID)]; o != cur {
			return cur, o
		}
	}
	return cur, nil
}

// undo records how to revert one put.
type undo struct {
	id      string
	prev    *models.VectorEntry
	existed bool
	stale   *models.VectorEntry
}

// putLocked places e in cur and removes any copy left in old. Caller holds both write locks.
func putLocked(cur, old *shard.Index, e *models.VectorEntry) undo {
	u := undo{id: e.ID}
	u.prev, u.existed = cur.PutLocked(e)
	if old != nil {
		u.stale, _ = old.RemoveLocked(e.ID)
	}
	switch {
	case u.existed:
		e.CreatedAt = u.prev.CreatedAt
	case u.stale != nil:
		e.CreatedAt = u.stale.CreatedAt
	}
	return u
}

func (u undo) revert(cur, old *shard.Index) {
	if u.existed {
		cur.PutLocked(u.prev)
	} else {
		cur.RemoveLocked(u.id)
	}
	if u.stale != nil {
		old.PutLocked(u.stale)
	}
}

func (s *Store) newEntry(cur *shard.Index, projectID, fingerprint string, vec []float32, metadata map[string]interface{}, now time.Time) *models.VectorEntry {
	v := make([]float32, len(vec))
	copy(v, vec)
	return &models.VectorEntry{
		ID:          entryid.New(projectID, fingerprint),
		ProjectID:   projectID,
		Fingerprint: fingerprint,
		Vector:      v,
		Metadata:    copyMetadata(metadata),
		ShardID:     cur.ID(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Store inserts or replaces the entry for (projectID, fingerprint) and persists it before
// returning its ID. An empty vector is allowed; it never matches a positive threshold.
func (s *Store) Store(ctx context.Context, projectID, fingerprint string, vec []float32, metadata map[string]interface{}) (id string, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "store.store")
	defer func() {
		endSpan(span, err)
		observe("store", start, err)
	}()
	span.SetAttributes(
		attribute.String("project_id", projectID),
		attribute.Int("vector_len", len(vec)),
	)

	if projectID == "" {
		return "", invalid("project_id", "must not be empty")
	}
	if fingerprint == "" {
		return "", invalid("fingerprint", "must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, old := s.shardsFor(projectID)
	shard.LockPair(cur, old)
	defer shard.UnlockPair(cur, old)

	e := s.newEntry(cur, projectID, fingerprint, vec, metadata, time.Now())
	u := putLocked(cur, old, e)

	if err := s.gateway.Upsert(ctx, e); err != nil {
		u.revert(cur, old)
		RollbacksTotal.WithLabelValues("store").Inc()
		s.logger.Warn("store rolled back",
			zap.String("project_id", projectID),
			zap.String("fingerprint", fingerprint),
			zap.Error(err))
		return "", &PersistenceError{Op: "store", ProjectID: projectID, Err: err}
	}
	s.updateShardGauges(cur, old)

	s.logger.Debug("entry stored",
		zap.String("project_id", projectID),
		zap.String("entry_id", e.ID),
		zap.String("shard_id", cur.ID()),
		zap.Bool("replaced", u.existed || u.stale != nil))
	return e.ID, nil
}

// BatchStore stores all entries of b under projectID with a single gateway call. Either every
// entry is persisted and visible, or none is. IDs are returned in input order; when a
// fingerprint repeats, its last occurrence wins.
func (s *Store) BatchStore(ctx context.Context, projectID string, b models.Batch) (ids []string, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "store.batch_store")
	defer func() {
		endSpan(span, err)
		observe("batch_store", start, err)
	}()
	span.SetAttributes(
		attribute.String("project_id", projectID),
		attribute.Int("batch_size", b.Len()),
	)

	if projectID == "" {
		return nil, invalid("project_id", "must not be empty")
	}
	if len(b.Vectors) != len(b.Fingerprints) {
		return nil, invalid("vectors", "length does not match fingerprints")
	}
	if b.Metadata != nil && len(b.Metadata) != len(b.Fingerprints) {
		return nil, invalid("metadata", "length does not match fingerprints")
	}
	for _, fp := range b.Fingerprints {
		if fp == "" {
			return nil, invalid("fingerprint", "must not be empty")
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids = make([]string, b.Len())
	if b.Len() == 0 {
		return ids, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, old := s.shardsFor(projectID)
	shard.LockPair(cur, old)
	defer shard.UnlockPair(cur, old)

	now := time.Now()
	entries := make([]*models.VectorEntry, 0, b.Len())
	pos := make(map[string]int, b.Len())
	for i, fp := range b.Fingerprints {
		e := s.newEntry(cur, projectID, fp, b.Vectors[i], b.MetadataAt(i), now)
		ids[i] = e.ID
		if j, ok := pos[fp]; ok {
			entries[j] = e
			continue
		}
		pos[fp] = len(entries)
		entries = append(entries, e)
	}

	undos := make([]undo, len(entries))
	for i, e := range entries {
		undos[i] = putLocked(cur, old, e)
	}

	if err := s.gateway.UpsertBatch(ctx, entries); err != nil {
		for i := len(undos) - 1; i >= 0; i-- {
			undos[i].revert(cur, old)
		}
		RollbacksTotal.WithLabelValues("batch_store").Inc()
		s.logger.Warn("batch store rolled back",
			zap.String("project_id", projectID),
			zap.Int("entries", len(entries)),
			zap.Error(err))
		return nil, &PersistenceError{Op: "batch_store", ProjectID: projectID, Err: err}
	}
	s.updateShardGauges(cur, old)

	s.logger.Debug("batch stored",
		zap.String("project_id", projectID),
		zap.Int("entries", len(entries)),
		zap.String("shard_id", cur.ID()))
	return ids, nil
}

// Search returns up to limit entries of projectID whose cosine similarity to query is at least
// threshold, best first. Ties are ordered by ascending entry ID. A limit below one yields an
// empty result.
func (s *Store) Search(ctx context.Context, projectID string, query []float32, limit int, threshold float64) (hits []*models.SearchHit, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "store.search")
	defer func() {
		endSpan(span, err)
		observe("search", start, err)
	}()
	span.SetAttributes(
		attribute.String("project_id", projectID),
		attribute.Int("limit", limit),
		attribute.Float64("threshold", threshold),
	)

	if projectID == "" {
		return nil, invalid("project_id", "must not be empty")
	}
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return nil, invalid("threshold", "must be in [0, 1]")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit < 1 {
		return []*models.SearchHit{}, nil
	}

	s.mu.RLock()
	cur, old := s.shardsFor(projectID)
	shard.RLockPair(cur, old)
	candidates := cur.ProjectEntriesLocked(projectID)
	if old != nil {
		for _, e := range old.ProjectEntriesLocked(projectID) {
			if _, dup := cur.GetLocked(e.ID); !dup {
				candidates = append(candidates, e)
			}
		}
	}
	shard.RUnlockPair(cur, old)
	s.mu.RUnlock()

	hits = make([]*models.SearchHit, 0, min(limit, len(candidates)))
	for _, e := range candidates {
		score := vector.Cosine(query, e.Vector)
		if score < threshold {
			continue
		}
		hits = append(hits, &models.SearchHit{
			EntryID:     e.ID,
			Fingerprint: e.Fingerprint,
			Score:       score,
			Metadata:    e.Metadata,
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].EntryID < hits[j].EntryID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	for _, h := range hits {
		h.Metadata = copyMetadata(h.Metadata)
	}
	span.SetAttributes(attribute.Int("result_count", len(hits)))
	return hits, nil
}

// Delete removes the entry entryID of projectID. It returns false, without touching the
// gateway, when no such entry exists.
func (s *Store) Delete(ctx context.Context, projectID, entryID string) (deleted bool, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "store.delete")
	defer func() {
		endSpan(span, err)
		observe("delete", start, err)
	}()
	span.SetAttributes(attribute.String("project_id", projectID))

	if projectID == "" {
		return false, invalid("project_id", "must not be empty")
	}
	if entryID == "" {
		return false, invalid("entry_id", "must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, old := s.shardsFor(projectID)
	shard.LockPair(cur, old)
	defer shard.UnlockPair(cur, old)

	holder := cur
	e, ok := cur.GetLocked(entryID)
	if !ok && old != nil {
		holder = old
		e, ok = old.GetLocked(entryID)
	}
	if !ok || e.ProjectID != projectID {
		return false, nil
	}
	holder.RemoveLocked(entryID)

	if err := s.gateway.Delete(ctx, projectID, e.Fingerprint); err != nil {
		holder.PutLocked(e)
		RollbacksTotal.WithLabelValues("delete").Inc()
		s.logger.Warn("delete rolled back",
			zap.String("project_id", projectID),
			zap.String("entry_id", entryID),
			zap.Error(err))
		return false, &PersistenceError{Op: "delete", ProjectID: projectID, Err: err}
	}
	s.updateShardGauges(cur, old)

	s.logger.Debug("entry deleted",
		zap.String("project_id", projectID),
		zap.String("entry_id", entryID))
	return true, nil
}

// DeleteProject removes every entry of projectID, issues one bulk gateway delete and returns
// the number of entries removed from memory. The gateway delete is issued even when nothing
// was held in memory.
func (s *Store) DeleteProject(ctx context.Context, projectID string) (n int, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "store.delete_project")
	defer func() {
		endSpan(span, err)
		observe("delete_project", start, err)
	}()
	span.SetAttributes(attribute.String("project_id", projectID))

	if projectID == "" {
		return 0, invalid("project_id", "must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, old := s.shardsFor(projectID)
	shard.LockPair(cur, old)
	defer shard.UnlockPair(cur, old)

	removedCur := removeProjectLocked(cur, projectID)
	var removedOld []*models.VectorEntry
	if old != nil {
		removedOld = removeProjectLocked(old, projectID)
	}

	durable, err := s.gateway.DeleteAll(ctx, projectID)
	if err != nil {
		restoreLocked(cur, removedCur)
		if old != nil {
			restoreLocked(old, removedOld)
		}
		RollbacksTotal.WithLabelValues("delete_project").Inc()
		s.logger.Warn("delete project rolled back",
			zap.String("project_id", projectID),
			zap.Error(err))
		return 0, &PersistenceError{Op: "delete_project", ProjectID: projectID, Err: err}
	}
	s.updateShardGauges(cur, old)

	n = len(removedCur) + len(removedOld)
	s.logger.Debug("project deleted",
		zap.String("project_id", projectID),
		zap.Int("entries", n),
		zap.Int("durable", durable))
	return n, nil
}

func removeProjectLocked(x *shard.Index, projectID string) []*models.VectorEntry {
	entries := x.ProjectEntriesLocked(projectID)
	for _, e := range entries {
		x.RemoveLocked(e.ID)
	}
	return entries
}

func restoreLocked(x *shard.Index, entries []*models.VectorEntry) {
	for _, e := range entries {
		x.PutLocked(e)
	}
}

// Count returns the number of entries held for projectID.
func (s *Store) Count(projectID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, old := s.shardsFor(projectID)
	shard.RLockPair(cur, old)
	defer shard.RUnlockPair(cur, old)
	n := cur.ProjectCountLocked(projectID)
	if old != nil {
		n += old.ProjectCountLocked(projectID)
	}
	return n
}

// ShardStats returns a consistent snapshot of every shard's statistics.
func (s *Store) ShardStats() []models.ShardStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shard.RLockAll(s.shards)
	defer shard.RUnlockAll(s.shards)
	stats := make([]models.ShardStats, len(s.shards))
	for i, x := range s.shards {
		stats[i] = x.StatsLocked()
	}
	return stats
}

// ShardCount returns the current shard count.
func (s *Store) ShardCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.placer.Count()
}

// Pending reports whether a previous placement epoch is still being rebalanced away.
func (s *Store) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prev != nil
}

// Len returns the total number of entries across all shards.
func (s *Store) Len() int {
	n := 0
	for _, st := range s.ShardStats() {
		n += st.EntryCount
	}
	return n
}

// updateShardGauges refreshes the entry gauges. Caller holds the locks of cur and old.
func (s *Store) updateShardGauges(cur, old *shard.Index) {
	ShardEntries.WithLabelValues(cur.ID()).Set(float64(cur.LenLocked()))
	if old != nil {
		ShardEntries.WithLabelValues(old.ID()).Set(float64(old.LenLocked()))
	}
}

// copyMetadata deep-copies the JSON-shaped parts of m (nested objects and arrays), so neither
// the caller's input nor a returned hit shares mutable state with a stored entry.
func copyMetadata(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	c := make(map[string]interface{}, len(m))
	for k, v := range m {
		c[k] = copyValue(v)
	}
	return c
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return copyMetadata(t)
	case []interface{}:
		c := make([]interface{}, len(t))
		for i, x := range t {
			c[i] = copyValue(x)
		}
		return c
	case map[string]string:
		c := make(map[string]string, len(t))
		for k, x := range t {
			c[k] = x
		}
		return c
	case []string:
		return append([]string(nil), t...)
	case []float64:
		return append([]float64(nil), t...)
	case []int:
		return append([]int(nil), t...)
	default:
		return v
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
