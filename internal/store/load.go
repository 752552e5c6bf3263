package store

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/vecshard/internal/entryid"
	"github.com/hyperjump/vecshard/internal/shard"
)

// Load populates the store from the gateway at cold start. Projects are read concurrently,
// bounded by the load concurrency, and every entry is placed by the current shard count
// whatever shard hint was persisted with it. It returns the number of entries loaded.
func (s *Store) Load(ctx context.Context) (total int, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "store.load")
	defer func() {
		span.SetAttributes(attribute.Int("entries", total))
		endSpan(span, err)
		observe("load", start, err)
	}()

	projects, err := s.gateway.ListProjects(ctx)
	if err != nil {
		return 0, &PersistenceError{Op: "load", Err: err}
	}

	var loaded, stale atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.loadConcurrency)
	for _, p := range projects {
		g.Go(func() error {
			n, hints, err := s.loadProject(gctx, p, false)
			if err != nil {
				return err
			}
			loaded.Add(int64(n))
			stale.Add(int64(hints))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(loaded.Load()), err
	}

	total = int(loaded.Load())
	s.logger.Info("store loaded",
		zap.Int("projects", len(projects)),
		zap.Int("entries", total),
		zap.Int64("stale_shard_hints", stale.Load()),
		zap.Duration("duration", time.Since(start)))
	return total, nil
}

// Reload replaces the in-memory entries of projectID with the durable copy and returns how
// many entries were loaded.
func (s *Store) Reload(ctx context.Context, projectID string) (n int, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "store.reload")
	defer func() {
		endSpan(span, err)
		observe("reload", start, err)
	}()
	span.SetAttributes(attribute.String("project_id", projectID))

	if projectID == "" {
		return 0, invalid("project_id", "must not be empty")
	}
	n, _, err = s.loadProject(ctx, projectID, true)
	if err != nil {
		return 0, err
	}
	s.logger.Info("project reloaded",
		zap.String("project_id", projectID),
		zap.Int("entries", n))
	return n, nil
}

// loadProject reads projectID from the gateway while holding its shard locks, so no write to
// the project can interleave between the read and the in-memory update. With replace set, the
// entries already held for the project are discarded first.
func (s *Store) loadProject(ctx context.Context, projectID string, replace bool) (loaded, staleHints int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, old := s.shardsFor(projectID)
	shard.LockPair(cur, old)
	defer shard.UnlockPair(cur, old)

	entries, err := s.gateway.LoadAll(ctx, projectID)
	if err != nil {
		return 0, 0, &PersistenceError{Op: "load_all", ProjectID: projectID, Err: err}
	}

	if replace {
		removeProjectLocked(cur, projectID)
		if old != nil {
			removeProjectLocked(old, projectID)
		}
	}
	for _, e := range entries {
		if e.ProjectID != projectID || e.Fingerprint == "" {
			s.logger.Warn("skipping malformed entry",
				zap.String("project_id", projectID),
				zap.String("entry_project_id", e.ProjectID),
				zap.String("fingerprint", e.Fingerprint))
			continue
		}
		e.ID = entryid.New(e.ProjectID, e.Fingerprint)
		if e.ShardID != cur.ID() {
			staleHints++
			e.ShardID = cur.ID()
		}
		cur.PutLocked(e)
		if old != nil {
			old.RemoveLocked(e.ID)
		}
		loaded++
	}
	s.updateShardGauges(cur, old)
	return loaded, staleHints, nil
}
