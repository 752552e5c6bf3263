package store

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/hyperjump/vecshard/internal/models"
	"github.com/hyperjump/vecshard/internal/shard"
)

type move struct {
	id       string
	src, dst *shard.Index
}

// Rebalance moves every entry that is not on the shard its project is placed on under the
// current shard count. It never calls the gateway. Cancellation is checked between moves;
// the store is consistent at every checkpoint and a later call resumes the work.
func (s *Store) Rebalance(ctx context.Context) (models.RebalanceResult, error) {
	s.rebalanceMu.Lock()
	defer s.rebalanceMu.Unlock()
	return s.rebalanceLocked(ctx)
}

// Resize changes the shard count and rebalances. A rebalance left unfinished by an earlier
// Resize is completed first.
func (s *Store) Resize(ctx context.Context, shardCount int) (models.RebalanceResult, error) {
	if shardCount < 1 {
		return models.RebalanceResult{}, invalid("shard_count", "must be at least 1")
	}
	s.rebalanceMu.Lock()
	defer s.rebalanceMu.Unlock()

	if s.Pending() {
		if _, err := s.rebalanceLocked(ctx); err != nil {
			return models.RebalanceResult{}, err
		}
	}

	next, err := shard.NewPlacer(shardCount)
	if err != nil {
		return models.RebalanceResult{}, invalid("shard_count", err.Error())
	}

	s.mu.Lock()
	from := s.placer.Count()
	if from == shardCount {
		s.mu.Unlock()
		return models.RebalanceResult{}, nil
	}
	s.prev = s.placer
	s.placer = next
	for len(s.shards) < shardCount {
		x := shard.NewIndex(len(s.shards))
		s.shards = append(s.shards, x)
		ShardEntries.WithLabelValues(x.ID()).Set(0)
	}
	s.mu.Unlock()
	ShardCount.Set(float64(shardCount))

	s.logger.Info("shard count changed",
		zap.Int("from", from),
		zap.Int("to", shardCount))
	return s.rebalanceLocked(ctx)
}

func (s *Store) rebalanceLocked(ctx context.Context) (result models.RebalanceResult, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "store.rebalance")
	defer func() {
		result.Duration = time.Since(start)
		span.SetAttributes(attribute.Int("moved", result.Moved))
		endSpan(span, err)
		observe("rebalance", start, err)
		RebalanceMoved.Add(float64(result.Moved))
		RebalanceDuration.Observe(result.Duration.Seconds())
	}()

	// The shard slice and placer only change under rebalanceMu, which the caller holds.
	s.mu.RLock()
	placer := s.placer
	shards := s.shards
	s.mu.RUnlock()

	var moves []move
	for _, src := range shards {
		src.RLock()
		src.EachLocked(func(e *models.VectorEntry) bool {
			if p := placer.Place(e.ProjectID); p != src.Num() {
				moves = append(moves, move{id: e.ID, src: src, dst: shards[p]})
			}
			return true
		})
		src.RUnlock()
	}

	for i, m := range moves {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("rebalance interrupted",
				zap.Int("moved", result.Moved),
				zap.Int("remaining", len(moves)-i),
				zap.Error(err))
			return result, err
		}
		if s.moveEntry(m) {
			result.Moved++
		}
	}

	s.finishEpoch(placer.Count())

	if result.Moved > 0 {
		s.logger.Info("rebalance complete",
			zap.Int("moved", result.Moved),
			zap.Duration("duration", time.Since(start)))
	}
	return result, nil
}

// moveEntry inserts the entry into its destination and removes it from its source under both
// shard locks, so no reader observes it on neither or both shards.
func (s *Store) moveEntry(m move) bool {
	shard.LockPair(m.src, m.dst)
	defer shard.UnlockPair(m.src, m.dst)

	e, ok := m.src.GetLocked(m.id)
	if !ok {
		return false
	}
	if _, exists := m.dst.GetLocked(m.id); !exists {
		c := e.Clone()
		c.ShardID = m.dst.ID()
		m.dst.PutLocked(c)
	}
	m.src.RemoveLocked(m.id)
	s.updateShardGauges(m.src, m.dst)
	return true
}

// finishEpoch clears the pending placement and drops trailing shards beyond count, which are
// empty once every move has been applied.
func (s *Store) finishEpoch(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.shards[count:] {
		if n := x.Len(); n > 0 {
			s.logger.Warn("shard beyond shard count still holds entries",
				zap.String("shard_id", x.ID()),
				zap.Int("entries", n))
			return
		}
	}
	for _, x := range s.shards[count:] {
		ShardEntries.DeleteLabelValues(x.ID())
	}
	s.shards = s.shards[:count:count]
	s.prev = nil
}

// RunMaintenance rebalances every interval until ctx is done. A non-positive interval disables it.
func (s *Store) RunMaintenance(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Rebalance(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("periodic rebalance failed", zap.Error(err))
			}
		}
	}
}
