package shard

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/hyperjump/vecshard/internal/models"
)

func entry(id, project string, vec ...float32) *models.VectorEntry {
	return &models.VectorEntry{ID: id, ProjectID: project, Fingerprint: id, Vector: vec}
}

func TestIndex_PutRemoveStats(t *testing.T) {
	x := NewIndex(3)
	if x.ID() != "shard-003" || x.Num() != 3 {
		t.Fatalf("ID/Num = %s/%d", x.ID(), x.Num())
	}

	x.Lock()
	if _, existed := x.PutLocked(entry("a", "p1", 1, 0)); existed {
		t.Error("first put should not report a previous entry")
	}
	x.PutLocked(entry("b", "p1", 1, 0, 0, 0))
	x.PutLocked(entry("c", "p2"))
	x.Unlock()

	s := x.Stats()
	if s.EntryCount != 3 || s.ProjectCount != 2 {
		t.Errorf("stats = %+v", s)
	}
	if s.AvgVectorLen != 2 {
		t.Errorf("AvgVectorLen = %v, want 2", s.AvgVectorLen)
	}

	x.Lock()
	prev, existed := x.PutLocked(entry("a", "p1", 1, 1, 1, 1))
	x.Unlock()
	if !existed || len(prev.Vector) != 2 {
		t.Errorf("replace should return previous entry, got %+v %v", prev, existed)
	}
	if got := x.Stats(); got.EntryCount != 3 || got.AvgVectorLen != 8.0/3.0 {
		t.Errorf("stats after replace = %+v", got)
	}

	x.Lock()
	if _, ok := x.RemoveLocked("c"); !ok {
		t.Error("remove c should succeed")
	}
	if _, ok := x.RemoveLocked("c"); ok {
		t.Error("second remove of c should report absent")
	}
	x.Unlock()
	if got := x.Stats(); got.ProjectCount != 1 || got.EntryCount != 2 {
		t.Errorf("stats after remove = %+v", got)
	}
}

func TestIndex_EmptyStats(t *testing.T) {
	s := NewIndex(0).Stats()
	if s.EntryCount != 0 || s.ProjectCount != 0 || s.AvgVectorLen != 0 {
		t.Errorf("empty stats = %+v", s)
	}
}

func TestIndex_ProjectEntriesFiltersExactly(t *testing.T) {
	x := NewIndex(0)
	x.Lock()
	x.PutLocked(entry("b", "p1"))
	x.PutLocked(entry("a", "p1"))
	x.PutLocked(entry("c", "p10"))
	x.Unlock()

	x.RLock()
	got := x.ProjectEntriesLocked("p1")
	n := x.ProjectCountLocked("p10")
	x.RUnlock()
	sort.Slice(got, func(i, j int) bool { return got[i].ID < got[j].ID })
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("ProjectEntriesLocked(p1) = %v", got)
	}
	if n != 1 {
		t.Errorf("ProjectCountLocked(p10) = %d", n)
	}
}

func TestIndex_ProjectReadsSkipOtherProjects(t *testing.T) {
	x := NewIndex(0)
	x.Lock()
	for i := 0; i < 5000; i++ {
		x.PutLocked(entry(fmt.Sprintf("other-%d", i), "other"))
	}
	x.PutLocked(entry("t1", "tiny"))
	x.PutLocked(entry("t2", "tiny"))
	x.Unlock()

	x.RLock()
	visited := 0
	x.EachProjectLocked("tiny", func(e *models.VectorEntry) bool {
		visited++
		if e.ProjectID != "tiny" {
			t.Errorf("visited entry %s of project %s", e.ID, e.ProjectID)
		}
		return true
	})
	got := x.ProjectEntriesLocked("tiny")
	x.RUnlock()
	if visited != 2 || len(got) != 2 {
		t.Errorf("visited %d entries, returned %d, want 2 and 2", visited, len(got))
	}

	// Replacing and removing keep the per-project grouping in step with the entries.
	x.Lock()
	x.PutLocked(entry("t1", "tiny"))
	x.RemoveLocked("t2")
	x.RemoveLocked("t1")
	n := x.ProjectCountLocked("tiny")
	projects := len(x.projects)
	x.Unlock()
	if n != 0 || projects != 1 {
		t.Errorf("after removal: tiny count %d, projects %d", n, projects)
	}
	if s := x.Stats(); s.ProjectCount != 1 || s.EntryCount != 5000 {
		t.Errorf("stats = %+v", s)
	}
}

func BenchmarkProjectEntries_SharedShard(b *testing.B) {
	for _, others := range []int{0, 100000} {
		b.Run(fmt.Sprintf("others=%d", others), func(b *testing.B) {
			x := NewIndex(0)
			for i := 0; i < others; i++ {
				x.PutLocked(entry(fmt.Sprintf("o%d", i), "other"))
			}
			x.PutLocked(entry("t", "tiny"))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if len(x.ProjectEntriesLocked("tiny")) != 1 {
					b.Fatal("expected one entry")
				}
			}
		})
	}
}

func TestLockPair_ConcurrentOppositeOrder(t *testing.T) {
	a, b := NewIndex(1), NewIndex(2)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			LockPair(a, b)
			UnlockPair(a, b)
		}()
		go func() {
			defer wg.Done()
			LockPair(b, a)
			UnlockPair(b, a)
		}()
	}
	wg.Wait()

	// Same index twice locks once.
	LockPair(a, a)
	UnlockPair(a, a)
	RLockPair(a, nil)
	RUnlockPair(a, nil)
	RLockAll([]*Index{a, b})
	RUnlockAll([]*Index{a, b})
}
