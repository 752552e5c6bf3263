package shard

import (
	"fmt"
	"math/rand"
	"testing"
)

func TestNewPlacer_InvalidCount(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := NewPlacer(n); err == nil {
			t.Errorf("NewPlacer(%d): expected error", n)
		}
	}
}

func TestPlacer_Stable(t *testing.T) {
	p, err := NewPlacer(16)
	if err != nil {
		t.Fatal(err)
	}
	p2, _ := NewPlacer(16)
	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("project-%d", i)
		first := p.Place(id)
		if first < 0 || first >= 16 {
			t.Fatalf("Place(%q) = %d out of range", id, first)
		}
		for j := 0; j < 3; j++ {
			if got := p.Place(id); got != first {
				t.Fatalf("Place(%q) not stable: %d then %d", id, first, got)
			}
		}
		if got := p2.Place(id); got != first {
			t.Fatalf("separate placers disagree for %q: %d vs %d", id, first, got)
		}
	}
}

func TestPlacer_Balance(t *testing.T) {
	const shards = 16
	const samples = 20000
	p, _ := NewPlacer(shards)
	r := rand.New(rand.NewSource(42))
	counts := make([]int, shards)
	for i := 0; i < samples; i++ {
		id := fmt.Sprintf("%x-%d", r.Int63(), i)
		counts[p.Place(id)]++
	}
	mean := float64(samples) / shards
	for n, c := range counts {
		if float64(c) > 3*mean {
			t.Errorf("shard %d holds %d entries, more than 3x mean %.0f", n, c, mean)
		}
		if c == 0 {
			t.Errorf("shard %d received no projects", n)
		}
	}
}

func TestPlacer_SingleShard(t *testing.T) {
	p, _ := NewPlacer(1)
	for _, id := range []string{"", "a", "zzz"} {
		if got := p.Place(id); got != 0 {
			t.Errorf("Place(%q) = %d, want 0", id, got)
		}
	}
	if p.ShardID("a") != "shard-000" {
		t.Errorf("ShardID = %q", p.ShardID("a"))
	}
}
