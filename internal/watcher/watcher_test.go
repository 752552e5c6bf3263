package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/vecshard/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestConfigWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "storage:\n  backend: memory\nstore:\n  shard_count: 4\n")
	initial, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var changes [][2]int
	onChange := func(prev, next *config.Config) {
		mu.Lock()
		changes = append(changes, [2]int{prev.Store.ShardCount, next.Store.ShardCount})
		mu.Unlock()
	}
	w := NewConfigWatcher(path, initial, onChange, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// Rapid writes are coalesced into one reload.
	writeFile(t, path, "storage:\n  backend: memory\nstore:\n  shard_count: 6\n")
	writeFile(t, path, "storage:\n  backend: memory\nstore:\n  shard_count: 8\n")
	// Other files in the directory are ignored.
	writeFile(t, filepath.Join(dir, "other.yaml"), "x: 1\n")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if w.Current().Store.ShardCount == 8 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if got := w.Current().Store.ShardCount; got != 8 {
		t.Fatalf("Current().Store.ShardCount = %d, want 8", got)
	}
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(changes) == 0 {
		t.Fatal("expected a change callback")
	}
	if changes[0][0] != 4 {
		t.Errorf("first change prev = %d, want 4", changes[0][0])
	}
	if last := changes[len(changes)-1]; last[1] != 8 {
		t.Errorf("last change next = %d, want 8", last[1])
	}
}

func TestConfigWatcher_IgnoresInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "storage:\n  backend: memory\n")
	initial, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	called := make(chan struct{}, 1)
	w := NewConfigWatcher(path, initial, func(_, _ *config.Config) { called <- struct{}{} },
		WithDebounce(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	writeFile(t, path, "store:\n  shard_count: -3\n")
	select {
	case <-called:
		t.Fatal("invalid config must not be applied")
	case <-time.After(300 * time.Millisecond):
	}
	if w.Current() != initial {
		t.Error("current config should be unchanged")
	}
}

func TestConfigWatcher_StopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "")
	w := NewConfigWatcher(path, nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}

func TestConfigWatcher_StopsOnContextCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "")
	w := NewConfigWatcher(path, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	select {
	case <-w.done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}
