// Package watcher reloads the configuration file when it changes on disk, using fsnotify with
// debouncing.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/vecshard/internal/config"
)

const defaultDebounce = 400 * time.Millisecond

// ChangeFunc is called with the previous and the newly loaded configuration.
type ChangeFunc func(prev, next *config.Config)

// ConfigWatcher watches one config file and invokes a callback with each successfully
// reloaded version. Files that fail to load or validate are logged and ignored.
type ConfigWatcher struct {
	path     string
	onChange ChangeFunc
	debounce time.Duration
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	current  *config.Config
	timer    *time.Timer
	done     chan struct{}
	started  bool
	stopOnce sync.Once
	logger   *zap.Logger
}

// Option configures a ConfigWatcher.
type Option func(*ConfigWatcher)

// WithLogger sets a logger for reload events.
func WithLogger(l *zap.Logger) Option {
	return func(w *ConfigWatcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets how long the file must be quiet before it is reloaded.
func WithDebounce(d time.Duration) Option {
	return func(w *ConfigWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewConfigWatcher creates a watcher for the config file at path. current is the configuration
// already in effect and is passed as prev on the first change.
func NewConfigWatcher(path string, current *config.Config, onChange ChangeFunc, opts ...Option) *ConfigWatcher {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	w := &ConfigWatcher{
		path:     filepath.Clean(abs),
		onChange: onChange,
		current:  current,
		debounce: defaultDebounce,
		done:     make(chan struct{}),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start starts watching. It runs until ctx is cancelled or Stop is called. The directory of the
// file is watched rather than the file itself so that editors replacing the file by rename are
// still noticed.
func (w *ConfigWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.logger.Debug("config watcher starting", zap.String("path", w.path))
	go w.run(ctx, watcher)
	return nil
}

func (w *ConfigWatcher) run(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("config watcher error", zap.Error(err))
			}
		}
	}
}

func (w *ConfigWatcher) handleEvent(ev fsnotify.Event) {
	if filepath.Clean(ev.Name) != w.path {
		return
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	w.logger.Debug("config watcher event", zap.String("op", ev.Op.String()))
	w.scheduleReload()
}

func (w *ConfigWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

// reload loads the file and reports it. Reloads run on timer goroutines, so the callback is
// invoked under mu to keep successive versions ordered.
func (w *ConfigWatcher) reload() {
	next, err := config.Load(w.path)
	if err != nil {
		w.logger.Warn("ignoring invalid config change", zap.String("path", w.path), zap.Error(err))
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	prev := w.current
	w.current = next
	w.logger.Info("config reloaded", zap.String("path", w.path))
	if w.onChange != nil {
		w.onChange(prev, next)
	}
}

// Current returns the most recently loaded configuration.
func (w *ConfigWatcher) Current() *config.Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop stops the watcher and releases resources.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
