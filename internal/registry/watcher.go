package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events a single save produces.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads the registry when a model file changes on disk.
type Watcher struct {
	registry *Registry
	source   Source
	path     string
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher watches path, reloading from src after it settles.
func NewWatcher(reg *Registry, src Source, path string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &Watcher{
		registry: reg,
		source:   src,
		path:     filepath.Clean(abs),
		debounce: debounce,
		logger:   logger,
		watcher:  fw,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start watches the model file's directory so atomic renames are seen.
// It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.running = true
	w.logger.Info("watching model file", "path", w.path)
	go w.run(ctx)
	return nil
}

// Stop ends the watch loop and releases the fsnotify handle.
func (w *Watcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		w.logger.Error("close model watcher", "error", err)
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("model file event", "op", ev.Op.String(), "path", ev.Name)
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("model watcher error", "error", err)
		case <-timer.C:
			if _, err := w.registry.Reload(ctx, w.source); err != nil {
				w.logger.Warn("hot reload failed, keeping current model", "error", err)
			}
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename)
}
