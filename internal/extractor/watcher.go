package extractor

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"switchfacts/internal/logging"
)

// Watcher re-extracts workspace files as they change. Events are debounced
// per path: a file is processed once it has been quiet for the debounce
// interval.
type Watcher struct {
	mu          sync.Mutex
	ex          *Extractor
	watcher     *fsnotify.Watcher
	debounceMap map[string]time.Time
	debounceDur time.Duration
	onBatch     func(*Summary)
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats WatcherStats
}

// WatcherStats tracks watcher activity.
type WatcherStats struct {
	Events        int
	Batches       int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// NewWatcher creates a watcher over ex's workspace. onBatch, if set, is
// called after each debounced batch is processed.
func NewWatcher(ex *Extractor, debounce time.Duration, onBatch func(*Summary)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return &Watcher{
		ex:          ex,
		watcher:     fsw,
		debounceMap: make(map[string]time.Time),
		debounceDur: debounce,
		onBatch:     onBatch,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start registers every non-ignored directory of the workspace and begins
// processing events in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addTree(w.ex.Workspace()); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	logging.Watch("watching %s (debounce %v)", w.ex.Workspace(), w.debounceDur)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatch).Error("error closing watcher: %v", err)
	}
	logging.Watch("stopped")
}

// Done is closed when the event loop exits.
func (w *Watcher) Done() <-chan struct{} { return w.doneCh }

// Stats returns a snapshot of watcher activity.
func (w *Watcher) Stats() WatcherStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ex.Ignored(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			logging.Get(logging.CategoryWatch).Warn("cannot watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounceDur / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	debounceTicker := time.NewTicker(tick)
	defer debounceTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.WatchDebug("context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatch).Error("watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-debounceTicker.C:
			w.processDebounced(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.ex.Ignored(event.Name) {
				if err := w.addTree(event.Name); err != nil {
					logging.Get(logging.CategoryWatch).Warn("cannot watch new directory %s: %v", event.Name, err)
				}
				w.enqueueTree(event.Name)
			}
			return
		}
	}

	if !w.ex.Supported(event.Name) || w.ex.Ignored(event.Name) {
		return
	}
	logging.WatchDebug("%s %s", event.Op, event.Name)
	w.enqueue(event.Name)
}

// enqueueTree schedules files that appeared inside a new directory before
// it was watched.
func (w *Watcher) enqueueTree(dir string) {
	files, err := w.ex.Discover(dir)
	if err != nil {
		return
	}
	for _, f := range files {
		w.enqueue(f)
	}
}

func (w *Watcher) enqueue(path string) {
	rel := w.ex.Rel(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	w.debounceMap[rel] = now
	w.stats.Events++
	w.stats.LastEventPath = rel
	w.stats.LastEventTime = now
}

func (w *Watcher) processDebounced(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()
	if len(settled) == 0 {
		return
	}
	sort.Strings(settled)

	var present []string
	var removed []string
	for _, rel := range settled {
		if _, err := os.Stat(w.ex.abs(rel)); errors.Is(err, fs.ErrNotExist) {
			removed = append(removed, rel)
			continue
		}
		present = append(present, rel)
	}

	summary, err := w.ex.ExtractPaths(ctx, present)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.Get(logging.CategoryWatch).Error("batch failed: %v", err)
	}
	if summary == nil {
		summary = &Summary{}
	}
	for _, rel := range removed {
		if _, ok := w.ex.knownHash(rel); !ok {
			continue
		}
		if err := w.ex.Remove(rel); err != nil {
			summary.Failed = append(summary.Failed, FileError{Path: rel, Err: err})
			continue
		}
		summary.Removed++
	}

	w.mu.Lock()
	w.stats.Batches++
	w.mu.Unlock()

	logging.Watch("batch: %d extracted, %d unchanged, %d removed, %d failed",
		summary.Extracted, summary.Unchanged, summary.Removed, len(summary.Failed))
	if w.onBatch != nil {
		w.onBatch(summary)
	}
}
