// Package watch monitors a product directory and schema-validates every
// netCDF file that lands in it, once writes have settled.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"harmtool/internal/cdf"
	"harmtool/internal/dataset"
	"harmtool/internal/logging"
)

// Report is the outcome of validating one settled file.
type Report struct {
	Path   string
	Kind   dataset.Kind
	Issues []string
	Err    error // read or decode failure; Issues empty when set
}

// Stats tracks watcher activity.
type Stats struct {
	FilesCreated  int
	FilesModified int
	FilesDeleted  int
	Validated     int
	Failed        int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// Watcher validates .nc files appearing in a directory. Rapid successive
// writes to one file are debounced into a single validation.
type Watcher struct {
	mu          sync.RWMutex
	watcher     *fsnotify.Watcher
	dir         string
	tol         dataset.Tolerances
	debounceMap map[string]time.Time
	debounceDur time.Duration
	reports     chan<- Report
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	stats Stats
}

// New creates a watcher over dir. Validation outcomes are delivered on
// reports; the channel is not closed by the watcher.
func New(dir string, tol dataset.Tolerances, debounce time.Duration, reports chan<- Report) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fsw,
		dir:         dir,
		tol:         tol,
		debounceMap: make(map[string]time.Time),
		debounceDur: debounce,
		reports:     reports,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		logging.Get(logging.CategoryWatch).Warn("failed to create watch dir %s: %v (continuing anyway)", w.dir, err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		return err
	}
	logging.Watch("watching directory: %s", w.dir)

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
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

// IsWatching returns true while the event loop runs.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// GetStats returns the current watcher statistics.
func (w *Watcher) GetStats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	// The ticker granularity bounds how late a settled file is validated.
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Watch("context cancelled")
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
			logging.Get(logging.CategoryWatch).Error("watch error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.processDebounced()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".nc") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = event.Name

	switch {
	case event.Op&fsnotify.Create != 0:
		w.stats.FilesCreated++
	case event.Op&fsnotify.Write != 0:
		w.stats.FilesModified++
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		w.stats.FilesDeleted++
		delete(w.debounceMap, event.Name)
		return
	default:
		return
	}

	w.debounceMap[event.Name] = time.Now()
}

func (w *Watcher) processDebounced() {
	w.mu.Lock()
	now := time.Now()
	var settled []string
	for path, eventTime := range w.debounceMap {
		if now.Sub(eventTime) >= w.debounceDur {
			settled = append(settled, path)
			delete(w.debounceMap, path)
		}
	}
	w.mu.Unlock()

	for _, path := range settled {
		w.validate(path)
	}
}

func (w *Watcher) validate(path string) {
	timer := logging.StartTimer(logging.CategoryWatch, "validate "+filepath.Base(path))
	defer timer.Stop()

	rep := Report{Path: path}
	f, err := cdf.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return // deleted while debouncing
		}
		rep.Err = err
		w.deliver(rep, false)
		return
	}

	check := dataset.Check(f, w.tol)
	rep.Kind = check.Kind
	rep.Issues = check.Issues
	w.deliver(rep, check.OK())
}

func (w *Watcher) deliver(rep Report, ok bool) {
	w.mu.Lock()
	w.stats.Validated++
	if !ok {
		w.stats.Failed++
	}
	w.mu.Unlock()

	if ok {
		logging.Watch("%s: ok (%s)", rep.Path, rep.Kind)
	} else {
		logging.Get(logging.CategoryWatch).Warn("%s: %d issues", rep.Path, len(rep.Issues))
	}
	// Never block shutdown on a full report channel.
	if w.reports != nil {
		select {
		case w.reports <- rep:
		case <-w.stopCh:
		}
	}
}

// ValidateAll validates every .nc file already present in the directory.
// Useful at startup, before events start flowing.
func (w *Watcher) ValidateAll() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".nc") {
			continue
		}
		w.validate(filepath.Join(w.dir, entry.Name()))
	}
	return nil
}
