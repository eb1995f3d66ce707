// Package watcher watches an ingestion directory for file changes and
// emits debounced events so the pipeline can re-ingest or delete documents.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Operation is a coalesced file change kind.
type Operation int

const (
	// OpUpsert indicates a file was created or modified and should be
	// (re-)ingested.
	OpUpsert Operation = iota
	// OpDelete indicates a file was removed and its document should be
	// deleted.
	OpDelete
)

// String returns a human-readable operation name.
func (op Operation) String() string {
	switch op {
	case OpUpsert:
		return "UPSERT"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one debounced file change.
type FileEvent struct {
	// Path is the absolute path of the changed file.
	Path string
	// Operation is the coalesced change kind.
	Operation Operation
	// Timestamp is when the change was last observed.
	Timestamp time.Time
}

// DefaultDebounceWindow coalesces editor save bursts into one event.
const DefaultDebounceWindow = 200 * time.Millisecond

// Watcher watches a directory tree recursively via fsnotify.
type Watcher struct {
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	logger    *slog.Logger

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// New creates a watcher with the given debounce window (0 takes the
// default).
func New(window time.Duration, logger *slog.Logger) (*Watcher, error) {
	if window == 0 {
		window = DefaultDebounceWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		fsw:       fsw,
		debouncer: NewDebouncer(window),
		logger:    logger,
		done:      make(chan struct{}),
	}, nil
}

// Start watches root and all its subdirectories until the context is
// cancelled or Stop is called. New subdirectories are added as they appear.
func (w *Watcher) Start(ctx context.Context, root string) error {
	if err := w.addRecursive(root); err != nil {
		return err
	}

	go func() {
		defer close(w.done)
		defer w.debouncer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				w.handle(event)
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watch error", "error", err)
			}
		}
	}()
	return nil
}

// Events returns batches of debounced file events.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.debouncer.Events()
}

// Stop stops watching. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	return w.fsw.Close()
}

func (w *Watcher) handle(event fsnotify.Event) {
	if isHidden(event.Name) {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("watch new directory", "path", event.Name, "error", err)
			}
			return
		}
		w.debouncer.Add(FileEvent{Path: event.Name, Operation: OpUpsert, Timestamp: time.Now()})
	case event.Op.Has(fsnotify.Write):
		w.debouncer.Add(FileEvent{Path: event.Name, Operation: OpUpsert, Timestamp: time.Now()})
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		w.debouncer.Add(FileEvent{Path: event.Name, Operation: OpDelete, Timestamp: time.Now()})
	}
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if isHidden(path) && path != root {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// isHidden reports whether any path element starts with a dot.
func isHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != string(filepath.Separator)
}
