// Package watcher keeps the chunk store in sync with directories on disk
// using fsnotify, debouncing rapid write bursts per file.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches directories and invokes callbacks when matching files
// change. onIngest receives the path of a created or modified file after the
// debounce window; onRemove receives the path of a deleted file.
type Watcher struct {
	roots      []string
	extensions []string
	recursive  bool
	onIngest   func(path string)
	onRemove   func(path string)
	debounce   time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	pending  map[string]*time.Timer
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the per-file debounce window.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New creates a watcher over roots. extensions filters which files trigger
// callbacks (empty = all); recursive extends the watch to subdirectories.
func New(roots, extensions []string, recursive bool, onIngest, onRemove func(path string), opts ...Option) *Watcher {
	w := &Watcher{
		roots:      roots,
		extensions: extensions,
		recursive:  recursive,
		onIngest:   onIngest,
		onRemove:   onRemove,
		debounce:   defaultDebounce,
		pending:    make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
// Roots that do not exist yet are created.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.fsw = fsw
	w.started = true
	w.logger.Debug("watcher starting",
		zap.Strings("roots", w.roots),
		zap.Strings("extensions", w.extensions),
		zap.Bool("recursive", w.recursive))
	for _, root := range w.roots {
		if err := w.watchRootLocked(root); err != nil {
			_ = fsw.Close()
			w.fsw = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()
	go w.run(ctx)
	return nil
}

// SyncExisting invokes onIngest for every matching file already present
// under the watched roots. Call after Start to pick up pre-existing files.
func (w *Watcher) SyncExisting() {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	for _, root := range roots {
		w.syncDirectory(root)
	}
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.fsw == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if w.matchExtension(path) {
			w.scheduleIngest(path)
		}
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		w.cancelPending(path)
		if w.matchExtension(path) && w.onRemove != nil {
			w.onRemove(path)
		}
	}
}

// handleNewDirectory extends the watch to a directory created after Start
// and ingests the files it already contains.
func (w *Watcher) handleNewDirectory(dir string) {
	w.mu.Lock()
	fsw := w.fsw
	recursive := w.recursive
	w.mu.Unlock()
	if fsw == nil || !recursive {
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if addErr := fsw.Add(path); addErr != nil {
				w.logger.Debug("watcher add directory failed", zap.String("path", path), zap.Error(addErr))
			}
		}
		return nil
	})
	w.syncDirectory(dir)
}

func (w *Watcher) watchRootLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	if !w.recursive {
		return w.fsw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) syncDirectory(root string) {
	w.logger.Debug("watcher syncing directory", zap.String("root", root))
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if w.matchExtension(path) && w.onIngest != nil {
			w.onIngest(path)
		}
		return nil
	})
}

// scheduleIngest resets the file's debounce timer so a burst of writes
// yields a single onIngest call.
func (w *Watcher) scheduleIngest(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.logger.Debug("watcher ingesting file", zap.String("path", path))
		if w.onIngest != nil {
			w.onIngest(path)
		}
	})
}

func (w *Watcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) matchExtension(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range w.extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}
