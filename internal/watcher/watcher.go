// Package watcher implements C7: a debounced filesystem event loop that
// drives incremental reconciliation of the indexer as files change.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/wb200/wbgrep/internal/ignore"
	"github.com/wb200/wbgrep/internal/indexer"
)

// DebounceInterval is WATCH_DEBOUNCE_MS from spec §4.7.
const DebounceInterval = 500 * time.Millisecond

// excludedDirNames are conventional build-output and VCS directories
// never watched, regardless of ignore rules.
var excludedDirNames = map[string]bool{
	"node_modules": true,
	".git":         true,
	"dist":         true,
	"build":        true,
}

// Watcher drives indexer.Indexer from filesystem change notifications.
type Watcher struct {
	fw        *fsnotify.Watcher
	idx       *indexer.Indexer
	root      string
	storeDir  string
	ignoreSet *ignore.Matcher
	logger    *zap.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer

	// onFlush, if set, is invoked after a debounce flush drains and the
	// journal is saved. Tests use this to observe completion.
	onFlush func()
}

// New creates a Watcher rooted at root. storeDir is the vector-store
// directory excluded from watching (e.g. "<root>/.wb-grep/vectors"). extraIgnore
// adds user-configured patterns (spec §6 "ignore.patterns") on top of the
// built-in global set. A nil logger is replaced with a no-op logger.
func New(root, storeDir string, idx *indexer.Indexer, logger *zap.Logger, extraIgnore ...string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		fw:        fw,
		idx:       idx,
		root:      root,
		storeDir:  storeDir,
		ignoreSet: ignore.New(root, extraIgnore...),
		logger:    logger,
		pending:   make(map[string]struct{}),
	}, nil
}

// Watch registers watches on root and every non-excluded subdirectory,
// then blocks processing events until ctx is cancelled. On cancellation
// it stops the watcher and flushes the journal before returning.
func (w *Watcher) Watch(ctx context.Context) error {
	if err := w.addDirRecursive(w.root); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			w.fw.Close()
			return w.idx.JournalSave()

		case event, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if fi, err := os.Stat(path); err == nil && fi.IsDir() {
			_ = w.addDirRecursive(path)
			return
		}
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		if err := w.idx.DeleteFile(path); err != nil {
			w.logger.Error("deleting file from index", zap.String("path", path), zap.Error(err))
		}
		return
	}

	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
		w.enqueue(path)
	}
}

func (w *Watcher) enqueue(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = struct{}{}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(DebounceInterval, w.flush)
}

// flush copies and clears the pending set, reconciles each surviving
// path, then saves the journal, per spec §4.7.
func (w *Watcher) flush() {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	for path := range batch {
		info, err := os.Stat(path)
		if err != nil {
			continue // file no longer exists
		}
		if w.ignoreSet.Ignored(path) {
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		w.idx.Reconcile(context.Background(), path, false)
	}

	if err := w.idx.JournalSave(); err != nil {
		w.logger.Error("saving journal", zap.Error(err))
	} else if len(batch) > 0 {
		w.logger.Debug("flushed pending changes", zap.Int("files", len(batch)))
	}

	if w.onFlush != nil {
		w.onFlush()
	}
}

// addDirRecursive adds dir and its non-excluded subdirectories to the
// fsnotify watch list.
func (w *Watcher) addDirRecursive(dir string) error {
	base := filepath.Base(dir)
	if base != "." && strings.HasPrefix(base, ".") {
		return nil
	}
	if excludedDirNames[base] {
		return nil
	}
	if w.storeDir != "" && (dir == w.storeDir || strings.HasPrefix(dir, w.storeDir+string(filepath.Separator))) {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil // walker-style tolerance of unreadable directories
	}

	if err := w.fw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		_ = w.addDirRecursive(filepath.Join(dir, e.Name()))
	}
	return nil
}
