// internal/change/auto_tracker.go
package change

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"sos/internal/logging"
	"sos/shared/types"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collects bursts of file events into one rescan
const DefaultDebounce = 300 * time.Millisecond

// AutoTracker watches a working tree and reports change sets as files change
type AutoTracker struct {
	root     string
	opts     SnapshotOptions
	watcher  *fsnotify.Watcher
	onChange func(shared.ChangeSet)
	debounce time.Duration
	logger   *zap.Logger

	mu   sync.Mutex
	last map[string]shared.PathInfo
}

// NewAutoTracker creates a tracker whose baseline is the given snapshot
func NewAutoTracker(root string, baseline map[string]shared.PathInfo, opts SnapshotOptions, onChange func(shared.ChangeSet)) (*AutoTracker, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	at := &AutoTracker{
		root:     root,
		opts:     opts,
		watcher:  watcher,
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   logging.OrNop(opts.Logger),
		last:     Compact(baseline),
	}

	if err := at.watchTree(root); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("initializing watches: %w", err)
	}

	return at, nil
}

// SetDebounce changes the quiet period before a rescan
func (at *AutoTracker) SetDebounce(d time.Duration) {
	at.debounce = d
}

// watchTree adds every non-ignored directory below dir to the watcher
func (at *AutoTracker) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != at.root && at.opts.ignoreDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := at.watcher.Add(p); err != nil {
			return fmt.Errorf("adding directory to watcher: %w", err)
		}
		return nil
	})
}

// Run processes filesystem events until ctx is done or the watcher closes
func (at *AutoTracker) Run(ctx context.Context) error {
	timer := time.NewTimer(at.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-at.watcher.Events:
			if !ok {
				return nil
			}
			if at.handleFSEvent(event) {
				timer.Reset(at.debounce)
			}

		case err, ok := <-at.watcher.Errors:
			if !ok {
				return nil
			}
			at.logger.Error("watcher error", zap.Error(err))

		case <-timer.C:
			if _, err := at.Rescan(ctx); err != nil {
				at.logger.Error("rescanning working tree", zap.Error(err))
			}
		}
	}
}

// handleFSEvent reports whether the event warrants a rescan
func (at *AutoTracker) handleFSEvent(event fsnotify.Event) bool {
	rel, err := filepath.Rel(at.root, event.Name)
	if err != nil {
		at.logger.Error("getting relative path", zap.Error(err))
		return false
	}
	rel = filepath.ToSlash(rel)

	for _, part := range strings.Split(rel, "/") {
		if at.opts.ignoreDir(part) {
			return false
		}
	}

	if event.Has(fsnotify.Create) {
		if err := at.watchTree(event.Name); err != nil {
			at.logger.Debug("watching new path", zap.String("path", rel), zap.Error(err))
		}
	}

	at.logger.Debug("file event", zap.String("path", rel), zap.String("op", event.Op.String()))
	return true
}

// Rescan snapshots the tree, reports changes since the previous scan and
// makes the new state the baseline
func (at *AutoTracker) Rescan(ctx context.Context) (shared.ChangeSet, error) {
	at.mu.Lock()
	defer at.mu.Unlock()

	opts := at.opts
	opts.Previous = at.last
	current, err := Snapshot(ctx, at.root, opts)
	if err != nil {
		return shared.ChangeSet{}, err
	}

	changes := DiffPathSets(at.last, current)
	at.last = Compact(current)

	if !changes.Empty() && at.onChange != nil {
		at.onChange(changes)
	}
	return changes, nil
}

// Close cleans up resources
func (at *AutoTracker) Close() error {
	return at.watcher.Close()
}
