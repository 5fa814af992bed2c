// Package watcher watches a projects root directory for JSONL log changes
// and publishes debounced file_changed events on the hub.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/convolog/convolog/internal/domain/events"
	"github.com/convolog/convolog/internal/domain/ports"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// pendingRename tracks a file that was renamed (we have the old path but not the new one yet).
type pendingRename struct {
	oldPath   string
	timestamp time.Time
}

// Watcher watches rootPath (a projects root directory, one subdirectory per
// project) for *.jsonl changes and implements the FileWatcher port.
type Watcher struct {
	rootPath    string
	hub         ports.EventHub
	invalidator ports.CacheInvalidator
	debounceMS  int

	mu             sync.RWMutex
	watcher        *fsnotify.Watcher
	ignorePatterns []string
	running        bool
	cancel         context.CancelFunc

	debouncer *Debouncer

	pendingRenames   map[string]pendingRename
	pendingRenamesMu sync.Mutex
}

// NewWatcher creates a new JSONL project watcher rooted at rootPath.
func NewWatcher(rootPath string, hub ports.EventHub, debounceMS int, ignorePatterns []string) *Watcher {
	return &Watcher{
		rootPath:       rootPath,
		hub:            hub,
		debounceMS:     debounceMS,
		ignorePatterns: ignorePatterns,
		pendingRenames: make(map[string]pendingRename),
	}
}

// Start begins watching the projects root directory.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.debouncer = NewDebouncer(time.Duration(w.debounceMS)*time.Millisecond, w.projectID, w.handleDebouncedEvent)

	w.running = true
	w.mu.Unlock()

	if err := w.addWatchRecursive(w.rootPath); err != nil {
		_ = w.Stop()
		return err
	}

	go w.eventLoop(watchCtx)

	// On macOS, deletions of JSONL files are often delivered as a RENAME
	// event with no matching CREATE. This goroutine ages out stale pending
	// renames and reports them as deletions.
	go w.pendingRenameCleanup(watchCtx)

	log.Info().
		Str("path", w.rootPath).
		Int("debounce_ms", w.debounceMS).
		Msg("project watcher started")

	return nil
}

// Stop terminates watching.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false

	if w.cancel != nil {
		w.cancel()
	}

	if w.debouncer != nil {
		w.debouncer.Stop()
	}

	if w.watcher != nil {
		err := w.watcher.Close()
		w.watcher = nil
		log.Info().Msg("project watcher stopped")
		return err
	}

	return nil
}

// AddIgnorePattern adds a pattern to the ignore list.
func (w *Watcher) AddIgnorePattern(pattern string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ignorePatterns = append(w.ignorePatterns, pattern)
}

// RemoveIgnorePattern removes a pattern from the ignore list.
func (w *Watcher) RemoveIgnorePattern(pattern string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, p := range w.ignorePatterns {
		if p == pattern {
			w.ignorePatterns = append(w.ignorePatterns[:i], w.ignorePatterns[i+1:]...)
			return
		}
	}
}

// IsRunning returns true if the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// SetInvalidator attaches the project-cache invalidation hook (§4.10 step
// c). It is optional: a watcher with no invalidator still publishes
// fan-out events, it just relies on the cache's own staleness detection
// (max file mtime, §4.3) to notice the change on the next read.
func (w *Watcher) SetInvalidator(inv ports.CacheInvalidator) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.invalidator = inv
}

// addWatchRecursive adds watches to a directory and all subdirectories.
// Project directories are normally flat, but nested layouts are tolerated.
func (w *Watcher) addWatchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to add watch")
			return nil
		}
		return nil
	})
}

// eventLoop handles fsnotify events.
func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
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
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) pendingRenameCleanup(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processStalePendingRenames()
		}
	}
}

func (w *Watcher) processStalePendingRenames() {
	w.pendingRenamesMu.Lock()
	defer w.pendingRenamesMu.Unlock()

	now := time.Now()
	for dir, pending := range w.pendingRenames {
		if now.Sub(pending.timestamp) > time.Second {
			delete(w.pendingRenames, dir)

			log.Info().Str("path", pending.oldPath).Msg("stale pending rename treated as deletion")
			projectID := w.projectID(pending.oldPath)
			w.invalidate(projectID)
			w.hub.Publish(events.NewFileChangedEvent(pending.oldPath, projectID, events.FileChangeDeleted, 0))
		}
	}
}

// handleEvent processes a single fsnotify event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	relPath, err := filepath.Rel(w.rootPath, event.Name)
	if err != nil {
		relPath = event.Name
	}

	if w.shouldIgnore(event.Name) || w.shouldIgnore(relPath) {
		return
	}

	// Directory creation widens the watch set but never itself produces an event.
	if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
		if event.Op&fsnotify.Create == fsnotify.Create {
			_ = w.addWatchRecursive(event.Name)
		}
		return
	}

	if !strings.HasSuffix(relPath, ".jsonl") {
		return
	}

	var changeType events.FileChangeType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		changeType = events.FileChangeCreated
	case event.Op&fsnotify.Write == fsnotify.Write:
		changeType = events.FileChangeModified
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		changeType = events.FileChangeDeleted
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		dir := filepath.Dir(relPath)
		w.pendingRenamesMu.Lock()
		w.pendingRenames[dir] = pendingRename{
			oldPath:   relPath,
			timestamp: time.Now(),
		}
		w.pendingRenamesMu.Unlock()
		log.Debug().Str("old_path", relPath).Str("dir", dir).Msg("tracking pending rename")
		return
	case event.Op&fsnotify.Chmod == fsnotify.Chmod:
		return
	default:
		return
	}

	w.debouncer.Add(relPath, changeType)
}

// handleDebouncedEvent is called after the debounce window expires.
func (w *Watcher) handleDebouncedEvent(path string, changeType events.FileChangeType) {
	var size int64
	if changeType != events.FileChangeDeleted {
		fullPath := filepath.Join(w.rootPath, path)
		if info, err := os.Stat(fullPath); err == nil {
			size = info.Size()
		}
	}

	projectID := w.projectID(path)
	w.invalidate(projectID)

	if changeType == events.FileChangeCreated {
		dir := filepath.Dir(path)
		w.pendingRenamesMu.Lock()
		pending, hasPending := w.pendingRenames[dir]
		if hasPending {
			if time.Since(pending.timestamp) < time.Second {
				delete(w.pendingRenames, dir)
				w.pendingRenamesMu.Unlock()

				w.hub.Publish(events.NewFileRenamedEvent(pending.oldPath, path, projectID))
				log.Info().Str("old_path", pending.oldPath).Str("new_path", path).Msg("file renamed")
				return
			}
			delete(w.pendingRenames, dir)
		}
		w.pendingRenamesMu.Unlock()
	}

	w.hub.Publish(events.NewFileChangedEvent(path, projectID, changeType, size))

	log.Debug().
		Str("path", path).
		Str("project_id", projectID).
		Str("change", string(changeType)).
		Int64("size", size).
		Msg("file changed")
}

// invalidate drops the project-cache entry for projectID, if an
// invalidator is attached (§4.10 step c). The caller locates the owning
// project by taking the relative path's first component (see projectID),
// which in this domain is already the encoded project id.
func (w *Watcher) invalidate(projectID string) {
	w.mu.RLock()
	inv := w.invalidator
	w.mu.RUnlock()
	if inv != nil && projectID != "" {
		inv.Invalidate(projectID)
	}
}

// projectID derives the project identifier from a path relative to rootPath:
// the project directory is the path's first component, and in this domain
// that directory is already named in encoded project-id form.
func (w *Watcher) projectID(relPath string) string {
	parts := splitPath(relPath)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// shouldIgnore checks if a path should be ignored.
func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)

	for _, pattern := range w.ignorePatterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}

		parts := splitPath(path)
		for _, part := range parts {
			if matched, _ := filepath.Match(pattern, part); matched {
				return true
			}
		}
	}

	return false
}

// splitPath splits a path into its components.
func splitPath(path string) []string {
	var parts []string
	for path != "" && path != "/" && path != "." {
		dir, file := filepath.Split(path)
		if file != "" {
			parts = append([]string{file}, parts...)
		}
		path = filepath.Clean(dir)
	}
	return parts
}
