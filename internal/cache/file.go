// Package cache implements the per-file and per-project memoization
// layers that sit between the JSONL corpus and the query/usage engines,
// invalidated by (mtime, size) comparison and by explicit watcher events.
package cache

import (
	"os"
	"sync"
	"time"

	"github.com/convolog/convolog/internal/adapters/ingest"
	"github.com/convolog/convolog/internal/domain"
	"golang.org/x/sync/singleflight"
)

// fileEntry is one file cache record: the stat snapshot the entry was
// populated against, plus the classified result.
type fileEntry struct {
	mtime  time.Time
	size   int64
	result ingest.FileResult
}

// FileCache memoizes ingest.ReadFile per absolute path, keyed by
// (path, mtime, size). Reads are concurrent; a single-flight group
// collapses concurrent re-parses of the same path into one.
type FileCache struct {
	mu      sync.RWMutex
	entries map[string]fileEntry

	sf singleflight.Group
}

// NewFileCache creates an empty FileCache.
func NewFileCache() *FileCache {
	return &FileCache{entries: make(map[string]fileEntry)}
}

// Get returns the classified result for path, re-parsing it if the entry
// is missing or its (mtime, size) no longer matches the file's current
// stat. An unreadable file (stat failure) yields an empty result; the
// caller's query still succeeds per §7.
func (c *FileCache) Get(path string, project domain.Project) ingest.FileResult {
	info, err := os.Stat(path)
	if err != nil {
		return ingest.FileResult{}
	}

	c.mu.RLock()
	entry, ok := c.entries[path]
	c.mu.RUnlock()
	if ok && entry.mtime.Equal(info.ModTime()) && entry.size == info.Size() {
		return entry.result
	}

	v, _, _ := c.sf.Do(path, func() (interface{}, error) {
		// Re-stat: the file may have changed again since the first stat,
		// and an earlier populator may have already stored a fresh entry.
		info, statErr := os.Stat(path)
		if statErr != nil {
			return ingest.FileResult{}, nil
		}

		c.mu.RLock()
		entry, ok := c.entries[path]
		c.mu.RUnlock()
		if ok && entry.mtime.Equal(info.ModTime()) && entry.size == info.Size() {
			return entry.result, nil
		}

		result := ingest.ReadFile(path, project)

		c.mu.Lock()
		c.entries[path] = fileEntry{mtime: info.ModTime(), size: info.Size(), result: result}
		c.mu.Unlock()

		return result, nil
	})

	return v.(ingest.FileResult)
}

// Invalidate drops the cached entry for path, if any. Called when the
// watcher adapter reports a change that staleness detection hasn't yet
// observed (e.g. a rewrite landing within the same mtime granularity).
func (c *FileCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// Len reports the number of cached file entries, for diagnostics.
func (c *FileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
