package cache

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/convolog/convolog/internal/domain"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// projectEntry is one project cache record.
type projectEntry struct {
	maxMtime time.Time
	messages []domain.Message
}

// ProjectCache memoizes the concatenated, continuation-linked message list
// for a project directory, keyed by the maximum mtime among its *.jsonl
// files. It delegates per-file parsing to a shared FileCache so a file
// already warm for one project's read serves every other consumer too.
type ProjectCache struct {
	files *FileCache

	mu      sync.RWMutex
	entries map[string]projectEntry

	sf singleflight.Group

	// fanout bounds concurrent per-file parses within a single project
	// read; it is not a global limit across concurrent project reads.
	fanout int64
}

// NewProjectCache creates a ProjectCache backed by files. fanout, when <= 0,
// defaults to the number of logical CPUs.
func NewProjectCache(files *FileCache, fanout int) *ProjectCache {
	if fanout <= 0 {
		fanout = runtime.NumCPU()
	}
	return &ProjectCache{
		files:   files,
		entries: make(map[string]projectEntry),
		fanout:  int64(fanout),
	}
}

// Get returns the linked message list for project, reloading it if the
// directory's *.jsonl files have advanced past the cached snapshot.
func (c *ProjectCache) Get(ctx context.Context, project domain.Project) ([]domain.Message, error) {
	maxMtime, files, err := c.scan(project.Path)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	entry, ok := c.entries[project.ID]
	c.mu.RUnlock()
	if ok && !maxMtime.After(entry.maxMtime) {
		return entry.messages, nil
	}

	v, err, _ := c.sf.Do(project.ID, func() (interface{}, error) {
		maxMtime, files, err := c.scan(project.Path)
		if err != nil {
			return nil, err
		}

		c.mu.RLock()
		entry, ok := c.entries[project.ID]
		c.mu.RUnlock()
		if ok && !maxMtime.After(entry.maxMtime) {
			return entry.messages, nil
		}

		messages, err := c.loadAll(ctx, project, files)
		if err != nil {
			return nil, err
		}
		messages = linkContinuations(messages)

		c.mu.Lock()
		c.entries[project.ID] = projectEntry{maxMtime: maxMtime, messages: messages}
		c.mu.Unlock()

		return messages, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.Message), nil
}

// Invalidate drops the cached entry for a project directory. Called by the
// watcher adapter on any create/modify event for a contained *.jsonl file.
func (c *ProjectCache) Invalidate(projectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, projectID)
}

// scan enumerates *.jsonl files in dir and returns the maximum mtime among
// them, along with the file list. A missing directory is not an error: it
// yields a zero max-mtime and no files, matching the empty-corpus contract.
func (c *ProjectCache) scan(dir string) (time.Time, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, nil, nil
		}
		return time.Time{}, nil, err
	}

	var maxMtime time.Time
	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(maxMtime) {
			maxMtime = info.ModTime()
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return maxMtime, files, nil
}

// loadAll parses every file in files concurrently, bounded by c.fanout,
// and concatenates the resulting messages in file-path order so repeated
// reads of an unchanged directory are deterministic.
func (c *ProjectCache) loadAll(ctx context.Context, project domain.Project, files []string) ([]domain.Message, error) {
	results := make([][]domain.Message, len(files))

	sem := semaphore.NewWeighted(c.fanout)
	g, ctx := errgroup.WithContext(ctx)

	for i, path := range files {
		i, path := i, path
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		g.Go(func() error {
			defer sem.Release(1)
			results[i] = c.files.Get(path, project).Messages
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []domain.Message
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

// linkContinuations implements the continuation linker (§4.3): build a
// uuid -> session_id index, then for every message carrying a
// ContinuedFromUUID, resolve it and set ParentSessionID when the target
// exists.
func linkContinuations(messages []domain.Message) []domain.Message {
	uuidToSession := make(map[string]string, len(messages))
	for _, m := range messages {
		if m.UUID != "" {
			uuidToSession[m.UUID] = m.SessionID
		}
	}

	linked := make([]domain.Message, len(messages))
	for i, m := range messages {
		if m.ContinuedFromUUID != "" {
			if parentSession, ok := uuidToSession[m.ContinuedFromUUID]; ok {
				m.ParentSessionID = parentSession
			}
		}
		linked[i] = m
	}
	return linked
}
