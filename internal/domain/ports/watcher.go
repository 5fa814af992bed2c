package ports

import "context"

// CacheInvalidator is the watcher's only dependency on the cache layer
// (§4.3 invalidation hook, §4.10): drop the project-cache entry for
// projectID so the next read re-scans the directory's files.
type CacheInvalidator interface {
	Invalidate(projectID string)
}

// FileWatcher defines the contract for file system monitoring.
type FileWatcher interface {
	// Start begins watching the specified directory.
	Start(ctx context.Context) error

	// Stop terminates file watching.
	Stop() error

	// AddIgnorePattern adds a pattern to the ignore list.
	AddIgnorePattern(pattern string)

	// RemoveIgnorePattern removes a pattern from the ignore list.
	RemoveIgnorePattern(pattern string)

	// IsRunning returns true if the watcher is active.
	IsRunning() bool
}
