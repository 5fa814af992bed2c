package watcher

import (
	"sync"
	"time"

	"github.com/convolog/convolog/internal/domain/events"
)

// fileChange is one file's pending change within a project's debounce
// batch; repeated events for the same path collapse into one change type
// chosen by mergeChangeTypes.
type fileChange struct {
	path       string
	changeType events.FileChangeType
}

// projectBatch holds the file changes accumulated for one project while
// its shared debounce timer is running.
type projectBatch struct {
	changes map[string]fileChange
	timer   *time.Timer
}

// Debouncer coalesces file-system events into at most one callback burst
// per project per window (§4.10a: "debounce per project ... into one").
// Every event belonging to a project resets that project's single shared
// timer, so a flurry of writes across several files in the same project
// directory (a long session appending to multiple *.jsonl files at once)
// settles into one invalidate-and-publish pass per file instead of each
// path re-arming its own independent timer.
type Debouncer struct {
	window    time.Duration
	projectOf func(path string) string
	callback  func(path string, changeType events.FileChangeType)

	mu      sync.Mutex
	batches map[string]*projectBatch
	stopped bool
}

// NewDebouncer creates a debouncer that groups paths into projects via
// projectOf and fires callback, once per accumulated file change, after
// window has elapsed with no further activity in that project.
func NewDebouncer(window time.Duration, projectOf func(path string) string, callback func(path string, changeType events.FileChangeType)) *Debouncer {
	return &Debouncer{
		window:    window,
		projectOf: projectOf,
		callback:  callback,
		batches:   make(map[string]*projectBatch),
	}
}

// Add queues an event for debouncing, resetting its project's shared timer.
func (d *Debouncer) Add(path string, changeType events.FileChangeType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	projectID := d.projectOf(path)

	batch, ok := d.batches[projectID]
	if ok {
		batch.timer.Stop()
	} else {
		batch = &projectBatch{changes: make(map[string]fileChange)}
		d.batches[projectID] = batch
	}

	if existing, ok := batch.changes[path]; ok {
		changeType = mergeChangeTypes(existing.changeType, changeType)
	}
	batch.changes[path] = fileChange{path: path, changeType: changeType}

	batch.timer = time.AfterFunc(d.window, func() {
		d.fire(projectID)
	})
}

// fire invokes the callback once per accumulated file change in
// projectID's batch, then clears the batch.
func (d *Debouncer) fire(projectID string) {
	d.mu.Lock()
	batch, ok := d.batches[projectID]
	if !ok {
		d.mu.Unlock()
		return
	}
	delete(d.batches, projectID)
	stopped := d.stopped
	changes := make([]fileChange, 0, len(batch.changes))
	for _, c := range batch.changes {
		changes = append(changes, c)
	}
	d.mu.Unlock()

	if stopped || d.callback == nil {
		return
	}
	for _, c := range changes {
		d.callback(c.path, c.changeType)
	}
}

// Stop stops all pending project timers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for _, batch := range d.batches {
		batch.timer.Stop()
	}
	d.batches = make(map[string]*projectBatch)
}

// mergeChangeTypes combines two change types for the same file, preferring
// the more significant one.
func mergeChangeTypes(existing, new events.FileChangeType) events.FileChangeType {
	// Delete takes precedence
	if new == events.FileChangeDeleted {
		return events.FileChangeDeleted
	}
	// Create takes precedence over modify
	if existing == events.FileChangeCreated {
		return events.FileChangeCreated
	}
	// Otherwise use the new type
	return new
}
