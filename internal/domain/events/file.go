package events

// FileChangeType represents the type of file change observed by the watcher.
type FileChangeType string

const (
	FileChangeCreated  FileChangeType = "created"
	FileChangeModified FileChangeType = "modified"
	FileChangeDeleted  FileChangeType = "deleted"
	FileChangeRenamed  FileChangeType = "renamed"
)

// FileChangedPayload is the payload for file_changed events. ProjectID is the
// encoded project identifier the changed file belongs to, so subscribers can
// invalidate per-project caches without re-deriving it from the path.
type FileChangedPayload struct {
	Path      string         `json:"file_path"`
	ProjectID string         `json:"project_id"`
	Change    FileChangeType `json:"event"`
	Size      int64          `json:"size,omitempty"`
	OldPath   string         `json:"old_path,omitempty"`
}

// NewFileChangedEvent creates a new file_changed event.
func NewFileChangedEvent(path, projectID string, change FileChangeType, size int64) *BaseEvent {
	return NewEvent(EventTypeFileChanged, FileChangedPayload{
		Path:      path,
		ProjectID: projectID,
		Change:    change,
		Size:      size,
	})
}

// NewFileRenamedEvent creates a new file_changed event for renamed files.
func NewFileRenamedEvent(oldPath, newPath, projectID string) *BaseEvent {
	return NewEvent(EventTypeFileChanged, FileChangedPayload{
		Path:      newPath,
		ProjectID: projectID,
		Change:    FileChangeRenamed,
		OldPath:   oldPath,
	})
}

// EventProjectID satisfies the hub's project-scoped delivery filter.
func (p FileChangedPayload) EventProjectID() string { return p.ProjectID }

// UsageUpdatedPayload is the payload for usage_updated events.
type UsageUpdatedPayload struct {
	ProjectID string `json:"project_id"`
}

// NewUsageUpdatedEvent creates a new usage_updated event.
func NewUsageUpdatedEvent(projectID string) *BaseEvent {
	return NewEvent(EventTypeUsageUpdated, UsageUpdatedPayload{ProjectID: projectID})
}

// EventProjectID satisfies the hub's project-scoped delivery filter.
func (p UsageUpdatedPayload) EventProjectID() string { return p.ProjectID }
