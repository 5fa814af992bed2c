package events

import (
	"encoding/json"
	"testing"
)

func TestFileChangeType_Values(t *testing.T) {
	tests := []struct {
		changeType FileChangeType
		expected   string
	}{
		{FileChangeCreated, "created"},
		{FileChangeModified, "modified"},
		{FileChangeDeleted, "deleted"},
		{FileChangeRenamed, "renamed"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if string(tt.changeType) != tt.expected {
				t.Errorf("FileChangeType = %s, want %s", tt.changeType, tt.expected)
			}
		})
	}
}

func TestNewFileChangedEvent(t *testing.T) {
	event := NewFileChangedEvent("/projects/-home-alice-app/session.jsonl", "-home-alice-app", FileChangeModified, 1024)

	if event.Type() != EventTypeFileChanged {
		t.Errorf("Type() = %v, want %v", event.Type(), EventTypeFileChanged)
	}

	payload, ok := event.Payload.(FileChangedPayload)
	if !ok {
		t.Fatal("Payload is not FileChangedPayload")
	}

	if payload.Path != "/projects/-home-alice-app/session.jsonl" {
		t.Errorf("Path = %q, want the session file path", payload.Path)
	}
	if payload.ProjectID != "-home-alice-app" {
		t.Errorf("ProjectID = %q, want -home-alice-app", payload.ProjectID)
	}
	if payload.Change != FileChangeModified {
		t.Errorf("Change = %v, want %v", payload.Change, FileChangeModified)
	}
	if payload.Size != 1024 {
		t.Errorf("Size = %d, want 1024", payload.Size)
	}
}

func TestNewFileRenamedEvent(t *testing.T) {
	event := NewFileRenamedEvent("/old/path.jsonl", "/new/path.jsonl", "-home-alice-app")

	if event.Type() != EventTypeFileChanged {
		t.Errorf("Type() = %v, want %v", event.Type(), EventTypeFileChanged)
	}

	payload, ok := event.Payload.(FileChangedPayload)
	if !ok {
		t.Fatal("Payload is not FileChangedPayload")
	}

	if payload.Path != "/new/path.jsonl" {
		t.Errorf("Path = %q, want %q", payload.Path, "/new/path.jsonl")
	}
	if payload.OldPath != "/old/path.jsonl" {
		t.Errorf("OldPath = %q, want %q", payload.OldPath, "/old/path.jsonl")
	}
	if payload.Change != FileChangeRenamed {
		t.Errorf("Change = %v, want %v", payload.Change, FileChangeRenamed)
	}
}

func TestFileChangedPayload_JSON(t *testing.T) {
	event := NewFileChangedEvent("/src/session.jsonl", "-src", FileChangeModified, 2048)

	jsonBytes, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	var parsed struct {
		Event   string `json:"event"`
		Payload struct {
			Path      string `json:"file_path"`
			ProjectID string `json:"project_id"`
			Change    string `json:"event"`
			Size      int64  `json:"size"`
		} `json:"payload"`
	}

	if err := json.Unmarshal(jsonBytes, &parsed); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if parsed.Payload.Path != "/src/session.jsonl" {
		t.Errorf("file_path = %q, want /src/session.jsonl", parsed.Payload.Path)
	}
	if parsed.Payload.Change != "modified" {
		t.Errorf("event = %q, want modified", parsed.Payload.Change)
	}
	if parsed.Payload.Size != 2048 {
		t.Errorf("size = %d, want 2048", parsed.Payload.Size)
	}
}

func TestNewUsageUpdatedEvent(t *testing.T) {
	event := NewUsageUpdatedEvent("-home-alice-app")

	if event.Type() != EventTypeUsageUpdated {
		t.Errorf("Type() = %v, want %v", event.Type(), EventTypeUsageUpdated)
	}

	payload, ok := event.Payload.(UsageUpdatedPayload)
	if !ok {
		t.Fatal("Payload is not UsageUpdatedPayload")
	}
	if payload.ProjectID != "-home-alice-app" {
		t.Errorf("ProjectID = %q, want -home-alice-app", payload.ProjectID)
	}
}
