// Package events defines the event types broadcast over the hub.
package events

import (
	"encoding/json"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// EventTypeFileChanged is published when a watched project directory
	// gains, loses, or modifies a JSONL log file.
	EventTypeFileChanged EventType = "file_changed"

	// EventTypeUsageUpdated announces a change in usage accounting. The usage
	// engine in this module does not publish it.
	EventTypeUsageUpdated EventType = "usage_updated"

	// EventTypeError reports an adapter-level failure to subscribers (e.g. a
	// transport client) rather than the caller of the function that failed.
	EventTypeError EventType = "error"

	// EventTypeHeartbeat keeps long-lived subscriber connections (websocket)
	// alive across idle periods.
	EventTypeHeartbeat EventType = "heartbeat"
)

// Event is the base interface for all events.
type Event interface {
	// Type returns the event type.
	Type() EventType

	// Timestamp returns when the event occurred.
	Timestamp() time.Time

	// ToJSON serializes the event to JSON.
	ToJSON() ([]byte, error)
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType EventType   `json:"event"`
	EventTime time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
	RequestID string      `json:"request_id,omitempty"`
}

// Type returns the event type.
func (e *BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e *BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// ToJSON serializes the event to JSON.
func (e *BaseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// NewEvent creates a new base event with the given type and payload.
func NewEvent(eventType EventType, payload interface{}) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		Payload:   payload,
	}
}

// NewEventWithRequestID creates a new event with a request ID for correlating
// a push event with the query that triggered it.
func NewEventWithRequestID(eventType EventType, payload interface{}, requestID string) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		Payload:   payload,
		RequestID: requestID,
	}
}
