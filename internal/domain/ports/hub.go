package ports

import (
	"github.com/convolog/convolog/internal/domain/events"
)

// Subscriber represents an event subscriber.
type Subscriber interface {
	// ID returns a unique identifier for this subscriber.
	ID() string

	// Send sends an event to this subscriber.
	// Returns error if the subscriber is closed or the send fails.
	Send(event events.Event) error

	// Close closes the subscriber.
	Close() error

	// Done returns a channel that's closed when the subscriber is done.
	Done() <-chan struct{}
}

// EventHub defines the contract for event distribution.
type EventHub interface {
	// Start begins the event hub.
	Start() error

	// Stop gracefully stops the hub.
	Stop() error

	// Publish sends an event to all subscribers, or, for a project-scoped
	// event (file_changed, usage_updated), to every subscriber whose own
	// project filter is empty or contains that event's project id.
	Publish(event events.Event)

	// Subscribe adds a new subscriber. projectIDs, when non-empty, restricts
	// delivery to project-scoped events for those project ids; an empty list
	// means "every project", matching the project registry's allow-list
	// convention (§6) rather than inventing a new filtering idiom.
	Subscribe(sub Subscriber, projectIDs ...string)

	// Unsubscribe removes a subscriber by ID.
	Unsubscribe(id string)

	// SubscriberCount returns the number of active subscribers.
	SubscriberCount() int
}
