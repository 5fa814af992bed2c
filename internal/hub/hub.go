// Package hub fans out file-change and usage-update events (§1's
// broadcaster collaborator, §4.10 step d) to connected viewers, with
// per-subscriber project filtering so a viewer watching one project isn't
// woken up by every other project's activity.
package hub

import (
	"sync"

	"github.com/convolog/convolog/internal/domain/events"
	"github.com/convolog/convolog/internal/domain/ports"
	"github.com/rs/zerolog/log"
)

// projectScoped is implemented by event payloads that belong to a single
// project (FileChangedPayload, UsageUpdatedPayload). An event whose
// payload doesn't implement it (heartbeat, error) is never project-scoped
// and is always delivered regardless of a subscriber's filter.
type projectScoped interface {
	EventProjectID() string
}

// registration is what the register channel carries: a subscriber plus its
// optional project allow-list.
type registration struct {
	sub        ports.Subscriber
	projectIDs []string
}

// Hub is the central event dispatcher that fans out events to all
// subscribers, honoring each subscriber's project filter.
type Hub struct {
	// subscribers holds all active subscribers
	subscribers map[string]ports.Subscriber

	// filters holds each subscriber's project allow-list; an absent or
	// empty entry means "every project".
	filters map[string]map[string]struct{}

	// broadcast channel receives events to be broadcast
	broadcast chan events.Event

	// register channel receives new subscriber registrations
	register chan registration

	// unregister channel receives subscriber IDs to remove
	unregister chan string

	// mu protects subscribers and filters
	mu sync.RWMutex

	// done signals when the hub should stop
	done chan struct{}

	// running indicates if the hub is running
	running bool
}

// New creates a new Hub.
func New() *Hub {
	return &Hub{
		subscribers: make(map[string]ports.Subscriber),
		filters:     make(map[string]map[string]struct{}),
		broadcast:   make(chan events.Event, 256),
		register:    make(chan registration),
		unregister:  make(chan string),
		done:        make(chan struct{}),
	}
}

// Start begins the hub's main loop.
func (h *Hub) Start() error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = true
	h.mu.Unlock()

	log.Debug().Msg("event hub started")

	go h.run()
	return nil
}

// Stop gracefully stops the hub.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	h.mu.Unlock()

	close(h.done)

	// Close all subscribers
	h.mu.Lock()
	for _, sub := range h.subscribers {
		_ = sub.Close()
	}
	h.subscribers = make(map[string]ports.Subscriber)
	h.filters = make(map[string]map[string]struct{})
	h.mu.Unlock()

	log.Debug().Msg("event hub stopped")
	return nil
}

// run is the main event loop.
func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			return

		case reg := <-h.register:
			h.mu.Lock()
			h.subscribers[reg.sub.ID()] = reg.sub
			if len(reg.projectIDs) > 0 {
				set := make(map[string]struct{}, len(reg.projectIDs))
				for _, id := range reg.projectIDs {
					set[id] = struct{}{}
				}
				h.filters[reg.sub.ID()] = set
			}
			h.mu.Unlock()
			log.Debug().
				Str("subscriber_id", reg.sub.ID()).
				Int("project_filter", len(reg.projectIDs)).
				Msg("subscriber registered")

		case id := <-h.unregister:
			h.mu.Lock()
			if sub, ok := h.subscribers[id]; ok {
				_ = sub.Close()
				delete(h.subscribers, id)
				delete(h.filters, id)
			}
			h.mu.Unlock()
			log.Debug().Str("subscriber_id", id).Msg("subscriber unregistered")

		case event := <-h.broadcast:
			projectID, scoped := eventProjectID(event)

			h.mu.RLock()
			for id, sub := range h.subscribers {
				if scoped && !h.admits(id, projectID) {
					continue
				}
				if err := sub.Send(event); err != nil {
					log.Warn().
						Str("subscriber_id", id).
						Err(err).
						Msg("failed to send event to subscriber")
					// Queue unregister (don't block)
					go func(subID string) {
						select {
						case h.unregister <- subID:
						default:
						}
					}(id)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// admits reports whether subscriber id's project filter allows projectID.
// Caller holds h.mu for reading.
func (h *Hub) admits(id, projectID string) bool {
	filter, ok := h.filters[id]
	if !ok || len(filter) == 0 {
		return true
	}
	_, allowed := filter[projectID]
	return allowed
}

// eventProjectID extracts the project id from a project-scoped event's
// payload, if any.
func eventProjectID(event events.Event) (string, bool) {
	be, ok := event.(*events.BaseEvent)
	if !ok {
		return "", false
	}
	ps, ok := be.Payload.(projectScoped)
	if !ok {
		return "", false
	}
	return ps.EventProjectID(), true
}

// Publish sends an event to every admitted subscriber.
func (h *Hub) Publish(event events.Event) {
	select {
	case h.broadcast <- event:
		log.Trace().
			Str("event_type", string(event.Type())).
			Msg("event published")
	default:
		log.Warn().
			Str("event_type", string(event.Type())).
			Msg("event dropped: broadcast channel full")
	}
}

// Subscribe adds a new subscriber, optionally restricted to projectIDs.
func (h *Hub) Subscribe(sub ports.Subscriber, projectIDs ...string) {
	select {
	case h.register <- registration{sub: sub, projectIDs: projectIDs}:
	case <-h.done:
	}
}

// Unsubscribe removes a subscriber by ID.
func (h *Hub) Unsubscribe(id string) {
	select {
	case h.unregister <- id:
	case <-h.done:
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// IsRunning returns true if the hub is running.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}
