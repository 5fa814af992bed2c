package hub

import (
	"sync/atomic"

	"github.com/convolog/convolog/internal/domain"
	"github.com/convolog/convolog/internal/domain/events"
)

// ChannelSubscriber is a subscriber that sends events to a channel, used by
// the transport adapter's websocket handler to pump file_changed and
// usage_updated events to one connected viewer.
type ChannelSubscriber struct {
	id      string
	send    chan events.Event
	done    chan struct{}
	closed  bool
	dropped int64
}

// NewChannelSubscriber creates a new channel-based subscriber with a
// bounded buffer. A slow viewer never blocks the hub (§5's backpressure
// stance for the query pipeline applies equally to event push): once the
// buffer is full, Send fails and the event is counted as dropped rather
// than the hub pausing to wait for the client to catch up.
func NewChannelSubscriber(id string, bufferSize int) *ChannelSubscriber {
	return &ChannelSubscriber{
		id:   id,
		send: make(chan events.Event, bufferSize),
		done: make(chan struct{}),
	}
}

// ID returns the subscriber's unique identifier.
func (s *ChannelSubscriber) ID() string {
	return s.id
}

// Send sends an event to the subscriber, counting it as dropped if the
// buffer is full. A closed subscriber returns ErrSubscriberClosed without
// counting a drop.
func (s *ChannelSubscriber) Send(event events.Event) error {
	if s.closed {
		return domain.ErrSubscriberClosed
	}

	select {
	case s.send <- event:
		return nil
	default:
		atomic.AddInt64(&s.dropped, 1)
		return domain.ErrSubscriberClosed
	}
}

// Close closes the subscriber.
func (s *ChannelSubscriber) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	close(s.send)
	return nil
}

// Done returns a channel that's closed when the subscriber is done.
func (s *ChannelSubscriber) Done() <-chan struct{} {
	return s.done
}

// Events returns the channel to receive events from.
func (s *ChannelSubscriber) Events() <-chan events.Event {
	return s.send
}

// Dropped reports how many events were discarded because this subscriber
// couldn't keep up, for the transport adapter to log on disconnect.
func (s *ChannelSubscriber) Dropped() int64 {
	return atomic.LoadInt64(&s.dropped)
}

// LogSubscriber is a subscriber that logs events instead of pushing them
// over a connection, useful for diagnosing hub fan-out without a live
// websocket client attached.
type LogSubscriber struct {
	id     string
	done   chan struct{}
	closed bool
	logFn  func(event events.Event)
}

// NewLogSubscriber creates a new log subscriber.
func NewLogSubscriber(id string, logFn func(event events.Event)) *LogSubscriber {
	return &LogSubscriber{
		id:    id,
		done:  make(chan struct{}),
		logFn: logFn,
	}
}

// ID returns the subscriber's unique identifier.
func (s *LogSubscriber) ID() string {
	return s.id
}

// Send logs the event.
func (s *LogSubscriber) Send(event events.Event) error {
	if s.closed {
		return domain.ErrSubscriberClosed
	}
	if s.logFn != nil {
		s.logFn(event)
	}
	return nil
}

// Close closes the subscriber.
func (s *LogSubscriber) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}

// Done returns a channel that's closed when the subscriber is done.
func (s *LogSubscriber) Done() <-chan struct{} {
	return s.done
}
