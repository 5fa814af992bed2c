package domain

import "time"

// MessageType identifies which side of a conversation turn a Message represents.
type MessageType string

const (
	MessageTypeUser      MessageType = "user"
	MessageTypeAssistant MessageType = "assistant"
)

// Project describes a single JSONL-log source directory.
type Project struct {
	ID          string
	DisplayName string
	Path        string
}

// Message is a normalized conversation unit produced by the classifier.
// Messages are immutable once produced; annotations such as search match
// state are carried by AnnotatedMessage, never by mutating this struct.
type Message struct {
	Timestamp time.Time
	Type      MessageType
	Content   string
	SessionID string
	UUID      string
	Filename  string
	Project   Project

	ContinuedFromUUID     string
	ParentSessionID       string
	IsContinuationSession bool
}

// AnnotatedMessage decorates a Message with keyword-search match state
// computed by the grouper for a specific query, without mutating the
// underlying cached Message.
type AnnotatedMessage struct {
	Message
	IsSearchMatch bool
	SearchKeyword string
}

// ThreadGroup is a non-empty ordered sequence of messages whose first
// element is a user message and whose tail holds zero or more assistant
// messages, closed by the next user message.
type ThreadGroup struct {
	Messages []AnnotatedMessage
}

// RepresentativeTimestamp returns the timestamp of the group's first message.
func (g ThreadGroup) RepresentativeTimestamp() time.Time {
	if len(g.Messages) == 0 {
		return time.Time{}
	}
	return g.Messages[0].Timestamp
}

// UsageSample is one assistant-message token-usage observation.
type UsageSample struct {
	Timestamp           time.Time
	Model               string
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
}

// TotalTokens is the subscription-limit-relevant token count: cache
// counters are reported but never contribute to this figure.
func (s UsageSample) TotalTokens() int {
	return s.InputTokens + s.OutputTokens
}
