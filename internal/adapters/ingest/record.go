// Package ingest parses raw JSONL records into the domain's closed record
// kinds and filters out auto-generated ("synthetic") content.
package ingest

import (
	"encoding/json"
	"strings"
)

// RecordKind is the closed set of shapes a raw JSONL line can take once
// classified, replacing loose map lookups with a total function over an
// enumerated type.
type RecordKind int

const (
	KindOther RecordKind = iota
	KindUser
	KindAssistant
	KindSystemCompactBoundary
)

// rawRecord mirrors the fields the classifier consults in one JSONL line.
// Unknown fields are ignored by encoding/json.
type rawRecord struct {
	Type                      string          `json:"type"`
	Subtype                   string          `json:"subtype"`
	Timestamp                 string          `json:"timestamp"`
	SessionID                 string          `json:"sessionId"`
	UUID                      string          `json:"uuid"`
	IsCompactSummary          bool            `json:"isCompactSummary"`
	IsVisibleInTranscriptOnly bool            `json:"isVisibleInTranscriptOnly"`
	LogicalParentUUID         string          `json:"logicalParentUuid"`
	Message                   rawMessageField `json:"message"`
}

type rawMessageField struct {
	Content json.RawMessage `json:"content"`
	Usage   *rawUsage       `json:"usage"`
	Model   string          `json:"model"`
}

type rawUsage struct {
	InputTokens              int    `json:"input_tokens"`
	OutputTokens             int    `json:"output_tokens"`
	CacheCreationInputTokens int    `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int    `json:"cache_read_input_tokens"`
	Model                    string `json:"model"`
}

// contentBlock is one element of an assistant/tool_result content list.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// parseRaw decodes one JSONL line into a rawRecord. The caller is
// responsible for logging and skipping on error.
func parseRaw(line []byte) (rawRecord, error) {
	var rec rawRecord
	err := json.Unmarshal(line, &rec)
	return rec, err
}

// kind classifies a successfully-decoded record into the closed sum type.
func (r rawRecord) kind() RecordKind {
	switch {
	case r.Type == "system" && r.Subtype == "compact_boundary":
		return KindSystemCompactBoundary
	case r.Type == "user":
		return KindUser
	case r.Type == "assistant":
		return KindAssistant
	default:
		return KindOther
	}
}

// contentString extracts the literal string form of content when it is a
// bare JSON string (the common case for user messages).
func (r rawRecord) contentString() (string, bool) {
	var s string
	if err := json.Unmarshal(r.Message.Content, &s); err != nil {
		return "", false
	}
	return s, true
}

// contentBlocks extracts content as a list of content blocks, used for
// assistant messages and to detect a leading tool_result in user content.
func (r rawRecord) contentBlocks() ([]contentBlock, bool) {
	var blocks []contentBlock
	if err := json.Unmarshal(r.Message.Content, &blocks); err != nil {
		return nil, false
	}
	return blocks, true
}

// contentIsEmpty reports whether content decodes to an empty string, an
// empty list, or is entirely absent.
func (r rawRecord) contentIsEmpty() bool {
	if len(r.Message.Content) == 0 {
		return true
	}
	if s, ok := r.contentString(); ok {
		return strings.TrimSpace(s) == ""
	}
	if blocks, ok := r.contentBlocks(); ok {
		return len(blocks) == 0
	}
	return false
}

// usage returns the raw usage block, or nil if the record has none.
func (r rawRecord) usage() *rawUsage {
	return r.Message.Usage
}
