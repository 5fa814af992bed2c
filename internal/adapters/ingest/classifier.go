package ingest

import (
	"encoding/json"
	"strings"
	"time"
)

// syntheticMarkers are substrings whose presence in user content marks it as
// machine-generated (tool envelopes, reminders, bootstrap requests) rather
// than a real conversational turn.
var syntheticMarkers = []string{
	"system-reminder>",
	"antml:function_calls",
	"antml:invoke",
	"<command-message>",
	"</command-message>",
	"<command-name>",
	"</command-name>",
	"(no content)",
	"<local-command-stdout>",
	"<user-memory-input>",
	"Your todo list has changed",
	"This is a reminder that your todo list",
	"[{'type':",
	`{"type":`,
	"analyzing your codebase",
	"Caveat: ",
}

const claudeMDBootstrapMarker = "Please analyze this codebase and create a CLAUDE.md file"

const continuationSummaryPrefix = "This session is being continued from a previous conversation"

// isSyntheticContent implements the synthetic-content predicate: user
// content recognized as auto-generated and excluded from conversational
// output.
func isSyntheticContent(content string) bool {
	trimmed := strings.TrimSpace(content)

	if looksLikeJSON(trimmed) {
		return true
	}

	for _, marker := range syntheticMarkers {
		if strings.Contains(content, marker) {
			return true
		}
	}

	if strings.HasPrefix(trimmed, "[{") && strings.HasSuffix(trimmed, "}]") {
		return true
	}
	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") {
		return true
	}

	if strings.Contains(content, claudeMDBootstrapMarker) {
		return true
	}

	return false
}

// looksLikeJSON reports whether trimmed actually decodes as a JSON object
// or array at the top level, matching the original _is_json_message's
// json.loads-in-a-try/except semantics: a bracket-matched but invalid
// payload (a pasted code fragment like "{TODO: fix this}") is not
// synthetic content and must not be dropped on a first/last-character
// guess alone.
func looksLikeJSON(trimmed string) bool {
	if trimmed == "" {
		return false
	}
	first := trimmed[0]
	last := trimmed[len(trimmed)-1]
	if !(first == '{' && last == '}') && !(first == '[' && last == ']') {
		return false
	}
	var v interface{}
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return false
	}
	switch v.(type) {
	case map[string]interface{}, []interface{}:
		return true
	default:
		return false
	}
}

// Classifier tracks cross-line state needed to classify a single file's
// records: the pending-continuation uuid left by a compact_boundary record.
type Classifier struct {
	pendingContinuationUUID string
}

// NewClassifier creates a Classifier for scanning one file. State does not
// carry across files.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// ClassifiedMessage is the classifier's output shape, decoupled from
// domain.Message so the caller attaches Project/Filename once per file.
type ClassifiedMessage struct {
	Timestamp             time.Time
	Type                  string // "user" | "assistant"
	Content               string
	SessionID             string
	UUID                  string
	ContinuedFromUUID     string
	IsContinuationSession bool
}

// ClassifyLine parses and classifies one raw JSONL line in a single step,
// so callers outside this package (the streaming lazy reader) never need
// to construct a rawRecord themselves. It returns the emitted message (if
// any), whether one was emitted, and a parse error for a malformed line.
func (c *Classifier) ClassifyLine(line []byte) (ClassifiedMessage, bool, error) {
	raw, err := parseRaw(line)
	if err != nil {
		return ClassifiedMessage{}, false, err
	}
	msg, ok := c.Classify(raw)
	return msg, ok, nil
}

// ExtractLineUsage parses line and extracts its usage sample, if any,
// independent of whatever ClassifyLine returns for the same line.
func ExtractLineUsage(line []byte) (UsageSample, bool, error) {
	raw, err := parseRaw(line)
	if err != nil {
		return UsageSample{}, false, err
	}
	sample, ok := ExtractUsage(raw)
	return sample, ok, nil
}

// Classify applies the classification rules in order to one decoded record,
// returning the emitted message (if any) and whether a message was emitted.
// Usage is extracted separately, via ExtractUsage.
func (c *Classifier) Classify(raw rawRecord) (ClassifiedMessage, bool) {
	ts, _ := time.Parse(time.RFC3339, raw.Timestamp)

	switch raw.kind() {
	case KindSystemCompactBoundary:
		c.pendingContinuationUUID = raw.LogicalParentUUID
		return ClassifiedMessage{}, false

	case KindUser:
		return c.classifyUser(raw, ts)

	case KindAssistant:
		return c.classifyAssistant(raw, ts)

	default:
		return ClassifiedMessage{}, false
	}
}

func (c *Classifier) classifyUser(raw rawRecord, ts time.Time) (ClassifiedMessage, bool) {
	if raw.IsCompactSummary {
		return ClassifiedMessage{}, false
	}
	if raw.IsVisibleInTranscriptOnly && raw.LogicalParentUUID != "" {
		return ClassifiedMessage{}, false
	}

	content, isString := raw.contentString()
	if isString && strings.HasPrefix(content, continuationSummaryPrefix) {
		return ClassifiedMessage{}, false
	}

	if blocks, ok := raw.contentBlocks(); ok {
		if len(blocks) > 0 && blocks[0].Type == "tool_result" {
			return ClassifiedMessage{}, false
		}
	}

	if raw.contentIsEmpty() {
		return ClassifiedMessage{}, false
	}

	if isString && isSyntheticContent(content) {
		return ClassifiedMessage{}, false
	}

	msg := ClassifiedMessage{
		Timestamp: ts,
		Type:      "user",
		Content:   content,
		SessionID: raw.SessionID,
		UUID:      raw.UUID,
	}

	if c.pendingContinuationUUID != "" {
		msg.ContinuedFromUUID = c.pendingContinuationUUID
		msg.IsContinuationSession = true
		c.pendingContinuationUUID = ""
	}

	return msg, true
}

func (c *Classifier) classifyAssistant(raw rawRecord, ts time.Time) (ClassifiedMessage, bool) {
	blocks, ok := raw.contentBlocks()
	if !ok || len(blocks) == 0 {
		return ClassifiedMessage{}, false
	}

	first := blocks[0]
	if first.Type == "tool_use" {
		return ClassifiedMessage{}, false
	}
	if first.Type != "text" || strings.TrimSpace(first.Text) == "" {
		return ClassifiedMessage{}, false
	}

	return ClassifiedMessage{
		Timestamp: ts,
		Type:      "assistant",
		Content:   first.Text,
		SessionID: raw.SessionID,
		UUID:      raw.UUID,
	}, true
}
