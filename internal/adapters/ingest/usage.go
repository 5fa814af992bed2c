package ingest

import "time"

// UsageSample is the classifier's raw-terms view of one assistant record's
// token-usage block, converted to domain terms by the caller.
type UsageSample struct {
	Timestamp           time.Time
	Model               string
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
}

// ExtractUsage pulls a usage sample from an assistant record, independent of
// whether the same record is also emitted as a conversational Message: the
// usage engine counts every assistant record carrying a usage block, even
// ones the conversational classifier drops (e.g. a tool_use-only turn).
func ExtractUsage(raw rawRecord) (UsageSample, bool) {
	if raw.Type != "assistant" {
		return UsageSample{}, false
	}
	u := raw.usage()
	if u == nil {
		return UsageSample{}, false
	}

	ts, err := time.Parse(time.RFC3339, raw.Timestamp)
	if err != nil {
		return UsageSample{}, false
	}

	model := raw.Message.Model
	if model == "" {
		model = u.Model
	}

	return UsageSample{
		Timestamp:           ts,
		Model:               model,
		InputTokens:         u.InputTokens,
		OutputTokens:        u.OutputTokens,
		CacheCreationTokens: u.CacheCreationInputTokens,
		CacheReadTokens:     u.CacheReadInputTokens,
	}, true
}
