package ingest

import (
	"io"
	"os"
	"path/filepath"

	"github.com/convolog/convolog/internal/domain"
	"github.com/convolog/convolog/internal/adapters/jsonl"
	"github.com/rs/zerolog/log"
)

// FileResult is everything a single JSONL file yields: conversational
// messages for the query engine and usage samples for the accounting
// engine, read together in one pass over the file.
type FileResult struct {
	Messages []domain.Message
	Usage    []domain.UsageSample
}

// ReadFile opens path, classifying every line into a Message or a usage
// sample per §4.1. A malformed line is logged and skipped; an unreadable
// file yields an empty result and logs an error, per the non-fatal
// contract the cache layer depends on.
func ReadFile(path string, project domain.Project) FileResult {
	f, err := os.Open(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to open jsonl file")
		return FileResult{}
	}
	defer func() { _ = f.Close() }()

	filename := filepath.Base(path)
	classifier := NewClassifier()
	r := jsonl.NewReader(f, 0)

	var result FileResult
	for {
		line, err := r.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			log.Error().Err(err).Str("path", path).Msg("failed to read jsonl line")
			break
		}
		if line.TooLong {
			log.Warn().Str("path", path).Int("line", line.Num).Msg("skipping oversized jsonl line")
			continue
		}
		if len(line.Data) == 0 {
			continue
		}

		raw, parseErr := parseRaw(line.Data)
		if parseErr != nil {
			log.Warn().Err(parseErr).Str("path", path).Int("line", line.Num).Msg("skipping malformed jsonl line")
			continue
		}

		if classified, ok := classifier.Classify(raw); ok {
			result.Messages = append(result.Messages, domain.Message{
				Timestamp:             classified.Timestamp,
				Type:                  domain.MessageType(classified.Type),
				Content:               classified.Content,
				SessionID:             classified.SessionID,
				UUID:                  classified.UUID,
				Filename:              filename,
				Project:               project,
				ContinuedFromUUID:     classified.ContinuedFromUUID,
				IsContinuationSession: classified.IsContinuationSession,
			})
		}

		if sample, ok := ExtractUsage(raw); ok {
			result.Usage = append(result.Usage, domain.UsageSample{
				Timestamp:           sample.Timestamp,
				Model:               sample.Model,
				InputTokens:         sample.InputTokens,
				OutputTokens:        sample.OutputTokens,
				CacheCreationTokens: sample.CacheCreationTokens,
				CacheReadTokens:     sample.CacheReadTokens,
			})
		}
	}

	return result
}
