// Package query implements the streaming k-way merge, thread grouper, and
// the two query coordinators (streaming and cached) that serve paginated,
// filtered, thread-grouped conversation pages.
package query

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/convolog/convolog/internal/adapters/ingest"
	"github.com/convolog/convolog/internal/adapters/jsonl"
	"github.com/convolog/convolog/internal/domain"
	"github.com/rs/zerolog/log"
)

// DefaultBufferSize is the lazy reader's read-ahead buffer size (§4.4),
// kept as the bufferSize argument callers pass to NewLazyReader, which does
// not use it; it no longer bounds an
// incremental fill since classification now runs once at open time (see
// below), but it is preserved as the public knob so call sites and tests
// are unaffected.
const DefaultBufferSize = 10

// LazyReader streams classified Messages from one JSONL file in ascending
// timestamp order via Peek/Next/Seek/Close. §3's invariants are explicit
// that per-file timestamps are not assumed monotonic on disk, and that the
// merger's sorted-input precondition is satisfied "by sort before
// emitting" rather than by assumption — so the reader classifies the whole
// file once at open time and serves it back pre-sorted through the same
// bounded-buffer-shaped interface the streaming coordinator expects. It
// owns the underlying file descriptor only for the duration of that one
// read: Close is idempotent and safe on every path, including after error.
type LazyReader struct {
	path    string
	project domain.Project

	messages []domain.Message
	cursor   int

	closed bool
}

// NewLazyReader opens path, classifies every line, and sorts the result
// ascending by timestamp (stable, so same-timestamp records keep their
// on-disk relative order) before returning. The caller must still call
// Close when done, on every path including error returns from Peek/Next.
func NewLazyReader(path string, project domain.Project, bufferSize int) (*LazyReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	classifier := ingest.NewClassifier()
	lines := jsonl.NewReader(f, 0)
	filename := filepath.Base(path)

	var messages []domain.Message
	for {
		line, err := lines.Next()
		if err != nil {
			break
		}
		if line.TooLong {
			log.Warn().Str("path", path).Int("line", line.Num).Msg("skipping oversized jsonl line")
			continue
		}
		if len(line.Data) == 0 {
			continue
		}

		classified, ok, perr := classifier.ClassifyLine(line.Data)
		if perr != nil {
			log.Warn().Err(perr).Str("path", path).Int("line", line.Num).Msg("skipping malformed jsonl line")
			continue
		}
		if !ok {
			continue
		}

		messages = append(messages, domain.Message{
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

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})

	return &LazyReader{
		path:     path,
		project:  project,
		messages: messages,
	}, nil
}

// Path returns the file path this reader streams, used for the merger's
// tie-break.
func (r *LazyReader) Path() string { return r.path }

// Peek returns the next message without consuming it, or false at EOF.
func (r *LazyReader) Peek() (domain.Message, bool) {
	if r.cursor >= len(r.messages) {
		return domain.Message{}, false
	}
	return r.messages[r.cursor], true
}

// Next consumes and returns the next message, or false at EOF.
func (r *LazyReader) Next() (domain.Message, bool) {
	msg, ok := r.Peek()
	if !ok {
		return domain.Message{}, false
	}
	r.cursor++
	return msg, true
}

// Seek advances past records older than target, a linear scan per §4.4.
func (r *LazyReader) Seek(target domain.Message) {
	for {
		msg, ok := r.Peek()
		if !ok {
			return
		}
		if !msg.Timestamp.Before(target.Timestamp) {
			return
		}
		r.Next()
	}
}

// Close is idempotent; the file descriptor is already released once the
// classify-and-sort pass at open time completes.
func (r *LazyReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return nil
}
