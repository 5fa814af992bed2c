package query

import (
	"context"

	"github.com/convolog/convolog/internal/domain"
	"github.com/convolog/convolog/internal/project"
	"github.com/rs/zerolog/log"
)

// StreamingCoordinator serves GetConversations via the lazy k-way merge and
// grouper with early termination (§4.8), bypassing the project cache
// entirely: every call opens fresh lazy readers over the current corpus.
type StreamingCoordinator struct {
	registry registry
}

// NewStreamingCoordinator creates a StreamingCoordinator over reg.
func NewStreamingCoordinator(reg *project.Registry) *StreamingCoordinator {
	return &StreamingCoordinator{registry: reg}
}

// GetConversations implements §4.8's streaming flow.
func (c *StreamingCoordinator) GetConversations(ctx context.Context, req Request) (*Page, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.normalized()

	projects, err := resolveProjects(c.registry, req.Projects)
	if err != nil {
		return nil, err
	}

	readers, err := openReaders(projects)
	if err != nil {
		return nil, err
	}
	merger := NewMerger(readers)
	defer func() { _ = merger.Close() }()

	target := earlyTerminationTarget(req.Offset, req.Limit)

	var buffer []domain.Message
	sinceCheck := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		msg, ok := merger.NextMessage()
		if !ok {
			break
		}
		if !admitMessage(msg, req) {
			continue
		}
		buffer = append(buffer, msg)
		sinceCheck++

		if sinceCheck >= CheckInterval {
			sinceCheck = 0
			if len(groupMessages(buffer)) >= target {
				break
			}
		}
	}

	return buildPage(buffer, req), nil
}

// openReaders opens one LazyReader per *.jsonl file across projects. A
// project whose files cannot be enumerated, or a file that fails to open,
// is logged and skipped; the returned error is always nil.
func openReaders(projects []domain.Project) ([]*LazyReader, error) {
	var readers []*LazyReader
	for _, p := range projects {
		files, err := project.JSONLFiles(p.Path)
		if err != nil {
			log.Error().Err(err).Str("project_id", p.ID).Msg("failed to enumerate project files")
			continue
		}
		for _, f := range files {
			r, err := NewLazyReader(f, p, DefaultBufferSize)
			if err != nil {
				log.Error().Err(err).Str("path", f).Msg("failed to open jsonl file")
				continue
			}
			readers = append(readers, r)
		}
	}
	return readers, nil
}

// buildPage runs the final grouping pass, applies keyword thread-inclusion,
// sorts, and paginates a fully buffered (or cache-loaded) message slice.
// Shared by both coordinators so their responses agree bit-exact on the
// common inputs (§9 resolved Open Question).
func buildPage(buffer []domain.Message, req Request) *Page {
	groups := groupMessages(buffer)

	searchMatchCount := 0
	if req.Keyword != "" {
		if req.ShowRelatedThreads {
			groups, searchMatchCount = filterKeywordThreads(groups, req.Keyword)
		} else {
			groups, searchMatchCount = annotateAllMatches(groups, req.Keyword)
		}
	}

	stats := buildStats(groups, req.Location)

	if req.SortOrder == SortDescending {
		reverseGroups(groups)
	}

	totalThreads := len(groups)
	totalMessages := len(buffer)

	start := req.Offset
	if start > totalThreads {
		start = totalThreads
	}
	end := start + req.Limit
	if end > totalThreads {
		end = totalThreads
	}
	page := groups[start:end]

	actualMessages := 0
	for _, g := range page {
		actualMessages += len(g.Messages)
	}

	return &Page{
		Conversations:    page,
		TotalThreads:     totalThreads,
		TotalMessages:    totalMessages,
		ActualThreads:    len(page),
		ActualMessages:   actualMessages,
		Offset:           req.Offset,
		Limit:            req.Limit,
		SearchMatchCount: searchMatchCount,
		Stats:            stats,
	}
}
