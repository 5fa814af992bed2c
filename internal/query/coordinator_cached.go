package query

import (
	"context"
	"sort"

	"github.com/convolog/convolog/internal/cache"
	"github.com/convolog/convolog/internal/domain"
	"github.com/convolog/convolog/internal/project"
	"github.com/rs/zerolog/log"
)

// CachedCoordinator serves GetConversations by loading whole projects from
// the project cache, then sorting, filtering, grouping, and paginating in
// memory (§4.8's alternative non-streaming path). It additionally carries
// the session-continuity date-filter extension that the streaming
// coordinator deliberately omits.
type CachedCoordinator struct {
	registry registry
	projects *cache.ProjectCache
}

// NewCachedCoordinator creates a CachedCoordinator over reg and projects.
func NewCachedCoordinator(reg *project.Registry, projects *cache.ProjectCache) *CachedCoordinator {
	return &CachedCoordinator{registry: reg, projects: projects}
}

// GetConversations implements the cached, session-continuity-aware flow.
func (c *CachedCoordinator) GetConversations(ctx context.Context, req Request) (*Page, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req = req.normalized()

	projects, err := resolveProjects(c.registry, req.Projects)
	if err != nil {
		return nil, err
	}

	var all []domain.Message
	for _, p := range projects {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		msgs, err := c.projects.Get(ctx, p)
		if err != nil {
			log.Error().Err(err).Str("project_id", p.ID).Msg("failed to load project for cached query")
			continue
		}
		all = append(all, msgs...)
	}

	sort.SliceStable(all, func(i, j int) bool { return lessMessage(all[i], all[j]) })

	dateFiltered := applyDateFilterWithContinuity(all, req)

	var buffer []domain.Message
	for _, m := range dateFiltered {
		if !req.ShowRelatedThreads && req.Keyword != "" && !containsKeyword(m.Content, req.Keyword) {
			continue
		}
		buffer = append(buffer, m)
	}

	return buildPage(buffer, req), nil
}

// lessMessage orders two messages the same way the streaming merger does:
// ascending timestamp, then lexicographic (project_id, filename). Using the
// identical tie-break keeps the two coordinators in bit-exact agreement.
func lessMessage(a, b domain.Message) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	if a.Project.ID != b.Project.ID {
		return a.Project.ID < b.Project.ID
	}
	return a.Filename < b.Filename
}

// applyDateFilterWithContinuity implements §4.8's session-continuity
// date-filter extension: after marking messages in the requested civil-date
// range, for every session whose first in-range message is an assistant
// message, walk backwards within that session and include messages up to
// and including the first user message found (or until the session
// boundary), even though they fall outside the requested range.
func applyDateFilterWithContinuity(all []domain.Message, req Request) []domain.Message {
	if req.StartDate == nil && req.EndDate == nil {
		return all
	}

	inRange := make([]bool, len(all))
	for i, m := range all {
		inRange[i] = withinDateRange(m.Timestamp, req.Location, req.StartDate, req.EndDate)
	}

	included := make([]bool, len(all))
	copy(included, inRange)

	firstInRangeIdx := make(map[string]int, len(all))
	for i, m := range all {
		if !inRange[i] {
			continue
		}
		if _, ok := firstInRangeIdx[m.SessionID]; !ok {
			firstInRangeIdx[m.SessionID] = i
		}
	}

	for sessionID, idx := range firstInRangeIdx {
		if all[idx].Type != domain.MessageTypeAssistant {
			continue
		}
		for j := idx - 1; j >= 0; j-- {
			if all[j].SessionID != sessionID {
				break
			}
			included[j] = true
			if all[j].Type == domain.MessageTypeUser {
				break
			}
		}
	}

	out := make([]domain.Message, 0, len(all))
	for i, m := range all {
		if included[i] {
			out = append(out, m)
		}
	}
	return out
}
