package query

import (
	"strings"

	"github.com/convolog/convolog/internal/domain"
)

// groupMessages implements the grouping rule (§4.7): sweep in chronological
// order, starting a new group on every user message and appending
// everything else to the current group. A run of assistant messages with
// no preceding user message in this slice has no group to attach to and is
// dropped, per "a group with no user message ... is dropped" when no
// preceding group exists.
func groupMessages(msgs []domain.Message) []domain.ThreadGroup {
	var groups []domain.ThreadGroup
	var current *domain.ThreadGroup

	for _, m := range msgs {
		if m.Type == domain.MessageTypeUser {
			if current != nil && len(current.Messages) > 0 {
				groups = append(groups, *current)
			}
			current = &domain.ThreadGroup{Messages: []domain.AnnotatedMessage{{Message: m}}}
			continue
		}
		if current == nil {
			continue
		}
		current.Messages = append(current.Messages, domain.AnnotatedMessage{Message: m})
	}
	if current != nil && len(current.Messages) > 0 {
		groups = append(groups, *current)
	}
	return groups
}

// reverseGroups reverses group order in place, used for sort_order=desc.
// Intra-group order is never touched: it is always ascending.
func reverseGroups(groups []domain.ThreadGroup) {
	for i, j := 0, len(groups)-1; i < j; i, j = i+1, j-1 {
		groups[i], groups[j] = groups[j], groups[i]
	}
}

// annotateAllMatches is used when show_related_threads=false: every message
// reaching the grouper already passed the keyword predicate at stream time
// (§4.6), so every message in every group is a match.
func annotateAllMatches(groups []domain.ThreadGroup, keyword string) ([]domain.ThreadGroup, int) {
	count := 0
	out := make([]domain.ThreadGroup, len(groups))
	for gi, g := range groups {
		annotated := make([]domain.AnnotatedMessage, len(g.Messages))
		for i, m := range g.Messages {
			annotated[i] = domain.AnnotatedMessage{
				Message:       m.Message,
				IsSearchMatch: true,
				SearchKeyword: keyword,
			}
			count++
		}
		out[gi] = domain.ThreadGroup{Messages: annotated}
	}
	return out, count
}

// filterKeywordThreads implements keyword thread-inclusion (§4.7): keeps
// only groups containing at least one message matching keyword, and
// annotates every message of a kept group with its own match result.
// search_match_count totals is_search_match=true across kept groups only,
// page-agnostic (computed before pagination).
func filterKeywordThreads(groups []domain.ThreadGroup, keyword string) ([]domain.ThreadGroup, int) {
	if keyword == "" {
		return groups, 0
	}
	lower := strings.ToLower(keyword)

	kept := make([]domain.ThreadGroup, 0, len(groups))
	matchCount := 0
	for _, g := range groups {
		matched := false
		for _, m := range g.Messages {
			if strings.Contains(strings.ToLower(m.Content), lower) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		annotated := make([]domain.AnnotatedMessage, len(g.Messages))
		for i, m := range g.Messages {
			isMatch := strings.Contains(strings.ToLower(m.Content), lower)
			annotated[i] = domain.AnnotatedMessage{
				Message:       m.Message,
				IsSearchMatch: isMatch,
				SearchKeyword: keyword,
			}
			if isMatch {
				matchCount++
			}
		}
		kept = append(kept, domain.ThreadGroup{Messages: annotated})
	}
	return kept, matchCount
}
