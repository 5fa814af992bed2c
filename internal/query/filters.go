package query

import (
	"strings"
	"time"

	"github.com/convolog/convolog/internal/domain"
)

// withinDateRange implements the date predicate (§4.6): the message's
// timestamp, converted to loc's civil date, must fall within [start, end]
// inclusive on whichever bound is configured. A nil bound admits everything
// on that side.
func withinDateRange(ts time.Time, loc *time.Location, start, end *time.Time) bool {
	local := ts.In(loc)
	y, m, d := local.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)

	if start != nil && day.Before(*start) {
		return false
	}
	if end != nil && day.After(*end) {
		return false
	}
	return true
}

// containsKeyword reports a case-insensitive substring match, the only
// keyword-matching strategy this system implements (§1 Non-goals: no
// full-text index).
func containsKeyword(content, keyword string) bool {
	if keyword == "" {
		return false
	}
	return strings.Contains(strings.ToLower(content), strings.ToLower(keyword))
}

// admitMessage applies the per-message filter stage during streaming: the
// date predicate always applies; the keyword predicate only excludes when
// show_related_threads is false (otherwise thread-level inclusion is
// decided by the grouper after grouping, per §4.6).
func admitMessage(msg domain.Message, req Request) bool {
	if !withinDateRange(msg.Timestamp, req.Location, req.StartDate, req.EndDate) {
		return false
	}
	if !req.ShowRelatedThreads && req.Keyword != "" && !containsKeyword(msg.Content, req.Keyword) {
		return false
	}
	return true
}
