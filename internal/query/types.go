package query

import (
	"math"
	"time"

	"github.com/convolog/convolog/internal/domain"
)

// SortOrder controls the direction thread groups are returned in.
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// DefaultLimit, MinLimit and MaxLimit bound the page size per §6.
const (
	DefaultLimit = 15
	MinLimit     = 1
	MaxLimit     = 1000
)

// CheckInterval and SafetyMargin parameterize the grouper's early
// termination (§4.7).
const (
	CheckInterval = 50
	SafetyMargin  = 1.5
)

// Request is the coordinator's input: project selection, date/keyword
// filters, sort direction, and pagination.
type Request struct {
	Projects           []string
	StartDate          *time.Time // civil date at midnight in Location, inclusive
	EndDate            *time.Time // civil date at midnight in Location, inclusive
	Location           *time.Location
	Keyword            string
	ShowRelatedThreads bool
	SortOrder          SortOrder
	Offset             int
	Limit              int
}

// Validate rejects an out-of-range request before any query work starts.
func (r *Request) Validate() error {
	if r.Offset < 0 {
		return domain.NewValidationError("offset", "must be >= 0")
	}
	if r.Limit < MinLimit || r.Limit > MaxLimit {
		return domain.NewValidationError("limit", "must be in [1, 1000]")
	}
	if r.SortOrder != SortAscending && r.SortOrder != SortDescending {
		return domain.NewValidationError("sort_order", "must be asc or desc")
	}
	return nil
}

// normalized returns a copy of the request with defaults applied: limit
// defaults to DefaultLimit, sort order defaults to descending, location
// defaults to UTC.
func (r Request) normalized() Request {
	if r.Limit == 0 {
		r.Limit = DefaultLimit
	}
	if r.SortOrder == "" {
		r.SortOrder = SortDescending
	}
	if r.Location == nil {
		r.Location = time.UTC
	}
	return r
}

// earlyTerminationTarget is ceil((offset+limit) * SafetyMargin).
func earlyTerminationTarget(offset, limit int) int {
	return int(math.Ceil(float64(offset+limit) * SafetyMargin))
}

// Stats carries the response's derived aggregate counters.
type Stats struct {
	TotalThreads      int
	TotalMessages     int
	ProjectCount      int
	DailyThreadCounts map[string]int
}

// Page is the coordinator's response: a paginated, thread-grouped,
// filtered slice plus the counters and stats described in §6.
type Page struct {
	Conversations    []domain.ThreadGroup
	TotalThreads     int
	TotalMessages    int
	ActualThreads    int
	ActualMessages   int
	Offset           int
	Limit            int
	SearchMatchCount int
	Stats            Stats
}

// buildStats computes per-project and per-day counters over the full
// (unpaginated) group list, using each group's representative timestamp
// converted to loc for the daily bucket key.
func buildStats(groups []domain.ThreadGroup, loc *time.Location) Stats {
	stats := Stats{
		TotalThreads:      len(groups),
		DailyThreadCounts: make(map[string]int),
	}
	projects := make(map[string]struct{})
	for _, g := range groups {
		stats.TotalMessages += len(g.Messages)
		for _, m := range g.Messages {
			projects[m.Project.ID] = struct{}{}
		}
		key := g.RepresentativeTimestamp().In(loc).Format("2006-01-02")
		stats.DailyThreadCounts[key]++
	}
	stats.ProjectCount = len(projects)
	return stats
}
