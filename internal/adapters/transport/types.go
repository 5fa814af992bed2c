package transport

import (
	"time"

	"github.com/convolog/convolog/internal/domain"
	"github.com/convolog/convolog/internal/query"
	"github.com/convolog/convolog/internal/usage"
)

// ProjectResponse is the JSON shape of one ListProjects() entry (§6).
type ProjectResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Path        string `json:"path"`
}

func newProjectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse{ID: p.ID, DisplayName: p.DisplayName, Path: p.Path}
}

// MessageResponse is one Message as returned over the wire, decorated with
// whatever keyword-search annotation the grouper attached (§9: annotations
// live in response values, never in the cached Message itself).
type MessageResponse struct {
	Timestamp             time.Time `json:"timestamp"`
	Type                  string    `json:"type"`
	Content               string    `json:"content"`
	SessionID             string    `json:"session_id"`
	UUID                  string    `json:"uuid,omitempty"`
	Filename              string    `json:"filename"`
	ProjectID             string    `json:"project_id"`
	ProjectDisplayName    string    `json:"project_display_name"`
	ContinuedFromUUID     string    `json:"continued_from_uuid,omitempty"`
	ParentSessionID       string    `json:"parent_session_id,omitempty"`
	IsContinuationSession bool      `json:"is_continuation_session,omitempty"`
	IsSearchMatch         bool      `json:"is_search_match,omitempty"`
	SearchKeyword         string    `json:"search_keyword,omitempty"`
}

func newMessageResponse(m domain.AnnotatedMessage) MessageResponse {
	return MessageResponse{
		Timestamp:             m.Timestamp,
		Type:                  string(m.Type),
		Content:               m.Content,
		SessionID:             m.SessionID,
		UUID:                  m.UUID,
		Filename:              m.Filename,
		ProjectID:             m.Project.ID,
		ProjectDisplayName:    m.Project.DisplayName,
		ContinuedFromUUID:     m.ContinuedFromUUID,
		ParentSessionID:       m.ParentSessionID,
		IsContinuationSession: m.IsContinuationSession,
		IsSearchMatch:         m.IsSearchMatch,
		SearchKeyword:         m.SearchKeyword,
	}
}

// StatsResponse carries the response's derived aggregate counters (§6).
type StatsResponse struct {
	TotalThreads      int            `json:"total_threads"`
	TotalMessages     int            `json:"total_messages"`
	Projects          int            `json:"projects"`
	DailyThreadCounts map[string]int `json:"daily_thread_counts"`
}

// PageResponse is the query coordinator's response envelope (§6).
type PageResponse struct {
	Conversations    [][]MessageResponse `json:"conversations"`
	TotalThreads     int                 `json:"total_threads"`
	TotalMessages    int                 `json:"total_messages"`
	ActualThreads    int                 `json:"actual_threads"`
	ActualMessages   int                 `json:"actual_messages"`
	Offset           int                 `json:"offset"`
	Limit            int                 `json:"limit"`
	SearchMatchCount int                 `json:"search_match_count"`
	Stats            StatsResponse       `json:"stats"`
}

func newPageResponse(p *query.Page) PageResponse {
	conversations := make([][]MessageResponse, len(p.Conversations))
	for i, g := range p.Conversations {
		msgs := make([]MessageResponse, len(g.Messages))
		for j, m := range g.Messages {
			msgs[j] = newMessageResponse(m)
		}
		conversations[i] = msgs
	}
	return PageResponse{
		Conversations:    conversations,
		TotalThreads:     p.TotalThreads,
		TotalMessages:    p.TotalMessages,
		ActualThreads:    p.ActualThreads,
		ActualMessages:   p.ActualMessages,
		Offset:           p.Offset,
		Limit:            p.Limit,
		SearchMatchCount: p.SearchMatchCount,
		Stats: StatsResponse{
			TotalThreads:      p.Stats.TotalThreads,
			TotalMessages:     p.Stats.TotalMessages,
			Projects:          p.Stats.ProjectCount,
			DailyThreadCounts: p.Stats.DailyThreadCounts,
		},
	}
}

// RawCorrectedResponse pairs a raw figure with its corrected counterpart
// (§4.9).
type RawCorrectedResponse struct {
	Tokens     float64 `json:"tokens"`
	Percentage float64 `json:"percentage"`
}

// HorizonResponse is one usage-report window: the current session block or
// a rolling weekly window (§6).
type HorizonResponse struct {
	StartTime            time.Time             `json:"start_time"`
	EndTime               time.Time             `json:"end_time"`
	ResetTime             time.Time             `json:"reset_time"`
	TimeRemainingMinutes  float64               `json:"time_remaining_minutes"`
	Usage                 TokenUsageResponse    `json:"usage"`
	Entries               int                   `json:"entries"`
	LimitTokens           int                   `json:"limit_tokens,omitempty"`
	LimitHoursSonnet      string                `json:"limit_hours_sonnet,omitempty"`
	LimitHoursOpus        string                `json:"limit_hours_opus,omitempty"`
	PercentageUsed        float64               `json:"percentage_used"`
	PercentageIsEstimate  bool                  `json:"percentage_is_estimate,omitempty"`
	Raw                   RawCorrectedResponse  `json:"raw"`
	Corrected             RawCorrectedResponse  `json:"corrected"`
	CorrectionFactor      float64               `json:"correction_factor"`
}

// TokenUsageResponse is the raw token counters for one horizon (§3).
type TokenUsageResponse struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_tokens"`
	CacheReadTokens     int `json:"cache_read_tokens"`
	TotalTokens         int `json:"total_tokens"`
}

func newHorizonResponse(h usage.Horizon) HorizonResponse {
	return HorizonResponse{
		StartTime:            h.StartTime,
		EndTime:               h.EndTime,
		ResetTime:             h.ResetTime,
		TimeRemainingMinutes:  h.TimeRemainingMinutes,
		Usage: TokenUsageResponse{
			InputTokens:         h.Usage.InputTokens,
			OutputTokens:        h.Usage.OutputTokens,
			CacheCreationTokens: h.Usage.CacheCreationTokens,
			CacheReadTokens:     h.Usage.CacheReadTokens,
			TotalTokens:         h.Usage.TotalTokens,
		},
		Entries:              h.Entries,
		LimitTokens:           h.LimitTokens,
		LimitHoursSonnet:      h.LimitHoursSonnet,
		LimitHoursOpus:        h.LimitHoursOpus,
		PercentageUsed:        h.PercentageUsed,
		PercentageIsEstimate:  h.PercentageIsEstimate,
		Raw:                   RawCorrectedResponse{Tokens: h.Raw.Tokens, Percentage: h.Raw.Percentage},
		Corrected:             RawCorrectedResponse{Tokens: h.Corrected.Tokens, Percentage: h.Corrected.Percentage},
		CorrectionFactor:      h.CorrectionFactor,
	}
}

// PlanLimitsResponse is the plan's session token ceiling and weekly
// hour-range allowances, reported as-is per §4.9 (never a false-precision
// token figure for the weekly side).
type PlanLimitsResponse struct {
	SessionTokens    int    `json:"session_tokens"`
	WeeklyHoursSonnet string `json:"weekly_hours_sonnet"`
	WeeklyHoursOpus   string `json:"weekly_hours_opus"`
}

// UsageResponse is the usage accounting engine's response envelope (§6).
type UsageResponse struct {
	Available      bool                       `json:"available"`
	PlanType       string                     `json:"plan_type,omitempty"`
	Limits         PlanLimitsResponse         `json:"limits"`
	CurrentSession HorizonResponse            `json:"current_session"`
	WeeklyAll      HorizonResponse            `json:"weekly_all"`
	WeeklyPerModel map[string]HorizonResponse `json:"weekly_per_model"`
	Error          string                     `json:"error,omitempty"`
}

func newUsageResponse(r *usage.Report) UsageResponse {
	resp := UsageResponse{
		Available: r.Available,
		PlanType:  string(r.PlanType),
		Error:     r.Error,
	}
	if !r.Available {
		return resp
	}
	resp.Limits = PlanLimitsResponse{
		SessionTokens:     r.Limits.SessionTokens,
		WeeklyHoursSonnet: r.Limits.Weekly.Sonnet,
		WeeklyHoursOpus:   r.Limits.Weekly.Opus,
	}
	resp.CurrentSession = newHorizonResponse(r.CurrentSession)
	resp.WeeklyAll = newHorizonResponse(r.WeeklyAll)
	resp.WeeklyPerModel = make(map[string]HorizonResponse, len(r.WeeklyPerModel))
	for model, h := range r.WeeklyPerModel {
		resp.WeeklyPerModel[model] = newHorizonResponse(h)
	}
	return resp
}

// ErrorResponse is the JSON body sent for a caller-facing validation
// failure (§7).
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
