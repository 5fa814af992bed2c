package usage

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/convolog/convolog/internal/cache"
	"github.com/convolog/convolog/internal/domain"
	"github.com/convolog/convolog/internal/project"
	"github.com/rs/zerolog/log"
)

// sessionBlockHoursUTC are the fixed 5-hour block boundaries in UTC (§4.9).
var sessionBlockHoursUTC = []int{0, 4, 9, 14, 19}

// CacheTTL is the result cache's time-to-live (§4.9).
const CacheTTL = 300 * time.Second

// estimatedWeeklyTokenBudget is the empirically-chosen token budget used to
// estimate a percentage for the hour-ranged weekly horizons, clearly
// flagged as an estimate in the response (§4.9).
const estimatedWeeklyTokenBudget = 4_200_000

// Engine computes session and weekly usage reports from the same JSONL
// corpus the query engine reads, independent of the conversational
// classification path.
type Engine struct {
	registry *project.Registry
	files    *cache.FileCache

	plan    PlanType
	limits  PlanLimits
	factors CorrectionFactors
	models  []string

	displayLocation *time.Location

	now func() time.Time

	mu              sync.Mutex
	cached          *Report
	cacheBlockStart time.Time
	cacheStamp      time.Time
}

// NewEngine creates an Engine. displayLocation is used only for boundary
// labeling (§4.9); all arithmetic is UTC-anchored.
func NewEngine(reg *project.Registry, files *cache.FileCache, plan PlanType, factors CorrectionFactors, models []string, displayLocation *time.Location) *Engine {
	limits, ok := planLimits[plan]
	if !ok {
		limits = planLimits[PlanPro]
		plan = PlanPro
	}
	if len(models) == 0 {
		models = DefaultModelSubstrings
	}
	if displayLocation == nil {
		displayLocation = time.UTC
	}
	return &Engine{
		registry:        reg,
		files:           files,
		plan:            plan,
		limits:          limits,
		factors:         factors,
		models:          models,
		displayLocation: displayLocation,
		now:             time.Now,
	}
}

// GetUsage computes (or returns cached) the usage report as of the
// engine's current time. The call never returns a Go error; catastrophic
// failures are wrapped into the response envelope (§7).
func (e *Engine) GetUsage(ctx context.Context) *Report {
	now := e.now().UTC()
	blockStart, blockEnd := sessionBlockBounds(now)

	e.mu.Lock()
	if e.cached != nil && e.cacheBlockStart.Equal(blockStart) && now.Sub(e.cacheStamp) < CacheTTL {
		cached := e.cached
		e.mu.Unlock()
		return cached
	}
	e.mu.Unlock()

	samples, err := e.loadSamples(ctx)
	if err != nil {
		return &Report{Available: false, Error: err.Error()}
	}

	report := e.buildReport(samples, now, blockStart, blockEnd)

	e.mu.Lock()
	e.cached = report
	e.cacheBlockStart = blockStart
	e.cacheStamp = now
	e.mu.Unlock()

	return report
}

// loadSamples gathers every usage sample across every known project. A
// missing projects directory or an unreadable file contributes no samples
// rather than failing the call (§4.9 Failure modes).
func (e *Engine) loadSamples(ctx context.Context) ([]domain.UsageSample, error) {
	projects, err := e.registry.ListProjects()
	if err != nil {
		return nil, err
	}

	var all []domain.UsageSample
	for _, p := range projects {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		files, err := project.JSONLFiles(p.Path)
		if err != nil {
			log.Error().Err(err).Str("project_id", p.ID).Msg("failed to enumerate project files for usage scan")
			continue
		}
		for _, f := range files {
			all = append(all, e.files.Get(f, p).Usage...)
		}
	}
	return all, nil
}

// buildReport assembles the full response from the gathered samples.
func (e *Engine) buildReport(samples []domain.UsageSample, now, blockStart, blockEnd time.Time) *Report {
	session := e.sessionHorizon(samples, now, blockStart, blockEnd)

	weekStart := now.Add(-7 * 24 * time.Hour)
	weeklyAll := e.weeklyHorizon(samples, now, weekStart, now, "", e.factors.WeeklyAll, estimatedWeeklyTokenBudget)

	perModel := make(map[string]Horizon, len(e.models))
	for _, model := range e.models {
		perModel[model] = e.weeklyHorizon(samples, now, weekStart, now, model, e.factors.WeeklyPerModel, estimatedWeeklyTokenBudget)
	}

	return &Report{
		Available:      true,
		PlanType:       e.plan,
		Limits:         e.limits,
		CurrentSession: session,
		WeeklyAll:      weeklyAll,
		WeeklyPerModel: perModel,
	}
}

func (e *Engine) sessionHorizon(samples []domain.UsageSample, now, start, end time.Time) Horizon {
	usageSum, entries := sumUsage(samples, start, end, "")

	percentage := percentageUsed(usageSum.TotalTokens, e.limits.SessionTokens)
	correctedTokens := applyCorrection(float64(usageSum.TotalTokens), e.factors.Session)
	correctedPct := applyCorrection(percentage, e.factors.Session)

	return Horizon{
		StartTime:            start,
		EndTime:              end,
		ResetTime:            end,
		TimeRemainingMinutes: minutesUntil(now, end),
		Usage:                usageSum,
		Entries:              entries,
		LimitTokens:          e.limits.SessionTokens,
		PercentageUsed:       percentage,
		Raw:                  RawCorrected{Tokens: float64(usageSum.TotalTokens), Percentage: percentage},
		Corrected:            RawCorrected{Tokens: correctedTokens, Percentage: correctedPct},
		CorrectionFactor:     e.factors.Session,
	}
}

func (e *Engine) weeklyHorizon(samples []domain.UsageSample, now, start, end time.Time, modelSubstring string, factor float64, estimatedBudget int) Horizon {
	usageSum, entries := sumUsage(samples, start, end, modelSubstring)

	percentage := percentageUsed(usageSum.TotalTokens, estimatedBudget)
	correctedTokens := applyCorrection(float64(usageSum.TotalTokens), factor)
	correctedPct := applyCorrection(percentage, factor)

	return Horizon{
		StartTime:            start,
		EndTime:              end,
		ResetTime:            end.Add(7 * 24 * time.Hour),
		TimeRemainingMinutes: minutesUntil(now, end.Add(7*24*time.Hour)),
		Usage:                usageSum,
		Entries:              entries,
		LimitHoursSonnet:     e.limits.Weekly.Sonnet,
		LimitHoursOpus:       e.limits.Weekly.Opus,
		PercentageUsed:       percentage,
		PercentageIsEstimate: true,
		Raw:                  RawCorrected{Tokens: float64(usageSum.TotalTokens), Percentage: percentage},
		Corrected:            RawCorrected{Tokens: correctedTokens, Percentage: correctedPct},
		CorrectionFactor:     factor,
	}
}

// sessionBlockBounds returns the [start, end) UTC bounds of the fixed
// 5-hour block containing now (§4.9). The 19:00 block wraps past midnight.
func sessionBlockBounds(now time.Time) (time.Time, time.Time) {
	u := now.UTC()
	hour := u.Hour()

	var startHour, endHour int
	switch {
	case hour < 4:
		startHour, endHour = 0, 4
	case hour < 9:
		startHour, endHour = 4, 9
	case hour < 14:
		startHour, endHour = 9, 14
	case hour < 19:
		startHour, endHour = 14, 19
	default:
		startHour, endHour = 19, 0
	}

	start := time.Date(u.Year(), u.Month(), u.Day(), startHour, 0, 0, 0, time.UTC)
	var end time.Time
	if endHour == 0 {
		next := start.AddDate(0, 0, 1)
		end = time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		end = time.Date(u.Year(), u.Month(), u.Day(), endHour, 0, 0, 0, time.UTC)
	}
	return start, end
}

// sumUsage aggregates samples whose timestamp falls in [from, to) and,
// when modelSubstring is non-empty, whose model contains it
// case-insensitively.
func sumUsage(samples []domain.UsageSample, from, to time.Time, modelSubstring string) (TokenUsage, int) {
	var sum TokenUsage
	count := 0
	lower := strings.ToLower(modelSubstring)

	for _, s := range samples {
		if s.Timestamp.Before(from) || !s.Timestamp.Before(to) {
			continue
		}
		if modelSubstring != "" && !strings.Contains(strings.ToLower(s.Model), lower) {
			continue
		}
		sum.InputTokens += s.InputTokens
		sum.OutputTokens += s.OutputTokens
		sum.CacheCreationTokens += s.CacheCreationTokens
		sum.CacheReadTokens += s.CacheReadTokens
		count++
	}
	sum.TotalTokens = sum.InputTokens + sum.OutputTokens
	return sum, count
}

// percentageUsed computes a capped, one-decimal percentage; a non-positive
// limit reports 0 rather than dividing by zero.
func percentageUsed(used, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	pct := (float64(used) / float64(limit)) * 100
	return math.Min(roundTo1(pct), 100.0)
}

// applyCorrection implements corrected = round(raw * factor, 1) (§4.9).
func applyCorrection(value, factor float64) float64 {
	return roundTo1(value * factor)
}

func roundTo1(v float64) float64 {
	return math.Round(v*10) / 10
}

func minutesUntil(now, target time.Time) float64 {
	d := target.Sub(now).Minutes()
	if d < 0 {
		return 0
	}
	return d
}
