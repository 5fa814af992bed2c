// Package usage implements the rolling token-usage accounting engine:
// fixed 5-hour session blocks, rolling 7-day weekly windows (overall and
// per-model), plan limits, correction factors, and a TTL result cache.
package usage

// PlanType identifies a subscription tier.
type PlanType string

const (
	PlanPro    PlanType = "pro"
	PlanMax5x  PlanType = "max_5x"
	PlanMax20x PlanType = "max_20x"
)

// WeeklyHourRange carries the plan's weekly usage allowance as a
// descriptive hour range, never converted to a false-precision token
// figure (§4.9).
type WeeklyHourRange struct {
	Sonnet string
	Opus   string
}

// PlanLimits is a plan tier's session token ceiling plus its weekly
// hour-range allowances.
type PlanLimits struct {
	SessionTokens int
	Weekly        WeeklyHourRange
}

// planLimits is the fixed table of the three supported tiers, supplemented
// from the original tool's configuration (§4.9).
var planLimits = map[PlanType]PlanLimits{
	PlanPro: {
		SessionTokens: 44_000,
		Weekly:        WeeklyHourRange{Sonnet: "40-80", Opus: "0"},
	},
	PlanMax5x: {
		SessionTokens: 88_000,
		Weekly:        WeeklyHourRange{Sonnet: "140-280", Opus: "15-35"},
	},
	PlanMax20x: {
		SessionTokens: 220_000,
		Weekly:        WeeklyHourRange{Sonnet: "240-480", Opus: "24-40"},
	},
}

// LimitsFor returns the limits for plan, or false if plan is unrecognized.
func LimitsFor(plan PlanType) (PlanLimits, bool) {
	l, ok := planLimits[plan]
	return l, ok
}

// CorrectionFactors are the three configurable multipliers that transform
// raw counters into "corrected" reported values (§4.9).
type CorrectionFactors struct {
	Session        float64
	WeeklyAll      float64
	WeeklyPerModel float64
}

// DefaultCorrectionFactors carries the original tool's empirically-tuned
// defaults.
var DefaultCorrectionFactors = CorrectionFactors{
	Session:        0.24,
	WeeklyAll:      0.20,
	WeeklyPerModel: 0.18,
}

// DefaultModelSubstrings is the default set of per-model weekly horizons
// reported when configuration supplies none (§4.9, §9 resolved Open
// Question).
var DefaultModelSubstrings = []string{"sonnet", "opus"}
