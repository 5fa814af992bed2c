package config

import "fmt"

var recognizedPlans = map[string]struct{}{
	"pro":     {},
	"max_5x":  {},
	"max_20x": {},
}

// Validate rejects out-of-range configuration: an unrecognized plan
// identifier, non-positive correction factors, a bad watcher debounce, or
// an invalid server port (§1.1).
func Validate(cfg *Config) error {
	if _, ok := recognizedPlans[cfg.PlanType]; !ok {
		return fmt.Errorf("plan_type %q is not recognized (must be pro, max_5x, or max_20x)", cfg.PlanType)
	}
	if cfg.CorrectionSession <= 0 {
		return fmt.Errorf("correction_factor_session must be > 0")
	}
	if cfg.CorrectionWeekly <= 0 {
		return fmt.Errorf("correction_factor_weekly_all must be > 0")
	}
	if cfg.CorrectionPerModel <= 0 {
		return fmt.Errorf("correction_factor_weekly_per_model must be > 0")
	}
	if cfg.DisplayTimezone == "" {
		return fmt.Errorf("display_timezone cannot be empty")
	}
	if cfg.Watcher.DebounceMS < 0 {
		return fmt.Errorf("watcher.debounce_ms cannot be negative")
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	return nil
}
