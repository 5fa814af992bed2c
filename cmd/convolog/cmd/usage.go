package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/convolog/convolog/internal/cache"
	"github.com/convolog/convolog/internal/project"
	"github.com/convolog/convolog/internal/usage"
	"github.com/spf13/cobra"
)

var usageJSON bool

// usageCmd prints the current session block and rolling weekly usage report.
var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Print the current token-usage report",
	RunE:  runUsage,
}

func init() {
	usageCmd.Flags().BoolVar(&usageJSON, "json", false, "print the raw JSON report instead of a formatted summary")
}

func runUsage(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg := project.NewRegistry(cfg.ProjectsRoot, cfg.AllowedProjects, nil)
	files := cache.NewFileCache()
	factors := usage.CorrectionFactors{
		Session:        cfg.CorrectionSession,
		WeeklyAll:      cfg.CorrectionWeekly,
		WeeklyPerModel: cfg.CorrectionPerModel,
	}
	engine := usage.NewEngine(reg, files, usage.PlanType(cfg.PlanType), factors, usage.DefaultModelSubstrings, cfg.Location())

	report := engine.GetUsage(context.Background())

	if usageJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if !report.Available {
		fmt.Printf("usage unavailable: %s\n", report.Error)
		return nil
	}

	fmt.Printf("Plan: %s\n", report.PlanType)
	fmt.Println()
	fmt.Println("Current session block:")
	printHorizon(report.CurrentSession)
	fmt.Println()
	fmt.Println("Weekly (all models):")
	printHorizon(report.WeeklyAll)
	for model, h := range report.WeeklyPerModel {
		fmt.Println()
		fmt.Printf("Weekly (%s):\n", model)
		printHorizon(h)
	}
	return nil
}

func printHorizon(h usage.Horizon) {
	fmt.Printf("  window:       %s -> %s\n", h.StartTime.Format("2006-01-02 15:04 MST"), h.EndTime.Format("2006-01-02 15:04 MST"))
	fmt.Printf("  resets:       %s (%.0f min)\n", h.ResetTime.Format("2006-01-02 15:04 MST"), h.TimeRemainingMinutes)
	fmt.Printf("  entries:      %d\n", h.Entries)
	fmt.Printf("  raw tokens:   %.0f (%.1f%%)\n", h.Raw.Tokens, h.Raw.Percentage)
	fmt.Printf("  corrected:    %.0f (%.1f%%)\n", h.Corrected.Tokens, h.Corrected.Percentage)
	if h.LimitTokens > 0 {
		fmt.Printf("  limit:        %d tokens\n", h.LimitTokens)
	}
	if h.LimitHoursSonnet != "" || h.LimitHoursOpus != "" {
		fmt.Printf("  limit:        sonnet %s h/wk, opus %s h/wk (estimate)\n", h.LimitHoursSonnet, h.LimitHoursOpus)
	}
}
