package cmd

import (
	"fmt"

	"github.com/convolog/convolog/internal/project"
	"github.com/spf13/cobra"
)

// projectsCmd lists every project directory the configured root exposes.
var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List known projects under the configured projects root",
	RunE:  runProjects,
}

func runProjects(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg := project.NewRegistry(cfg.ProjectsRoot, cfg.AllowedProjects, nil)

	projects, err := reg.ListProjects()
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	if len(projects) == 0 {
		fmt.Println("no projects found")
		return nil
	}

	for _, p := range projects {
		fmt.Printf("%s\t%s\n", p.ID, p.DisplayName)
	}
	return nil
}
