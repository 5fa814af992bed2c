package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/convolog/convolog/internal/adapters/transport"
	"github.com/convolog/convolog/internal/adapters/watcher"
	"github.com/convolog/convolog/internal/cache"
	"github.com/convolog/convolog/internal/hub"
	"github.com/convolog/convolog/internal/project"
	"github.com/convolog/convolog/internal/query"
	"github.com/convolog/convolog/internal/usage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	serveProjectsRoot string
	serveHost         string
	servePort         int
	serveStreaming    bool
)

// serveCmd starts the transport server: the HTTP/WebSocket front end over
// the query coordinator, usage engine, project registry, and event hub.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve queries and usage reports over HTTP/WebSocket",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveProjectsRoot, "projects-root", "", "path to the projects root directory (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "bind host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "bind port (overrides config)")
	serveCmd.Flags().BoolVar(&serveStreaming, "streaming", false, "serve conversations via the streaming (uncached) coordinator instead of the cached one")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if serveProjectsRoot != "" {
		cfg.ProjectsRoot = serveProjectsRoot
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	reg := project.NewRegistry(cfg.ProjectsRoot, cfg.AllowedProjects, nil)
	files := cache.NewFileCache()
	projects := cache.NewProjectCache(files, 0)

	var coordinator transport.Coordinator
	if serveStreaming {
		coordinator = query.NewStreamingCoordinator(reg)
	} else {
		coordinator = query.NewCachedCoordinator(reg, projects)
	}

	factors := usage.CorrectionFactors{
		Session:        cfg.CorrectionSession,
		WeeklyAll:      cfg.CorrectionWeekly,
		WeeklyPerModel: cfg.CorrectionPerModel,
	}
	engine := usage.NewEngine(reg, files, usage.PlanType(cfg.PlanType), factors, usage.DefaultModelSubstrings, cfg.Location())

	eventHub := hub.New()
	if err := eventHub.Start(); err != nil {
		return fmt.Errorf("failed to start event hub: %w", err)
	}
	defer func() { _ = eventHub.Stop() }()

	server := transport.NewServer(cfg.Server.Host, cfg.Server.Port, reg, coordinator, engine, eventHub, cfg.Location())
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start transport server: %w", err)
	}
	defer func() { _ = server.Stop() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Watcher.Enabled {
		w := watcher.NewWatcher(cfg.ProjectsRoot, eventHub, cfg.Watcher.DebounceMS, cfg.Watcher.IgnorePatterns)
		w.SetInvalidator(projects)
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer func() { _ = w.Stop() }()
	}

	log.Info().
		Str("version", version).
		Str("projects_root", cfg.ProjectsRoot).
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Bool("watcher_enabled", cfg.Watcher.Enabled).
		Msg("convolog serving")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	return nil
}
