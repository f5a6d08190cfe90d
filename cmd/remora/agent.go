package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	agentpkg "github.com/remora-dev/remora/internal/agent"
	"github.com/remora-dev/remora/internal/api"
	"github.com/remora-dev/remora/internal/config"
	"github.com/remora-dev/remora/internal/executor"
	"github.com/remora-dev/remora/internal/journal"
	"github.com/remora-dev/remora/internal/observability"
	"github.com/remora-dev/remora/internal/statusapi"
)

var (
	agentConfigPath string
	agentID         string
	agentPollInt    int
	agentHBInt      int
	logLevel        string
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Start the agent loop",
	Long: `Register with every configured project and start polling for
commands. Runs until interrupted.`,
	RunE: runAgent,
}

func init() {
	agentCmd.Flags().StringVar(&agentConfigPath, "config", config.DefaultConfigPath(), "path to config file")
	agentCmd.Flags().StringVar(&agentID, "agent-id", "", "override agent ID (default: hostname-pid)")
	agentCmd.Flags().IntVar(&agentPollInt, "poll-interval", 0, "override poll interval in seconds")
	agentCmd.Flags().IntVar(&agentHBInt, "heartbeat-interval", 0, "override heartbeat interval in seconds")
	agentCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

// runAgent starts the agent process.
func runAgent(cmd *cobra.Command, _ []string) error {
	logger := newLogger(logLevel)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// CLI overrides.
	if agentID != "" {
		cfg.AgentID = agentID
	}
	if agentPollInt > 0 {
		cfg.PollIntervalSeconds = agentPollInt
	}
	if agentHBInt > 0 {
		cfg.HeartbeatIntervalSeconds = agentHBInt
	}

	logger.Info("agent starting",
		slog.String("agent_id", cfg.AgentID),
		slog.Int("projects", len(cfg.Projects)),
		slog.Duration("poll_interval", cfg.PollInterval()),
		slog.Duration("heartbeat_interval", cfg.HeartbeatInterval()),
	)

	// Signal-aware context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(cfg.Observability, logger)
	if err != nil {
		return err
	}
	defer obs.Shutdown(context.Background())

	// Execution journal (optional).
	var jnl *journal.Journal
	if cfg.Journal != nil {
		jnl, err = journal.Open(journal.Config{
			Path:        cfg.Journal.Path,
			JournalMode: cfg.Journal.JournalMode,
		}, logger)
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer jnl.Close()

		pruner := journal.NewPruner(jnl, cfg.Journal.RetentionDays, logger)
		if err := pruner.Start(ctx, cfg.Journal.PruneSchedule); err != nil {
			return err
		}
		defer pruner.Stop()

		if obs != nil {
			obs.Health.AddCheck("journal", jnl.Ping)
		}
	}

	exec := executor.New(executorConfig(cfg.Limits), obs.MetricsOrNil(), logger)
	if ts := obs.TracerOrNil(); ts != nil {
		exec = exec.WithTracer(ts.Tracer())
	}

	// One runner per project, fully independent.
	runners := make([]*agentpkg.Runner, 0, len(cfg.Projects))
	started := 0
	for _, project := range cfg.Projects {
		client := api.NewHTTPClient(project.APIURL, project.Token)
		runner := agentpkg.NewRunner(agentpkg.Config{
			ProjectCode:       project.ProjectCode,
			AgentID:           cfg.AgentID,
			PollInterval:      cfg.PollInterval(),
			HeartbeatInterval: cfg.HeartbeatInterval(),
		}, client, exec, recorderOrNil(jnl), obs.MetricsOrNil(), logger)

		if err := runner.Start(ctx); err != nil {
			// Registration failure is terminal for this project only.
			logger.Error("project not started",
				slog.String("project", project.ProjectCode),
				slog.String("error", err.Error()),
			)
			continue
		}
		runners = append(runners, runner)
		started++
	}
	if started == 0 {
		return fmt.Errorf("no project registered successfully")
	}

	// Local status server (optional).
	var status *statusapi.Server
	if cfg.Observability != nil && cfg.Observability.Status != nil && cfg.Observability.Status.Enabled {
		statusCfg := statusapi.Config{
			ListenAddr:    cfg.Observability.Status.ListenAddr,
			HealthChecker: obs.Health,
			Journal:       jnl,
		}
		if m := obs.MetricsOrNil(); m != nil {
			statusCfg.MetricsRegistry = m.Registry
		}
		status = statusapi.NewServer(statusCfg, logger)
		go func() {
			if err := status.Start(ctx); err != nil {
				logger.Error("status server failed", slog.String("error", err.Error()))
			}
		}()
	}

	logger.Info("agent running", slog.Int("active_projects", started))
	<-ctx.Done()

	logger.Info("shutting down")
	for _, runner := range runners {
		runner.Stop()
	}
	if status != nil {
		_ = status.Stop()
	}
	return nil
}

// recorderOrNil converts a possibly-nil journal to the Recorder seam.
// A plain interface conversion of a nil *Journal would yield a non-nil
// interface holding a nil pointer.
func recorderOrNil(j *journal.Journal) agentpkg.Recorder {
	if j == nil {
		return nil
	}
	return j
}

func executorConfig(limits *config.LimitsConfig) executor.Config {
	if limits == nil {
		return executor.Config{}
	}
	return executor.Config{
		MaxOutputBytes:        limits.MaxOutputBytes,
		MaxFileSizeBytes:      limits.MaxFileSizeBytes,
		MaxDirEntries:         limits.MaxDirEntries,
		MaxCommandTimeout:     time.Duration(limits.MaxCommandTimeoutMS) * time.Millisecond,
		DefaultCommandTimeout: time.Duration(limits.DefaultCommandTimeoutMS) * time.Millisecond,
	}
}

// loadConfig resolves the config path (flag, then REMORA_CONFIG) and loads it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := agentConfigPath
	if !cmd.Flags().Changed("config") {
		if envCfg := os.Getenv("REMORA_CONFIG"); envCfg != "" {
			path = envCfg
		}
	}
	return loadConfigFrom(path)
}

func loadConfigFrom(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("REMORA_CONFIG")
	}
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
