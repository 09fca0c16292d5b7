package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	scriptwriter "postgame-agent/agents/script-writer"
	"postgame-agent/shared/config"
	"postgame-agent/shared/logging"
	"postgame-agent/shared/scheduler"

	"github.com/spf13/cobra"
)

var rule = strings.Repeat("=", 72)

// errPipelineFailed signals a failure that has already been logged
var errPipelineFailed = errors.New("pipeline failed")

func newRootCmd() *cobra.Command {
	var (
		dryRun     bool
		schedule   bool
		configPath string
	)

	cmd := &cobra.Command{
		Use:           "script-writer",
		Short:         "Turn post-game NFL chatter into a ready-to-record YouTube script",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if err := cfg.Validate(dryRun); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)

			// Create context that responds to signals
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			agent := scriptwriter.NewScriptAgent(cfg,
				scriptwriter.WithDryRun(dryRun),
				scriptwriter.WithLogger(logger),
			)

			if schedule {
				s := scheduler.New(cfg, agent, agent.Metrics().Registry(), logger)
				if err := s.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					return fmt.Errorf("scheduler failed: %w", err)
				}
				return nil
			}

			if err := agent.Initialize(); err != nil {
				return fmt.Errorf("failed to initialize agent: %w", err)
			}
			if err := agent.RunOnce(ctx, nil); err != nil {
				logger.Errorf("❌ Pipeline failed: %v", err)
				return errPipelineFailed
			}

			script, path := agent.LastScript()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "\n"+rule)
			fmt.Fprintln(out, script.Render())
			fmt.Fprintln(out, rule)
			fmt.Fprintf(out, "Saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run on the built-in sample posts instead of searching X")
	cmd.Flags().BoolVar(&schedule, "schedule", false, "run on the configured cron schedule with the health server")
	cmd.Flags().StringVar(&configPath, "config", "", "path to the YAML config file (default $CONFIG_FILE or config.yaml)")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errPipelineFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
