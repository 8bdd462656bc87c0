package commands

import (
	"context"

	"github.com/openclaw/openclaw/internal/config"
	"github.com/spf13/cobra"
)

// commandContext resolves the command context, falling back to Background for
// commands invoked outside cobra's Execute path.
func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil {
		if ctx := cmd.Context(); ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

var logLevelOverride string

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "openclaw",
		Short: "OpenClaw - Policy-enforced agent tool runner",
		Long:  `OpenClaw runs agent tools behind a Cedar policy decision point with local guardrails.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init" {
				return configureLogger(config.DefaultConfig(), logLevelOverride)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return configureLogger(cfg, logLevelOverride)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level (debug|info|warn|error)")

	cmd.AddCommand(
		NewInitCmd(),
		NewRunCmd(),
		NewConstraintsCmd(),
		NewStatusCmd(),
		NewVersionCmd(),
	)

	return cmd
}
