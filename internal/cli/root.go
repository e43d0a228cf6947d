package cli

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var logLevel string

// Execute runs the root command with the build's version information.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	return newRootCommand(version, commit, buildDate).ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	root := &cobra.Command{
		Use:   "modulegen",
		Short: "Generate and converge Remnawave panel resource modules",
		Long: `modulegen derives declarative resource managers from a Remnawave panel
OpenAPI document and converges desired state against a live panel.

generate reads an OpenAPI spec and emits module descriptors; apply takes one
descriptor plus a desired-state file and issues the minimal API calls needed
to make the panel match.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			zerolog.SetGlobalLevel(level)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel(), "log level (debug, info, warn, error)")

	root.AddCommand(newGenerateCommand())
	root.AddCommand(newApplyCommand())
	root.AddCommand(newVersionCommand(version, commit, buildDate))

	return root
}

func defaultLogLevel() string {
	if level := os.Getenv("MODULEGEN_LOG_LEVEL"); level != "" {
		return level
	}
	return "info"
}
