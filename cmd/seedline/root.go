package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/banshee-data/seedline/internal/monitoring"
	"github.com/banshee-data/seedline/internal/version"
)

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "seedline",
		Short:         "Parallel clustering and seeding with reference validation",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")

	root.AddCommand(newRunCmd(), newReportCmd(), newMigrateCmd())
	return root
}

// setupLogging backs the ops, diag and trace streams with logrus at warn,
// info and debug level so the chosen level decides which streams appear.
func setupLogging(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger := logrus.StandardLogger()
	logger.SetLevel(lvl)

	monitoring.UseLogrus(logger)
	return nil
}
