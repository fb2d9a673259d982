// Package cli provides the command-line interface for the tracker.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lei/ci-timings/pkg/tracker"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	configFile string
	verbose    bool

	// Loaded configuration shared by subcommands
	cfg *tracker.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ci-timings",
	Short: "Track compile timings across CI vendors",
	Long: `ci-timings follows the merge commits of a repository, collects the build
logs each CI vendor produced for them, extracts per-crate compile timings
and publishes one record per commit to an object store.

From the published records it generates dashboard data and can serve it
over HTTP.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = tracker.LoadConfig(configFile)
		if err != nil {
			return err
		}

		if verbose {
			cfg.Logging.Level = "debug"
		}

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext is Execute with a caller-provided context, so signal
// cancellation reaches the subcommands.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/ci-timings.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
