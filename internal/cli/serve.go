package cli

import (
	"github.com/spf13/cobra"

	"github.com/lei/ci-timings/pkg/tracker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the generated dashboard data over HTTP",
	Long: `Start an HTTP server for the generated dashboard documents. The server
runs until interrupted and shuts down gracefully.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	t, err := tracker.New(ctx, cfg)
	if err != nil {
		return err
	}

	// Blocks until the context is canceled
	return t.Serve(ctx)
}
