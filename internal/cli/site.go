package cli

import (
	"github.com/spf13/cobra"

	"github.com/lei/ci-timings/pkg/tracker"
)

var siteCmd = &cobra.Command{
	Use:   "site",
	Short: "Generate dashboard data from published records",
	Long: `Read the most recent published timing records and write the dashboard
documents: overall.json with one time series per job, jobs.json with
per-job run counts and mean durations, and one JSON document per commit.`,
	RunE: runSite,
}

func init() {
	rootCmd.AddCommand(siteCmd)
}

func runSite(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	t, err := tracker.New(ctx, cfg)
	if err != nil {
		return err
	}

	return t.BuildSite(ctx)
}
