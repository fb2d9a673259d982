package cli

import (
	"github.com/spf13/cobra"

	"github.com/lei/ci-timings/pkg/tracker"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Publish timing records for new commits",
	Long: `Walk the tracked branch newest first, collect build logs from every CI
vendor for each commit without a published record, extract timings and
publish one record per commit.

The walk stops at the first commit that already has a record, so repeated
runs only process what is new.`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	t, err := tracker.New(ctx, cfg)
	if err != nil {
		return err
	}

	return t.Ingest(ctx)
}
