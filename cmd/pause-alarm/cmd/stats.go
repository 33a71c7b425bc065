package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/pause-alarm/internal/service/report"
)

// reportFile overrides the statistics file for the stats command.
var reportFile string

// statsCmd prints persisted pause statistics.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print recorded pause statistics.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return report.Run(cmd.Context(), &report.Options{
			ConfigPath: configPath,
			StatsFile:  reportFile,
			Out:        cmd.OutOrStdout(),
		})
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	statsCmd.Flags().StringVarP(&reportFile, "stats-file", "s", "", "path to the statistics file")
}
