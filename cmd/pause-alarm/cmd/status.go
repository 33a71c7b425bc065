package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/pause-alarm/internal/service/common"
	"github.com/oshokin/pause-alarm/internal/service/status"
)

var (
	// statusTimeout bounds the health RPC.
	statusTimeout time.Duration

	// statusCmd checks a running detector.
	statusCmd = &cobra.Command{
		Use:   "status [address]",
		Short: "Check whether a running detector is monitoring.",
		Long: `Queries the gRPC health endpoint of a running detector. Exits with a
non-zero status unless the pause monitor reports SERVING. The address
defaults to listen_addr from the configuration file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var address string
			if len(args) > 0 {
				address = args[0]
			}

			return status.Run(cmd.Context(), &status.Options{
				ConfigPath: configPath,
				Address:    address,
				Timeout:    statusTimeout,
				Out:        cmd.OutOrStdout(),
			})
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	statusCmd.Flags().DurationVarP(&statusTimeout, "timeout", "t", common.DefaultTimeout, "health check timeout")
}
