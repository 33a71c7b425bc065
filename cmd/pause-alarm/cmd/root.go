package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/pause-alarm/internal/config"
	"github.com/oshokin/pause-alarm/internal/service/detector"
	"github.com/oshokin/pause-alarm/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// checkInterval overrides the configured check interval.
	checkInterval time.Duration
	// alarmThreshold overrides the configured alarm threshold.
	alarmThreshold time.Duration
	// listenAddress overrides the gRPC health address.
	listenAddress string
	// statsFile overrides the statistics file path.
	statsFile string
	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd runs the pause detector.
	rootCmd = &cobra.Command{
		Use:   "pause-alarm",
		Short: "Detect process-wide pauses and report them.",
		Long: `Runs a background loop that sleeps for the check interval and measures how
long it actually slept. When the elapsed time exceeds the alarm threshold,
the process was frozen by something outside it (garbage collector, hypervisor,
OS scheduler) and the pause is logged and recorded.

Statistics are persisted to a JSON file on shutdown and can be printed with
the stats command. When a listen address is set, liveness is exposed through
the gRPC health protocol and can be checked with the status command.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &detector.Options{
				ConfigPath:     configPath,
				CheckInterval:  checkInterval,
				AlarmThreshold: alarmThreshold,
				ListenAddress:  listenAddress,
				StatsFile:      statsFile,
				LogLevel:       logLevel,
			}

			return detector.Run(ctx, options)
		},
	}
)

// Execute runs the pause-alarm CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")

	rootCmd.Flags().DurationVar(&checkInterval, "check-interval", 0, "how often to check for pauses (default 50ms)")
	rootCmd.Flags().DurationVar(&alarmThreshold, "alarm-threshold", 0, "report pauses longer than this (default 200ms)")
	rootCmd.Flags().StringVarP(&listenAddress, "listen", "l", "", "gRPC health listen address, disabled when empty")
	rootCmd.Flags().StringVarP(&statsFile, "stats-file", "s", "", "path to persist pause statistics")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "minimum log level (debug, info, warn, error)")

	rootCmd.AddCommand(statusCmd, statsCmd)
}
