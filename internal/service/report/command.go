package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/oshokin/pause-alarm/internal/config"
	"github.com/oshokin/pause-alarm/internal/domain/pause"
	"github.com/oshokin/pause-alarm/internal/pausealarm"
	"github.com/oshokin/pause-alarm/internal/repository/stats"
)

// Options controls the statistics report.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// StatsFile overrides stats_file from the settings.
	StatsFile string
	// Out receives the report. Nil means stdout.
	Out io.Writer
}

// Run loads the statistics file and writes a summary followed by recent pauses.
func Run(ctx context.Context, opts *Options) error {
	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	path := cfg.StatsFile
	if opts.StatsFile != "" {
		path = opts.StatsFile
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	snap, err := stats.NewFileRepository(path).Load(ctx)
	if errors.Is(err, stats.ErrNotFound) {
		_, _ = fmt.Fprintf(out, "No pauses recorded yet (%s).\n", path)

		return nil
	}

	if err != nil {
		return fmt.Errorf("load statistics: %w", err)
	}

	return write(out, snap)
}

// write renders snap as an aligned table.
func write(out io.Writer, snap *pause.Snapshot) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(tw, "pauses\t%d\n", snap.Count)
	_, _ = fmt.Fprintf(tw, "total\t%s\n", pausealarm.FormatPause(snap.Total))
	_, _ = fmt.Fprintf(tw, "mean\t%s\n", pausealarm.FormatPause(snap.Mean()))
	_, _ = fmt.Fprintf(tw, "max\t%s\n", pausealarm.FormatPause(snap.Max))

	if len(snap.Recent) > 0 {
		_, _ = fmt.Fprintln(tw, "\ndetected at\tpause")

		for _, e := range snap.Recent {
			_, _ = fmt.Fprintf(tw, "%s\t%s\n", e.DetectedAt.Local().Format(time.DateTime), pausealarm.FormatPause(e.Duration))
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}
