package detector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"

	"github.com/oshokin/pause-alarm/internal/api/grpc/health"
	"github.com/oshokin/pause-alarm/internal/clock"
	"github.com/oshokin/pause-alarm/internal/config"
	"github.com/oshokin/pause-alarm/internal/domain/pause"
	"github.com/oshokin/pause-alarm/internal/logger"
	"github.com/oshokin/pause-alarm/internal/pausealarm"
	"github.com/oshokin/pause-alarm/internal/repository/stats"
	"github.com/oshokin/pause-alarm/internal/service/common"
)

// Options controls the detector process. Non-zero fields override settings
// loaded from ConfigPath.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// CheckInterval overrides check_interval.
	CheckInterval time.Duration
	// AlarmThreshold overrides alarm_threshold.
	AlarmThreshold time.Duration
	// ListenAddress overrides listen_addr.
	ListenAddress string
	// StatsFile overrides stats_file.
	StatsFile string
	// LogLevel overrides log_level.
	LogLevel string
	// Clock replaces the configured clock.
	Clock clock.Clock
	// Sinks are extra observers notified next to the statistics recorder.
	Sinks []pausealarm.Sink
}

// healthStopTimeout bounds the graceful stop of the health endpoint.
const healthStopTimeout = 2 * time.Second

// errUnknownLogLevel is returned for an unparsable log level.
var errUnknownLogLevel = errors.New("unknown log level")

// Run starts the pause monitor and blocks until ctx is canceled or the
// monitor dies. Statistics are saved before returning.
//
//nolint:cyclop,funlen // Sequential wiring reads best in one place.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "pause-alarm")

	cfg, err := loadSettings(opts)
	if err != nil {
		return err
	}

	level, ok := logger.ParseLogLevel(cfg.LogLevel)
	if !ok {
		return fmt.Errorf("%q: %w", cfg.LogLevel, errUnknownLogLevel)
	}

	ctx = logger.ToContext(ctx, logger.FromContext(ctx).WithOptions(logger.WithLevel(level)))

	if !cfg.IsEnabled() {
		logger.Info(ctx, "Pause alarm disabled by configuration")
		return nil
	}

	if cfg.AlarmThreshold <= cfg.CheckInterval {
		logger.WarnKV(ctx, "Alarm threshold does not exceed check interval, every cycle will alarm",
			"check_interval", cfg.CheckInterval, "alarm_threshold", cfg.AlarmThreshold)
	}

	clk := opts.Clock
	if clk == nil {
		if clk, err = clock.ByName(cfg.Clock); err != nil {
			return fmt.Errorf("resolve clock: %w", err)
		}
	}

	repo := stats.NewFileRepository(cfg.StatsFile)

	recorder, err := newRecorder(ctx, repo, cfg.HistorySize)
	if err != nil {
		return fmt.Errorf("initialise statistics: %w", err)
	}

	monitorOptions := make([]pausealarm.Option, 0, 1)

	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Host detection failed, pause logs will not carry host fields", "error", err)
	} else {
		monitorOptions = append(monitorOptions, pausealarm.WithLogFields(actor.LogFields))
	}

	sinks := append([]pausealarm.Sink{recorder}, opts.Sinks...)

	monitor, err := pausealarm.New(clk, pausealarm.Config{
		CheckInterval:  cfg.CheckInterval,
		AlarmThreshold: cfg.AlarmThreshold,
	}, pausealarm.Fanout(sinks...), monitorOptions...)
	if err != nil {
		return fmt.Errorf("create monitor: %w", err)
	}

	if err = monitor.Start(ctx); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}

	var stopHealth func()

	if cfg.ListenAddress != "" {
		stopHealth, err = serveHealth(ctx, cfg.ListenAddress, monitor)
		if err != nil {
			monitor.Stop()

			return err
		}
	}

	persistCtx, stopPersist := context.WithCancel(ctx)
	persisted := make(chan struct{})

	go func() {
		defer close(persisted)
		persistUpdates(persistCtx, repo, recorder)
	}()

	select {
	case <-ctx.Done():
		logger.Info(ctx, "Shutting down")
	case <-monitor.Done():
	}

	monitor.Stop()
	<-monitor.Done()

	stopPersist()
	<-persisted

	// Save before stopping the health endpoint, whose clients may be slow to leave.
	snapshot := recorder.Snapshot()
	saveErr := repo.Save(context.WithoutCancel(ctx), &snapshot)

	if stopHealth != nil {
		stopHealth()
	}

	if saveErr != nil {
		logger.ErrorKV(ctx, "Failed to persist pause statistics", "error", saveErr)

		return fmt.Errorf("persist statistics: %w", saveErr)
	}

	logger.InfoKV(ctx, "Pause statistics saved",
		"stats_file", cfg.StatsFile,
		"count", snapshot.Count,
		"max", pausealarm.FormatPause(snapshot.Max))

	if err = monitor.Err(); err != nil {
		return fmt.Errorf("pause monitor: %w", err)
	}

	return nil
}

// loadSettings reads the settings file, applies option overrides and validates.
func loadSettings(opts *Options) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	if opts.CheckInterval != 0 {
		cfg.CheckInterval = opts.CheckInterval
	}

	if opts.AlarmThreshold != 0 {
		cfg.AlarmThreshold = opts.AlarmThreshold
	}

	if opts.ListenAddress != "" {
		cfg.ListenAddress = opts.ListenAddress
	}

	if opts.StatsFile != "" {
		cfg.StatsFile = opts.StatsFile
	}

	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	if err = config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}

	return cfg, nil
}

// newRecorder seeds a recorder with previously persisted statistics.
func newRecorder(ctx context.Context, repo stats.Repository, historySize int) (*pause.Recorder, error) {
	snapshot, err := repo.Load(ctx)

	switch {
	// Events are stamped with wall time whatever clock measures the pauses.
	case err == nil:
		return pause.NewRecorder(nil, pause.FromSnapshot(*snapshot, historySize)), nil
	case errors.Is(err, stats.ErrNotFound):
		return pause.NewRecorder(nil, pause.NewStats(historySize)), nil
	default:
		return nil, fmt.Errorf("load statistics: %w", err)
	}
}

// persistUpdates saves statistics every time the recorder signals a new
// pause, until ctx is done. Saving here keeps file I/O off the monitor loop.
func persistUpdates(ctx context.Context, repo stats.Repository, recorder *pause.Recorder) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-recorder.Updates():
			snapshot := recorder.Snapshot()
			if err := repo.Save(ctx, &snapshot); err != nil {
				logger.ErrorKV(ctx, "Failed to persist pause statistics", "error", err)
			}
		}
	}
}

// serveHealth starts a gRPC server exposing monitor health on address.
// The returned function stops it and waits for it to finish.
func serveHealth(ctx context.Context, address string, monitor health.Lifecycle) (func(), error) {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}

	healthServer := health.NewServer()
	grpcServer := grpc.NewServer()
	healthServer.Register(grpcServer)

	watchCtx, stopWatch := context.WithCancel(ctx)
	watched := make(chan struct{})

	go func() {
		defer close(watched)
		healthServer.Watch(watchCtx, monitor)
	}()

	served := make(chan struct{})

	go func() {
		defer close(served)

		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.ErrorKV(ctx, "Health server failed", "error", err)
		}
	}()

	logger.InfoKV(ctx, "Health endpoint listening", "listen_address", lis.Addr().String())

	return func() {
		stopWatch()
		<-watched
		healthServer.Shutdown()

		// Watch streams never end on their own, so graceful stop is bounded.
		stopped := make(chan struct{})

		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-time.After(healthStopTimeout):
			logger.WarnKV(ctx, "Health clients still connected, closing them", "timeout", healthStopTimeout)
			grpcServer.Stop()
			<-stopped
		}

		<-served
		logger.Info(ctx, "Health endpoint stopped")
	}, nil
}
