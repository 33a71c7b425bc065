package status

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/pause-alarm/internal/api/grpc/health"
	"github.com/oshokin/pause-alarm/internal/config"
	"github.com/oshokin/pause-alarm/internal/logger"
	"github.com/oshokin/pause-alarm/internal/service/common"
)

// Options controls the status check.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// Address overrides listen_addr from the settings.
	Address string
	// Timeout is the RPC timeout.
	Timeout time.Duration
	// Out receives the human-readable result. Nil means stdout.
	Out io.Writer
}

var (
	// ErrNotServing is returned when the detector reports anything but SERVING.
	ErrNotServing = errors.New("pause monitor is not serving")
	// errNoAddress is returned when neither settings nor options name an endpoint.
	errNoAddress = errors.New("no health endpoint address configured")
)

// Run queries the detector and prints its status.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "pause-alarm-status")

	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	address := cfg.ListenAddress
	if opts.Address != "" {
		address = opts.Address
	}

	if address == "" {
		return errNoAddress
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	client, err := common.Dial(ctx, address, common.WithCallTimeout(opts.Timeout))
	if err != nil {
		return fmt.Errorf("dial detector: %w", err)
	}

	defer func() {
		_ = client.Close()
	}()

	logger.DebugKV(ctx, "Checking detector health", "address", address)

	status, err := client.Check(ctx, health.ServiceName)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "%s: %s\n", address, status)

	if status != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%s: %w", status, ErrNotServing)
	}

	return nil
}
