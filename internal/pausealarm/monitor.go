package pausealarm

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oshokin/pause-alarm/internal/clock"
	"github.com/oshokin/pause-alarm/internal/logger"
)

const (
	// DefaultCheckInterval is how often the monitor wakes up to measure.
	DefaultCheckInterval = 50 * time.Millisecond
	// DefaultAlarmThreshold is the smallest elapsed time reported as a pause.
	DefaultAlarmThreshold = 200 * time.Millisecond
)

var (
	// ErrInvalidInterval is returned by New for a non-positive check interval.
	ErrInvalidInterval = errors.New("check interval must be positive")
	// ErrInvalidThreshold is returned by New for a non-positive alarm threshold.
	ErrInvalidThreshold = errors.New("alarm threshold must be positive")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("monitor already started")
	// ErrStopped is returned by Start once the monitor has been stopped.
	ErrStopped = errors.New("monitor stopped")
	// ErrMonitorPanic wraps a panic that killed the monitor loop.
	ErrMonitorPanic = errors.New("pause monitor failed")
)

// Config holds the timing parameters of a Monitor.
// AlarmThreshold should be well above CheckInterval, otherwise ordinary
// scheduling jitter is reported on every cycle.
type Config struct {
	// CheckInterval is the requested sleep between measurements.
	CheckInterval time.Duration
	// AlarmThreshold is the elapsed time that must be exceeded to report a pause.
	AlarmThreshold time.Duration
}

// DefaultConfig returns a 50ms interval with a 200ms threshold.
func DefaultConfig() Config {
	return Config{
		CheckInterval:  DefaultCheckInterval,
		AlarmThreshold: DefaultAlarmThreshold,
	}
}

// Validate checks both durations are positive.
func (c Config) Validate() error {
	if c.CheckInterval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, c.CheckInterval)
	}

	if c.AlarmThreshold <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidThreshold, c.AlarmThreshold)
	}

	return nil
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogFields sets a hook returning extra key-value pairs for the
// "Detected pause" log line.
func WithLogFields(fn func(pause time.Duration) []any) Option {
	return func(m *Monitor) {
		m.logFields = fn
	}
}

// Monitor watches for process-wide pauses. It is single use: once stopped
// it cannot be started again.
type Monitor struct {
	// clock supplies the instants being compared.
	clock clock.Clock
	// cfg holds interval and threshold.
	cfg Config
	// sink receives detected pauses.
	sink Sink
	// logFields decorates pause log lines, may be nil.
	logFields func(pause time.Duration) []any

	// running is cleared by Stop and read by the loop every cycle.
	running atomic.Bool
	// started guards against a second loop.
	started atomic.Bool
	// stopped records that Stop was called.
	stopped atomic.Bool
	// stopOnce closes stop exactly once.
	stopOnce sync.Once
	// stop interrupts the sleep.
	stop chan struct{}
	// done is closed when the loop has exited.
	done chan struct{}

	// errMu protects err.
	errMu sync.Mutex
	// err is the failure that terminated the loop, if any.
	err error
}

// New creates an inert Monitor. A nil clock means clock.System and a nil
// sink means Discard.
func New(clk clock.Clock, cfg Config, sink Sink, opts ...Option) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if clk == nil {
		clk = clock.System
	}

	if sink == nil {
		sink = Discard
	}

	m := &Monitor{
		clock: clk,
		cfg:   cfg,
		sink:  sink,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	m.running.Store(true)

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Config returns the timing parameters.
func (m *Monitor) Config() Config {
	return m.cfg
}

// Start launches the monitoring goroutine and returns immediately. The loop
// logs through the logger carried by ctx and exits when ctx is canceled or
// Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		if m.stopped.Load() {
			return ErrStopped
		}

		return ErrAlreadyStarted
	}

	go m.run(ctx)

	return nil
}

// Stop ends monitoring. It interrupts the current sleep, so the loop exits
// promptly; a notification already in progress may still finish. Stop is
// idempotent and safe to call from any goroutine.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		m.stopped.Store(true)
		m.running.Store(false)
		close(m.stop)

		// Never started: nothing will close done.
		if m.started.CompareAndSwap(false, true) {
			close(m.done)
		}
	})
}

// Close calls Stop. It implements io.Closer.
func (m *Monitor) Close() error {
	m.Stop()

	return nil
}

// Done is closed once the monitoring goroutine has exited.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// Wait blocks until the loop exits or ctx is done.
func (m *Monitor) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return m.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the failure that terminated the loop, or nil.
func (m *Monitor) Err() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()

	return m.err
}

// run is the monitoring loop.
func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	defer m.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrMonitorPanic, r)
			if cause, ok := r.(error); ok {
				err = fmt.Errorf("%w: %w", ErrMonitorPanic, cause)
			}

			m.errMu.Lock()
			m.err = err
			m.errMu.Unlock()

			logger.ErrorKV(ctx, "Exiting due to failure", "error", err, "stack", string(debug.Stack()))
		}
	}()

	logger.InfoKV(ctx, "Watching for pauses",
		"check_interval", FormatPause(m.cfg.CheckInterval),
		"alarm_threshold", FormatPause(m.cfg.AlarmThreshold))

	timer := time.NewTimer(m.cfg.CheckInterval)
	defer timer.Stop()

	lastUpdate := m.clock.Now()

	for m.running.Load() {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Exiting due to cancellation")
			return
		case <-m.stop:
			continue
		case <-timer.C:
		}

		// Stop may have landed while the timer fired.
		if !m.running.Load() {
			break
		}

		now := m.clock.Now()

		if pause := m.elapsed(ctx, lastUpdate, now); pause > m.cfg.AlarmThreshold {
			m.report(ctx, pause)
		}

		lastUpdate = now

		timer.Reset(m.cfg.CheckInterval)
	}

	logger.Info(ctx, "Terminated")
}

// elapsed returns now-last, clamped at zero when the clock went backwards.
func (m *Monitor) elapsed(ctx context.Context, last, now time.Time) time.Duration {
	pause := now.Sub(last)
	if pause < 0 {
		logger.DebugKV(ctx, "Clock moved backwards, ignoring cycle", "drift", (-pause).String())

		return 0
	}

	return pause
}

// report logs pause and notifies the sink, swallowing its failures.
func (m *Monitor) report(ctx context.Context, pause time.Duration) {
	kvs := []any{"pause", FormatPause(pause)}
	if m.logFields != nil {
		kvs = append(kvs, m.logFields(pause)...)
	}

	logger.WarnKV(ctx, "Detected pause", kvs...)

	if err := invoke(ctx, m.sink, pause); err != nil {
		logger.ErrorKV(ctx, "Pause handler failed", "error", err)
	}
}
