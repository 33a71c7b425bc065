package pausealarm

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/pause-alarm/internal/clock"
	"github.com/oshokin/pause-alarm/internal/logger"
)

const (
	eventually = 2 * time.Second
	tick       = 5 * time.Millisecond
)

// collector is a goroutine-safe Sink remembering every pause.
type collector struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (c *collector) Notify(_ context.Context, pause time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pauses = append(c.pauses, pause)

	return nil
}

func (c *collector) snapshot() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]time.Duration(nil), c.pauses...)
}

func (c *collector) count() int {
	return len(c.snapshot())
}

// scriptedClock returns the given offsets from the epoch in order, then
// keeps returning the last one.
type scriptedClock struct {
	mu      sync.Mutex
	offsets []time.Duration
	calls   int
}

func (s *scriptedClock) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := min(s.calls, len(s.offsets)-1)
	s.calls++

	return time.Unix(0, 0).Add(s.offsets[i])
}

func (s *scriptedClock) exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls > len(s.offsets)
}

// steppingClock advances by step on every reading.
type steppingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (s *steppingClock) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.now = s.now.Add(s.step)

	return s.now
}

// syncBuffer is a bytes.Buffer safe for the loop goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func newMonitor(t *testing.T, clk clock.Clock, interval, threshold time.Duration, sink Sink, opts ...Option) *Monitor {
	t.Helper()

	m, err := New(clk, Config{CheckInterval: interval, AlarmThreshold: threshold}, sink, opts...)
	require.NoError(t, err)

	t.Cleanup(m.Stop)

	return m
}

func waitDone(t *testing.T, m *Monitor) {
	t.Helper()

	select {
	case <-m.Done():
	case <-time.After(eventually):
		t.Fatal("monitor did not exit")
	}
}

// TestMonitor_ReportsExternalJump covers a clock jumping from 1000ms to 2000ms mid-run.
func TestMonitor_ReportsExternalJump(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.UnixMilli(1000))
	sink := new(collector)
	m := newMonitor(t, clk, 10*time.Millisecond, 400*time.Millisecond, sink)

	require.NoError(t, m.Start(context.Background()))

	time.Sleep(100 * time.Millisecond)
	clk.Set(time.UnixMilli(2000))

	require.Eventually(t, func() bool { return sink.count() == 1 }, eventually, tick)
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, m.Close())
	waitDone(t, m)

	require.Equal(t, []time.Duration{1000 * time.Millisecond}, sink.snapshot())
	require.NoError(t, m.Err())
}

// TestMonitor_IgnoresNormalCycles advances the clock by exactly the interval every reading.
func TestMonitor_IgnoresNormalCycles(t *testing.T) {
	t.Parallel()

	interval := 5 * time.Millisecond
	clk := &steppingClock{now: time.Unix(0, 0), step: interval}
	sink := new(collector)
	m := newMonitor(t, clk, interval, 200*time.Millisecond, sink)

	require.NoError(t, m.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)
	m.Stop()
	waitDone(t, m)

	require.Empty(t, sink.snapshot())
}

// TestMonitor_ThresholdIsStrict checks elapsed == threshold is silent and just above alarms.
func TestMonitor_ThresholdIsStrict(t *testing.T) {
	t.Parallel()

	threshold := 100 * time.Millisecond

	equal := new(collector)
	m := newMonitor(t, &steppingClock{now: time.Unix(0, 0), step: threshold}, time.Millisecond, threshold, equal)
	require.NoError(t, m.Start(context.Background()))

	above := new(collector)
	step := threshold + time.Nanosecond
	n := newMonitor(t, &steppingClock{now: time.Unix(0, 0), step: step}, time.Millisecond, threshold, above)
	require.NoError(t, n.Start(context.Background()))

	require.Eventually(t, func() bool { return above.count() >= 3 }, eventually, tick)

	m.Stop()
	n.Stop()
	waitDone(t, m)
	waitDone(t, n)

	require.Empty(t, equal.snapshot())

	for _, p := range above.snapshot() {
		require.Equal(t, step, p)
	}
}

// TestMonitor_RebasesAfterPause ensures a single pause is reported once.
func TestMonitor_RebasesAfterPause(t *testing.T) {
	t.Parallel()

	clk := &scriptedClock{offsets: []time.Duration{
		0,
		1000 * time.Millisecond,
		1010 * time.Millisecond,
		1020 * time.Millisecond,
		1030 * time.Millisecond,
	}}
	sink := new(collector)
	m := newMonitor(t, clk, time.Millisecond, 400*time.Millisecond, sink)

	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, clk.exhausted, eventually, tick)
	m.Stop()
	waitDone(t, m)

	require.Equal(t, []time.Duration{time.Second}, sink.snapshot())
}

// TestMonitor_ClampsBackwardClock checks a backwards jump is ignored and rebased.
func TestMonitor_ClampsBackwardClock(t *testing.T) {
	t.Parallel()

	clk := &scriptedClock{offsets: []time.Duration{
		1000 * time.Millisecond,
		0,
		500 * time.Millisecond,
	}}
	sink := new(collector)
	m := newMonitor(t, clk, time.Millisecond, 400*time.Millisecond, sink)

	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, clk.exhausted, eventually, tick)
	m.Stop()
	waitDone(t, m)

	require.Equal(t, []time.Duration{500 * time.Millisecond}, sink.snapshot())
}

// TestMonitor_StopBeforeFirstCycle stops right after start with a long interval.
func TestMonitor_StopBeforeFirstCycle(t *testing.T) {
	t.Parallel()

	clk := &steppingClock{now: time.Unix(0, 0), step: time.Hour}
	sink := new(collector)
	m := newMonitor(t, clk, time.Hour, time.Millisecond, sink)

	require.NoError(t, m.Start(context.Background()))
	m.Stop()

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("stop did not interrupt the sleep")
	}

	require.Empty(t, sink.snapshot())
}

// TestMonitor_NoNotificationsAfterStop alarms every cycle, then checks silence after Stop.
func TestMonitor_NoNotificationsAfterStop(t *testing.T) {
	t.Parallel()

	clk := &steppingClock{now: time.Unix(0, 0), step: time.Second}
	sink := new(collector)
	m := newMonitor(t, clk, time.Millisecond, 100*time.Millisecond, sink)

	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return sink.count() >= 5 }, eventually, tick)

	m.Stop()
	waitDone(t, m)

	seen := sink.count()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, seen, sink.count())
}

// TestMonitor_SurvivesBrokenObserver keeps running while one observer always panics.
func TestMonitor_SurvivesBrokenObserver(t *testing.T) {
	t.Parallel()

	broken := SinkFunc(func(context.Context, time.Duration) error {
		panic("observer is broken")
	})
	failing := SinkFunc(func(context.Context, time.Duration) error {
		return errObserver
	})
	healthy := new(collector)

	clk := &steppingClock{now: time.Unix(0, 0), step: time.Second}
	m := newMonitor(t, clk, time.Millisecond, 100*time.Millisecond, Fanout(broken, failing, healthy))

	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return healthy.count() >= 3 }, eventually, tick)

	select {
	case <-m.Done():
		t.Fatal("monitor exited because of an observer")
	default:
	}

	m.Stop()
	waitDone(t, m)
	require.NoError(t, m.Err())
}

// TestMonitor_DirectSinkPanicIsContained covers a single panicking sink without Fanout.
func TestMonitor_DirectSinkPanicIsContained(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		calls int
	)

	sink := SinkFunc(func(context.Context, time.Duration) error {
		mu.Lock()
		calls++
		mu.Unlock()

		panic("nope")
	})

	clk := &steppingClock{now: time.Unix(0, 0), step: time.Second}
	m := newMonitor(t, clk, time.Millisecond, 100*time.Millisecond, sink)

	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return calls >= 3
	}, eventually, tick)

	m.Stop()
	waitDone(t, m)
	require.NoError(t, m.Err())
}

// TestMonitor_ClockFailureIsFatal checks a panicking clock terminates the loop with an error.
func TestMonitor_ClockFailureIsFatal(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		calls int
	)

	clk := clock.Func(func() time.Time {
		mu.Lock()
		defer mu.Unlock()

		calls++
		if calls > 2 {
			panic("clock source is gone")
		}

		return time.Unix(0, 0)
	})

	m := newMonitor(t, clk, time.Millisecond, time.Second, nil)
	require.NoError(t, m.Start(context.Background()))
	waitDone(t, m)

	require.ErrorIs(t, m.Err(), ErrMonitorPanic)
	require.ErrorIs(t, m.Wait(context.Background()), ErrMonitorPanic)
}

// TestMonitor_UnreadableClockIsFatal stops on a clock failure instead of
// reporting a pause measured across two timebases.
func TestMonitor_UnreadableClockIsFatal(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		calls int
	)

	bootRelative := time.Unix(0, int64(3*time.Hour))

	clk := clock.Func(func() time.Time {
		mu.Lock()
		defer mu.Unlock()

		calls++
		if calls > 1 {
			panic(fmt.Errorf("%w: read failed", clock.ErrClockUnavailable))
		}

		return bootRelative
	})

	sink := new(collector)
	m := newMonitor(t, clk, time.Millisecond, 200*time.Millisecond, sink)
	require.NoError(t, m.Start(context.Background()))
	waitDone(t, m)

	require.ErrorIs(t, m.Err(), ErrMonitorPanic)
	require.ErrorIs(t, m.Err(), clock.ErrClockUnavailable)
	require.Empty(t, sink.snapshot())
}

// TestMonitor_ContextCancellation treats a canceled context as a clean exit.
func TestMonitor_ContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	m := newMonitor(t, nil, time.Hour, 2*time.Hour, nil)

	require.NoError(t, m.Start(ctx))
	cancel()
	waitDone(t, m)

	require.NoError(t, m.Err())
}

// TestMonitor_Lifecycle covers start/stop misuse.
func TestMonitor_Lifecycle(t *testing.T) {
	t.Parallel()

	m := newMonitor(t, nil, time.Hour, 2*time.Hour, nil)

	require.NoError(t, m.Start(context.Background()))
	require.ErrorIs(t, m.Start(context.Background()), ErrAlreadyStarted)

	m.Stop()
	m.Stop()
	require.NoError(t, m.Close())
	waitDone(t, m)

	require.ErrorIs(t, m.Start(context.Background()), ErrStopped)

	// Stopped before ever starting.
	n := newMonitor(t, nil, time.Hour, 2*time.Hour, nil)
	n.Stop()
	waitDone(t, n)
	require.ErrorIs(t, n.Start(context.Background()), ErrStopped)
}

// TestMonitor_WaitHonorsContext returns the context error while the loop is alive.
func TestMonitor_WaitHonorsContext(t *testing.T) {
	t.Parallel()

	m := newMonitor(t, nil, time.Hour, 2*time.Hour, nil)
	require.NoError(t, m.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, m.Wait(ctx), context.DeadlineExceeded)
}

// TestNew_Validates rejects non-positive durations and fills defaults.
func TestNew_Validates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{CheckInterval: 0, AlarmThreshold: time.Second}, nil)
	require.ErrorIs(t, err, ErrInvalidInterval)

	_, err = New(nil, Config{CheckInterval: time.Second, AlarmThreshold: -time.Second}, nil)
	require.ErrorIs(t, err, ErrInvalidThreshold)

	m, err := New(nil, DefaultConfig(), nil)
	require.NoError(t, err)
	require.Equal(t, clock.System, m.clock)
	require.Equal(t, Discard, m.sink)
	require.Equal(t, 50*time.Millisecond, m.Config().CheckInterval)
	require.Equal(t, 200*time.Millisecond, m.Config().AlarmThreshold)
}

// TestMonitor_LogsPauseWithFields checks the warning line and the decoration hook.
func TestMonitor_LogsPauseWithFields(t *testing.T) {
	t.Parallel()

	var buf syncBuffer

	ctx := logger.ToContext(context.Background(), logger.NewWithWriter(&buf, zapcore.DebugLevel))

	clk := &scriptedClock{offsets: []time.Duration{0, 1500 * time.Millisecond}}
	m := newMonitor(t, clk, time.Millisecond, 400*time.Millisecond, nil,
		WithLogFields(func(pause time.Duration) []any {
			return []any{"pause_ms", pause.Milliseconds()}
		}))

	require.NoError(t, m.Start(ctx))
	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "Detected pause")
	}, eventually, tick)

	m.Stop()
	waitDone(t, m)

	out := buf.String()
	require.Contains(t, out, "Watching for pauses")
	require.Contains(t, out, "1.5s")
	require.Contains(t, out, "pause_ms")
	require.Contains(t, out, "1500")
	require.Contains(t, out, "Terminated")
}
