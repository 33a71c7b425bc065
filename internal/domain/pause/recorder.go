package pause

import (
	"context"
	"sync"
	"time"

	"github.com/oshokin/pause-alarm/internal/clock"
)

// Recorder is a goroutine-safe pause sink feeding Stats.
type Recorder struct {
	// clock stamps events.
	clock clock.Clock
	// mu protects stats.
	mu sync.Mutex
	// stats holds the accumulated events.
	stats *Stats
	// updates signals a recorded event, coalescing bursts.
	updates chan struct{}
}

// NewRecorder wraps stats. A nil clock means clock.System and nil stats
// start empty with the default history size.
func NewRecorder(clk clock.Clock, stats *Stats) *Recorder {
	if clk == nil {
		clk = clock.System
	}

	if stats == nil {
		stats = NewStats(DefaultHistorySize)
	}

	return &Recorder{
		clock:   clk,
		stats:   stats,
		updates: make(chan struct{}, 1),
	}
}

// Notify records a pause of the given duration.
func (r *Recorder) Notify(_ context.Context, d time.Duration) error {
	e := Event{
		DetectedAt: r.clock.Now(),
		Duration:   d,
	}

	r.mu.Lock()
	r.stats.Add(e)
	r.mu.Unlock()

	select {
	case r.updates <- struct{}{}:
	default:
	}

	return nil
}

// Updates receives a value after events were recorded. Several events may
// collapse into one signal; Notify never blocks on it.
func (r *Recorder) Updates() <-chan struct{} {
	return r.updates
}

// Snapshot returns a copy of the accumulated statistics.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.stats.Snapshot()
}
