package pause

import (
	"time"

	"github.com/eapache/queue"
)

// DefaultHistorySize is the number of recent events kept by default.
const DefaultHistorySize = 32

// Event is a single detected pause.
type Event struct {
	// DetectedAt is when the monitor woke up and saw the pause.
	DetectedAt time.Time
	// Duration is the elapsed time measured for the cycle.
	Duration time.Duration
}

// Snapshot is an immutable copy of Stats.
type Snapshot struct {
	// Count is the number of pauses recorded.
	Count int64
	// Total is the sum of all recorded pauses.
	Total time.Duration
	// Max is the longest recorded pause.
	Max time.Duration
	// Last is the most recent event, zero if none.
	Last Event
	// Recent holds the newest events, oldest first.
	Recent []Event
}

// Mean returns the average pause, or zero when nothing was recorded.
func (s Snapshot) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}

	return s.Total / time.Duration(s.Count)
}

// Stats accumulates pause events. It is not safe for concurrent use; see Recorder.
type Stats struct {
	count   int64
	total   time.Duration
	max     time.Duration
	last    Event
	limit   int
	history *queue.Queue
}

// NewStats creates empty statistics keeping up to limit recent events.
// A non-positive limit selects DefaultHistorySize.
func NewStats(limit int) *Stats {
	if limit <= 0 {
		limit = DefaultHistorySize
	}

	return &Stats{
		limit:   limit,
		history: queue.New(),
	}
}

// FromSnapshot rebuilds statistics from a snapshot, trimming history to limit.
func FromSnapshot(snap Snapshot, limit int) *Stats {
	s := NewStats(limit)
	s.count = snap.Count
	s.total = snap.Total
	s.max = snap.Max
	s.last = snap.Last

	for _, e := range snap.Recent {
		s.remember(e)
	}

	return s
}

// Add records e.
func (s *Stats) Add(e Event) {
	s.count++
	s.total += e.Duration
	s.max = max(s.max, e.Duration)
	s.last = e

	s.remember(e)
}

// Snapshot copies the current state.
func (s *Stats) Snapshot() Snapshot {
	recent := make([]Event, 0, s.history.Length())
	for i, n := 0, s.history.Length(); i < n; i++ {
		//nolint:forcetypeassert // Only Events are added.
		recent = append(recent, s.history.Get(i).(Event))
	}

	return Snapshot{
		Count:  s.count,
		Total:  s.total,
		Max:    s.max,
		Last:   s.last,
		Recent: recent,
	}
}

// remember appends e to the history, evicting the oldest beyond limit.
func (s *Stats) remember(e Event) {
	s.history.Add(e)

	for s.history.Length() > s.limit {
		s.history.Remove()
	}
}
