package clock

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Clock reports the current instant.
type Clock interface {
	Now() time.Time
}

// Func adapts an ordinary function to Clock.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time {
	return f()
}

// systemClock reads time.Now.
type systemClock struct{}

// Now returns time.Now().
func (systemClock) Now() time.Time {
	return time.Now()
}

// System is the process wall clock with a monotonic reading attached.
//
//nolint:gochecknoglobals // Stateless default clock.
var System Clock = systemClock{}

const (
	// NameSystem selects System.
	NameSystem = "system"
	// NameMonotonicRaw selects MonotonicRaw.
	NameMonotonicRaw = "monotonic-raw"
)

var (
	// ErrUnknownClock is returned by ByName for unsupported names.
	ErrUnknownClock = errors.New("unknown clock")
	// ErrClockUnavailable is the panic value of a clock that cannot be read.
	ErrClockUnavailable = errors.New("clock unavailable")
)

// ByName resolves a configured clock name. An empty name means System.
//
//nolint:ireturn // Callers only need the capability.
func ByName(name string) (Clock, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameSystem:
		return System, nil
	case NameMonotonicRaw:
		return MonotonicRaw(), nil
	default:
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownClock)
	}
}
