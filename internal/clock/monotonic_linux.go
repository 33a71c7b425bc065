//go:build linux

package clock

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// rawClock reads CLOCK_MONOTONIC_RAW. Instants are relative to an arbitrary
// origin (usually boot), so only differences between them are meaningful.
type rawClock struct {
	// read fills a timespec for the given clock id.
	read func(clockid int32, ts *unix.Timespec) error
}

// Now returns the raw monotonic reading as a time.Time.
// It panics with ErrClockUnavailable when the clock cannot be read: any
// substitute reading would come from another timebase and turn into a bogus
// pause of decades.
func (c rawClock) Now() time.Time {
	var ts unix.Timespec
	if err := c.read(unix.CLOCK_MONOTONIC_RAW, &ts); err != nil {
		panic(fmt.Errorf("%w: CLOCK_MONOTONIC_RAW: %w", ErrClockUnavailable, err))
	}

	return time.Unix(0, ts.Nano())
}

// MonotonicRaw returns a clock backed by CLOCK_MONOTONIC_RAW.
//
//nolint:ireturn // Platform specific implementation behind the interface.
func MonotonicRaw() Clock {
	return rawClock{read: unix.ClockGettime}
}
