// Package clock supplies the instant sources the pause monitor measures with.
//
// System is the default and carries Go's monotonic reading, so elapsed time
// computed with time.Time.Sub never runs backwards. MonotonicRaw reads
// CLOCK_MONOTONIC_RAW on Linux, which NTP slewing cannot adjust. Manual is a
// settable clock for tests.
package clock
