//go:build !linux

package clock

// MonotonicRaw falls back to System on platforms without CLOCK_MONOTONIC_RAW.
//
//nolint:ireturn // Platform specific implementation behind the interface.
func MonotonicRaw() Clock {
	return System
}
