// Package pausealarm detects involuntary stalls of the whole process.
//
// A Monitor runs one goroutine that sleeps for a check interval, then asks
// its clock how much time actually passed. When the elapsed time exceeds the
// alarm threshold, something outside the goroutine (garbage collector,
// hypervisor, OS scheduler) froze the process, and the Monitor logs the pause
// and notifies its Sink. Sinks are combined with Fanout; a failing or
// panicking sink never stops the monitor or the other sinks.
//
// Precision is bounded by the clock. With clock.System the measurement uses
// Go's monotonic reading; with an arbitrary clock a backwards jump is
// clamped to a zero pause and the baseline moves to the new instant.
package pausealarm
