// Package pause holds the pause statistics the detector accumulates:
// totals, the longest pause and a bounded history of recent events.
package pause
