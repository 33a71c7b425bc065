// Package report prints the pause statistics persisted by the detector.
package report
