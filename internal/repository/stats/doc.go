// Package stats persists pause statistics to a JSON file so totals survive
// restarts and can be inspected by the `stats` command.
package stats
