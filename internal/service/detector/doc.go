// Package detector runs the pause monitor as a service: it loads settings,
// wires the statistics recorder and any extra observers into one fan-out,
// optionally serves gRPC health, and persists statistics on shutdown.
package detector
