// Package health exposes the pause monitor's liveness through the standard
// gRPC health checking protocol.
package health
