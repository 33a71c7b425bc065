// Package status checks a running detector through its gRPC health endpoint.
package status
