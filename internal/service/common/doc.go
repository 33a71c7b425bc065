// Package common holds helpers shared by several services.
//
// It provides a lightweight gRPC health client with timeouts and detection
// of the current host identity used to decorate pause log lines.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
