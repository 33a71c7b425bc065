// Package config defines the detector settings and helpers to load, validate
// and save them in YAML format.
//
// Config holds the check interval, alarm threshold and enabled flag consumed
// by the pause monitor, plus the clock, statistics file, history size, log
// level and optional gRPC health address used by the detector service.
package config
