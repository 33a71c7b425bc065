// Package logger wraps zap to offer:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and an atomic global level,
//   - leveled shortcuts (Info, InfoKV, WarnKV, ErrorKV, ...).
//
// The pause monitor and the services around it take a context and extract
// the logger from it, so every log line carries the caller's scope.
package logger
