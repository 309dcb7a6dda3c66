// Package logger wraps zap to offer a global sugared logger writing to stderr,
// context helpers (ToContext/FromContext/WithName/WithKV) and level parsing.
//
// Stdout is left untouched so that the packager can print the release tag
// there and callers can capture it.
package logger
