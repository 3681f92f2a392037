// Package log provides logging setup for safemac, built on top of the
// standard slog package.
//
// This package extends slog to provide:
//   - Escaping of control characters in attribute values
//   - Configurable log levels with verbose mode support
//   - Consistent log formatting across the application
//
// # Escaping
//
// File names from a compromised tree are attacker controlled. A name that
// carries ANSI escape sequences or carriage returns could rewrite the
// operator's terminal or forge log lines. The EscapeHandler rewrites every
// control character in string, error and Stringer attribute values to a
// visible \xNN or \uNNNN form before the record reaches the real handler.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
//	logger.Warn("cannot read file", "path", path) // control bytes escaped
package log
