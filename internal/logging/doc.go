// Package logging provides structured logging infrastructure built on zerolog.
//
// It centralizes logger construction, context propagation, and trace ID
// handling so that every component logs through a consistently configured
// logger. Key features:
//   - Console and JSON output formats with optional file destinations
//   - Context-attached loggers retrievable via FromContext
//   - Per-invocation trace IDs propagated through context and emitted on
//     every event via a zerolog hook
//   - Graceful fallback to stderr when a log file cannot be opened
//
// Components obtain a scoped logger with ComponentLogger and attach it to a
// context with WithContext; downstream code calls FromContext to retrieve it.
package logging
