// Package logging assembles structured slog loggers used across rfidmonitor.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so modules tag log lines with the
// same keys (component, event_type, error_hint, message_type). The package
// also provides a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so the channel, the
// module host, and the CLI emit records with the same shape.
package logging
