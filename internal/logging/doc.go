// Package logging assembles structured slog loggers and formatting helpers used
// across mediasync.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing (console plus a daily JSON log file), and exposes context-aware
// helpers so engine code can automatically tag log lines with run IDs, run
// modes, and the remote path in flight. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup to ensure new
// components emit data with the same shape and routing guarantees as the rest
// of the system.
package logging
