// Package logging assembles structured slog loggers and formatting helpers used
// across openbq.
//
// It owns the console/JSON handlers, fans records out to the persistent log
// file, and exposes context-aware helpers so dispatch code can tag log lines
// with job IDs and work-unit targets. The package also provides a no-op logger
// for tests and wiring code that cannot fail.
package logging
