// Package logging assembles the structured slog loggers shared by the daemon,
// the CLI and the workflow core.
//
// It owns the console and JSON handlers, fans records out to the terminal, the
// log file and the systemd journal, and exposes context-aware helpers so code
// running inside a lab session automatically tags lines with the session id,
// phase and carrier unit. NewNop serves tests and wiring code that cannot fail.
package logging
