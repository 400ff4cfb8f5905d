// Package logs tails and filters the daemon's JSON log file for the CLI.
//
// It streams log files with bounded memory usage, supports negative offsets
// for "tail last N lines" operations, and powers `ribosim logs --follow`.
// Filters match on the structured fields the logging package writes, so an
// instructor can follow one bench session without grepping.
package logs
