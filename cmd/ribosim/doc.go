// Command ribosim runs and controls a protein synthesis lab bench.
//
// `ribosim serve` starts the daemon that headsets connect to. The remaining
// commands either inspect local state (catalog, history, logs, preflight)
// or talk to a running daemon over its HTTP bridge (status, track, commit,
// reset). `ribosim simulate` plays a whole session in-process, which is the
// quickest way to check a custom protein catalog.
package main
