// Package daemon coordinates the long-running ribosim process.
//
// It wires configuration, the protein catalog, the workflow driver, the
// headset bridge and the session journal into a single lifecycle, with
// flock-based locking to prevent two benches sharing one data directory.
//
// Keep orchestration logic here: workflow rules live in the workflow package
// and wire formats in bridge, while the daemon focuses on startup, shutdown
// and high level coordination.
package daemon
