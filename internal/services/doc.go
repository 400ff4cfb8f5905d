// Package services defines utilities shared by the daemon, the bridge and the
// workflow core.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, phase names, carrier unit IDs and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, so failures crossing the
//     bridge or the CLI are classified consistently.
package services
