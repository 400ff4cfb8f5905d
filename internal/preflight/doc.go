// Package preflight provides readiness checks for the filesystem paths,
// listen address and data files ribosim depends on.
//
// These checks run in two contexts:
//   - The CLI "ribosim preflight" command runs RunAll and prints a table.
//   - "ribosim serve" runs RunAll before starting the daemon and refuses to
//     start when a check fails, so a misconfigured bench fails loudly before
//     a class begins rather than halfway through a session.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
