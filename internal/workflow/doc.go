// Package workflow runs one translation lab session.
//
// Workflow is the phase state machine (awaiting sequence, validating, transit,
// cycling, complete) that owns the tracked strand, the reconcile engine and the
// carrier queue. It never talks to the headset directly; it issues commands
// through the collaborator interfaces in collaborators.go and consumes typed
// events. Driver is the single goroutine allowed to mutate a Workflow: it
// drains a bounded event channel once per tick, applies timeouts, and
// publishes an immutable Snapshot for readers on other goroutines.
package workflow
