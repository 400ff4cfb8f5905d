// Package history keeps an append-only journal of lab sessions in SQLite.
//
// Every phase change and commit attempt is written as a session event, and a
// summary row per session tracks protein, attempts and completion. The journal
// is diagnostic only; sessions are never resumed from it.
package history
