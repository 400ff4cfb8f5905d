// Package reconcile computes incremental rebuild plans for the rendered strand.
//
// Reconcile compares the previously rendered sequence with the newly tracked
// one and keeps the longest shared prefix so only the differing suffix is torn
// down and rebuilt. Engine remembers the last sequence it planned for, checks
// the renderer's reported slots against that assumption, and falls back to a
// full rebuild when the two disagree.
package reconcile
