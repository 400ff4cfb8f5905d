// Package simulate runs a complete lab session without a headset. Animation
// requests are acknowledged in the order they were issued, which is how a
// well-behaved renderer would report them, so the run exercises the same
// workflow, queue and reconcile code a live bench does.
package simulate
