package carrier

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull means the stage is at capacity; retry on a later tick.
	ErrQueueFull = errors.New("carrier queue full")
	// ErrPredecessorEntering means the previous carrier has not settled yet.
	// It matches ErrQueueFull under errors.Is.
	ErrPredecessorEntering = fmt.Errorf("%w: previous carrier still entering", ErrQueueFull)
	// ErrUnknownUnit reports a signal for a unit that no longer exists.
	ErrUnknownUnit = errors.New("unknown carrier unit")
	// ErrAnimationTimeout marks a transition forced because a signal never arrived.
	ErrAnimationTimeout = errors.New("animation timeout")
)
