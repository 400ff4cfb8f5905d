package reconcile

import (
	"errors"
	"fmt"

	"ribosim/internal/sequence"
)

// ErrInconsistentRenderState reports that rendered slots no longer match the
// sequence the engine believes is on screen.
var ErrInconsistentRenderState = errors.New("inconsistent render state")

// ConsistencyCheck compares the symbol tag stored in each rendered slot with
// previous over the first keep positions.
func ConsistencyCheck(previous, rendered sequence.Sequence, keep int) error {
	if keep > len(previous) {
		keep = len(previous)
	}
	if len(rendered) < keep {
		return fmt.Errorf("%w: %d slots rendered, %d expected", ErrInconsistentRenderState, len(rendered), keep)
	}
	for i := 0; i < keep; i++ {
		if rendered[i] != previous[i] {
			return fmt.Errorf("%w: slot %d holds %s, expected %s", ErrInconsistentRenderState, i, rendered[i], previous[i])
		}
	}
	return nil
}
