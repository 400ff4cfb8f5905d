package reconcile

import "ribosim/internal/sequence"

// Plan tells the renderer which slots survive and which symbols to build.
//
// KeepPrefix always equals RebuildFrom, and RebuildFrom+len(Suffix) equals the
// length of the new sequence.
type Plan struct {
	PreviousLength int
	KeepPrefix     int
	RebuildFrom    int
	Suffix         sequence.Sequence
	Generation     uint64
}

// Reconcile diffs previous against next. It is pure and safe to call from any goroutine.
func Reconcile(previous, next sequence.Sequence) Plan {
	return planFrom(len(previous), sequence.CommonPrefixLen(previous, next), next)
}

func planFrom(previousLength, keep int, next sequence.Sequence) Plan {
	return Plan{
		PreviousLength: previousLength,
		KeepPrefix:     keep,
		RebuildFrom:    keep,
		Suffix:         next[keep:].Clone(),
	}
}

// IsNoop reports whether the plan leaves the rendered strand untouched.
func (p Plan) IsNoop() bool {
	return len(p.Suffix) == 0 && p.RebuildFrom == p.PreviousLength
}

// IsFullRebuild reports whether every previously rendered slot is discarded.
func (p Plan) IsFullRebuild() bool {
	return p.RebuildFrom == 0 && p.PreviousLength > 0
}

// Removed is the number of rendered slots the plan tears down.
func (p Plan) Removed() int {
	return p.PreviousLength - p.RebuildFrom
}

// Length is the length of the sequence the plan builds toward.
func (p Plan) Length() int {
	return p.RebuildFrom + len(p.Suffix)
}
