package reconcile

import (
	"log/slog"

	"ribosim/internal/logging"
	"ribosim/internal/sequence"
)

// RenderedState reports the symbol tag of every slot currently on screen.
// ok is false when the renderer cannot report its state.
type RenderedState interface {
	RenderedSymbols() (symbols sequence.Sequence, ok bool)
}

// Engine tracks the last planned sequence. It is not safe for concurrent use;
// the workflow driver is its only caller.
type Engine struct {
	logger     *slog.Logger
	last       sequence.Sequence
	generation uint64
}

// NewEngine constructs an engine with an empty last-known sequence.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logging.NewComponentLogger(logger, "reconcile")}
}

// Next plans the move from the last-known sequence to next and records next.
// When view is non-nil its slots are verified first; a mismatch forces a full
// rebuild. Every plan that changes something advances the generation.
func (e *Engine) Next(next sequence.Sequence, view RenderedState) Plan {
	plan := Reconcile(e.last, next)
	if view != nil && plan.KeepPrefix > 0 {
		if rendered, ok := view.RenderedSymbols(); ok {
			if err := ConsistencyCheck(e.last, rendered, plan.KeepPrefix); err != nil {
				logging.WarnWithContext(e.logger, "rendered strand diverged; rebuilding from start", "render_state_inconsistent",
					logging.Int("kept_prefix", plan.KeepPrefix),
					logging.Int("rendered_slots", len(rendered)),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "renderer dropped or replaced a slot"),
					logging.String(logging.FieldImpact, "strand animations replay from the first slot"),
				)
				plan = planFrom(len(e.last), 0, next)
				if len(rendered) > plan.PreviousLength {
					plan.PreviousLength = len(rendered)
				}
			}
		}
	}
	if !plan.IsNoop() {
		e.generation++
	}
	plan.Generation = e.generation
	e.last = next.Clone()
	return plan
}

// Last returns a copy of the last-known sequence.
func (e *Engine) Last() sequence.Sequence {
	return e.last.Clone()
}

// Generation returns the number of non-empty plans issued so far.
func (e *Engine) Generation() uint64 {
	return e.generation
}

// Reset forgets the last-known sequence. The generation keeps counting so
// plans from a previous session can be told apart.
func (e *Engine) Reset() {
	e.last = nil
	e.generation++
}
