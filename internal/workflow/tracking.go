package workflow

import (
	"fmt"
	"time"

	"ribosim/internal/logging"
	"ribosim/internal/sequence"
)

// HandleTrackingInput parses raw card input and applies it. Input with a
// foreign symbol is reported to the narrator as an invalid-symbol validation
// and leaves state untouched.
func (w *Workflow) HandleTrackingInput(raw string, now time.Time) error {
	if !w.acceptsTracking() {
		w.ignoreTracking(len(raw))
		return nil
	}
	seq, err := sequence.Parse(raw)
	if err != nil {
		return w.rejectTracking(len(sequence.Normalize(raw)), err)
	}
	return w.HandleTracking(seq, now)
}

// HandleTracking applies a new tracked strand. A strand with a foreign symbol
// is rejected without touching state. Once a strand is committed further
// tracking input is ignored.
func (w *Workflow) HandleTracking(seq sequence.Sequence, now time.Time) error {
	if !w.acceptsTracking() {
		w.ignoreTracking(len(seq))
		return nil
	}
	if err := seq.Validate(); err != nil {
		return w.rejectTracking(len(seq), err)
	}

	if w.phase == PhaseAwaitingSequence {
		if len(seq) == 0 {
			return nil
		}
		if !w.scannedNucleus {
			w.scannedNucleus = true
			w.collab.Checklist.CheckOff(TaskScanNucleus)
		}
		w.setPhase(PhaseValidatingSequence, "tracking input received", now)
	}

	plan := w.engine.Next(seq, w.collab.Renderer)
	w.tracked = seq.Clone()
	if plan.IsNoop() {
		return nil
	}
	w.collab.Renderer.RenderPlan(plan)
	w.log().Debug("strand reconciled",
		logging.Int("kept", plan.KeepPrefix),
		logging.Int("removed", plan.Removed()),
		logging.String("suffix", plan.Suffix.String()),
		logging.Uint64("generation", plan.Generation),
	)
	return nil
}

func (w *Workflow) acceptsTracking() bool {
	return w.phase == PhaseAwaitingSequence || w.phase == PhaseValidatingSequence
}

func (w *Workflow) ignoreTracking(symbols int) {
	w.log().Debug("tracking update ignored after commit",
		logging.Int("symbols", symbols),
		logging.String(logging.FieldEventType, "tracking_ignored"),
	)
}

func (w *Workflow) rejectTracking(symbols int, err error) error {
	w.collab.Narrator.ValidationResult(Validation{
		SessionID:     w.sessionID,
		Outcome:       OutcomeInvalidSymbol,
		Attempt:       w.attempts,
		GotLen:        symbols,
		FirstMismatch: -1,
		Detail:        err.Error(),
	})
	return fmt.Errorf("tracking input: %w", err)
}
