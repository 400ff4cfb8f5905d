package workflow

import (
	"errors"
	"fmt"
	"time"

	"ribosim/internal/carrier"
	"ribosim/internal/logging"
)

// TransitFinished moves a session that reached the ribosome into Cycling and
// admits the first carrier. Signals outside Transit are stale and ignored.
func (w *Workflow) TransitFinished(now time.Time) error {
	if w.phase != PhaseTransit {
		w.log().Debug("transit signal ignored", logging.String(logging.FieldEventType, "stale_signal"))
		return nil
	}
	w.setPhase(PhaseCycling, "strand reached ribosome", now)
	w.collab.Checklist.CheckOff(TaskScanRibosome)
	w.advance(now)
	return nil
}

// AnimationFinished forwards a carrier animation signal to the queue and
// advances the parade.
func (w *Workflow) AnimationFinished(id carrier.UnitID, kind AnimationKind, now time.Time) error {
	var err error
	switch kind {
	case AnimationEnter:
		err = w.queue.ReportEnterFinished(id)
	case AnimationExit:
		err = w.queue.ReportExitFinished(id)
	default:
		return fmt.Errorf("animation kind %q: %w", kind, ErrUnexpectedPhase)
	}
	if err != nil && !errors.Is(err, carrier.ErrUnknownUnit) {
		return err
	}
	if w.phase == PhaseCycling {
		w.advance(now)
	}
	return nil
}

// Tick applies timeouts and retries admission. The driver calls it once per pump.
func (w *Workflow) Tick(now time.Time) {
	switch w.phase {
	case PhaseTransit:
		if now.Sub(w.transitSince) >= w.transitTimeout {
			w.degraded = true
			logging.WarnWithContext(w.log(), "transit signal missing; starting translation anyway", "transit_timeout",
				logging.Duration("timeout", w.transitTimeout),
				logging.Error(carrier.ErrAnimationTimeout),
				logging.String(logging.FieldErrorHint, "check the headset bridge connection"),
				logging.String(logging.FieldImpact, "strand may not be positioned on the ribosome"),
			)
			_ = w.TransitFinished(now)
		}
	case PhaseCycling:
		w.queue.Tick(now)
		w.advance(now)
	}
}

// advance admits pending codons in order and, once none remain, drains the
// stage until it is empty.
func (w *Workflow) advance(now time.Time) {
	for len(w.pending) > 0 {
		codon := w.pending[0]
		if _, err := w.queue.Admit(codon, now); err != nil {
			if !errors.Is(err, carrier.ErrQueueFull) {
				w.log().Warn("carrier admission failed", logging.Error(err))
			}
			return
		}
		w.pending = w.pending[1:]
	}
	if w.queue.Drain(now) {
		w.setPhase(PhaseComplete, "all carriers retired", now)
		w.collab.Checklist.CheckOff(TaskTranslate)
		w.log().Info("translation complete",
			logging.Int("amino_acids", len(w.output)),
			logging.Int("codons", w.codonTotal),
			logging.Bool("degraded", w.degraded),
			logging.String(logging.FieldEventType, "translation_complete"),
		)
	}
}
