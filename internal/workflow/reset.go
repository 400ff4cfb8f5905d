package workflow

import (
	"fmt"
	"strings"
	"time"

	"ribosim/internal/logging"
	"ribosim/internal/reconcile"
)

// Reset abandons the current session from any phase. Live carriers are
// removed without exit animations or output, the rendered strand is cleared,
// and a new session id is issued. A non-empty protein switches the template
// first; an unknown protein rejects the reset and leaves state untouched.
func (w *Workflow) Reset(protein string, now time.Time) error {
	if protein = strings.TrimSpace(protein); protein != "" {
		selector, ok := w.collab.Templates.(ProteinSelector)
		if !ok {
			return fmt.Errorf("reset: template source cannot switch protein")
		}
		if err := selector.SelectProtein(protein); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}

	cancelled := w.queue.Cancel()
	if len(w.tracked) > 0 {
		w.collab.Renderer.RenderPlan(reconcile.Plan{
			PreviousLength: len(w.tracked),
			Generation:     w.engine.Generation() + 1,
		})
	}
	w.engine.Reset()

	previous := w.sessionID
	w.sessionID = w.newSessionID()
	w.tracked = nil
	w.committed = nil
	w.pending = nil
	w.codonTotal = 0
	w.output = nil
	w.attempts = 0
	w.lastValidation = nil
	w.chain = nil
	w.aminoAttempts = 0
	w.lastAminoCheck = nil
	w.aminoMatched = false
	w.scannedNucleus = false
	w.degraded = false
	w.startedAt = now

	from := w.phase
	w.phase = PhaseAwaitingSequence
	w.log().Info("session reset",
		logging.String("previous_session", previous),
		logging.String("from", from.Label()),
		logging.Int("cancelled_carriers", cancelled),
		logging.String(logging.FieldProtein, w.collab.Templates.Protein()),
		logging.String(logging.FieldEventType, "session_reset"),
	)
	w.notifyPhase(from, PhaseAwaitingSequence, "reset", now)
	return nil
}
