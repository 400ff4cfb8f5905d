package workflow

import (
	"fmt"
	"time"

	"ribosim/internal/logging"
	"ribosim/internal/sequence"
)

// Commit validates the tracked strand against the expected template. A match
// moves the session into Transit; any other outcome leaves the phase alone
// and can be retried.
func (w *Workflow) Commit(now time.Time) (Validation, error) {
	switch w.phase {
	case PhaseAwaitingSequence, PhaseValidatingSequence:
	default:
		return Validation{}, fmt.Errorf("%w: commit during %s", ErrUnexpectedPhase, w.phase.Label())
	}

	expected := w.collab.Templates.ExpectedTemplate()
	result := compareStrands(expected, w.tracked)
	result.SessionID = w.sessionID

	// A strand that cannot be read as codons is refused before it counts as
	// an attempt.
	var codons []sequence.Codon
	if result.Outcome == OutcomeMatch {
		var err error
		if codons, err = sequence.Codons(w.tracked); err != nil {
			result.Outcome = OutcomeInvalidLength
			result.Attempt = w.attempts
			result.Detail = err.Error()
			w.collab.Narrator.ValidationResult(result)
			w.logCommit(result)
			return result, fmt.Errorf("commit: %w", err)
		}
	}

	w.attempts++
	result.Attempt = w.attempts
	w.lastValidation = &result
	w.collab.Narrator.ValidationResult(result)
	w.logCommit(result)
	if result.Outcome != OutcomeMatch {
		return result, nil
	}

	w.committed = w.tracked.Clone()
	w.codonTotal = len(codons)
	w.chain = sequence.Chain(codons)
	w.pending = append([]sequence.Codon(nil), sequence.TranslatableCodons(codons)...)
	w.collab.Checklist.CheckOff(TaskArrangeCards)
	w.collab.Checklist.CheckOff(TaskFinishTranscription)
	w.setPhase(PhaseTransit, "strand matched template", now)
	w.transitSince = now
	w.collab.Animator.PlayTransit()
	return result, nil
}

func (w *Workflow) logCommit(result Validation) {
	w.log().Info("strand committed",
		logging.String("outcome", string(result.Outcome)),
		logging.Int("attempt", result.Attempt),
		logging.Int("expected_length", result.ExpectedLen),
		logging.Int("got_length", result.GotLen),
		logging.String(logging.FieldEventType, "strand_committed"),
	)
}

func compareStrands(expected, got sequence.Sequence) Validation {
	result := Validation{
		ExpectedLen:   len(expected),
		GotLen:        len(got),
		FirstMismatch: -1,
	}
	if len(expected) != len(got) {
		result.Outcome = OutcomeLengthMismatch
		return result
	}
	if prefix := sequence.CommonPrefixLen(expected, got); prefix < len(expected) {
		result.Outcome = OutcomeContentMismatch
		result.FirstMismatch = prefix
		return result
	}
	result.Outcome = OutcomeMatch
	return result
}
