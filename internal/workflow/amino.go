package workflow

import (
	"fmt"
	"strings"
	"time"

	"ribosim/internal/logging"
	"ribosim/internal/sequence"
)

// SelectAminoAcids checks the student's amino acid picks, one per codon,
// against the chain the committed strand encodes. Picks are three-letter
// codes in any case; blank entries are skipped. An unknown code is reported
// as invalid_symbol and does not count as an attempt. A match ticks
// select_amino once per session.
func (w *Workflow) SelectAminoAcids(picks []string, now time.Time) (AminoCheck, error) {
	switch w.phase {
	case PhaseTransit, PhaseCycling, PhaseComplete:
	default:
		return AminoCheck{}, fmt.Errorf("%w: amino acid selection during %s", ErrUnexpectedPhase, w.phase.Label())
	}

	check := AminoCheck{
		SessionID: w.sessionID,
		Expected:  make([]string, len(w.chain)),
	}
	for i, aa := range w.chain {
		check.Expected[i] = string(aa)
	}

	chosen := make([]sequence.AminoAcid, 0, len(picks))
	for _, raw := range picks {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		aa, ok := sequence.ParseAminoAcid(raw)
		if !ok {
			err := fmt.Errorf("%w: %q at %d", sequence.ErrUnknownAminoAcid, raw, len(chosen)+1)
			check.Outcome = OutcomeInvalidSymbol
			check.Attempt = w.aminoAttempts
			check.Picks = appendPick(chosen, raw)
			check.Detail = err.Error()
			w.collab.Narrator.AminoAcidsChecked(check)
			w.logAminoCheck(check)
			return check, fmt.Errorf("select amino acids: %w", err)
		}
		chosen = append(chosen, aa)
	}

	check.Picks = appendPick(chosen, "")
	switch {
	case len(chosen) != len(w.chain):
		check.Outcome = OutcomeLengthMismatch
		check.Detail = fmt.Sprintf("expected %d amino acids, got %d", len(w.chain), len(chosen))
	default:
		for i, aa := range chosen {
			if aa != w.chain[i] {
				check.Mismatches = append(check.Mismatches, i)
			}
		}
		check.Outcome = OutcomeMatch
		if len(check.Mismatches) > 0 {
			check.Outcome = OutcomeContentMismatch
		}
	}

	w.aminoAttempts++
	check.Attempt = w.aminoAttempts
	w.lastAminoCheck = &check
	w.collab.Narrator.AminoAcidsChecked(check)
	w.logAminoCheck(check)
	if check.Outcome == OutcomeMatch && !w.aminoMatched {
		w.aminoMatched = true
		w.collab.Checklist.CheckOff(TaskSelectAmino)
	}
	return check, nil
}

func appendPick(chosen []sequence.AminoAcid, raw string) []string {
	out := make([]string, 0, len(chosen)+1)
	for _, aa := range chosen {
		out = append(out, string(aa))
	}
	if raw != "" {
		out = append(out, raw)
	}
	return out
}

func (w *Workflow) logAminoCheck(check AminoCheck) {
	w.log().Info("amino acids checked",
		logging.String("outcome", string(check.Outcome)),
		logging.Int("attempt", check.Attempt),
		logging.Int("expected_length", len(check.Expected)),
		logging.Int("picks", len(check.Picks)),
		logging.Int("mismatches", len(check.Mismatches)),
		logging.String(logging.FieldEventType, "amino_acids_checked"),
	)
}
