package workflow

import (
	"fmt"
	"strings"
)

// Phase is the workflow's high-level stage.
type Phase string

const (
	PhaseAwaitingSequence   Phase = "awaiting_sequence"
	PhaseValidatingSequence Phase = "validating_sequence"
	PhaseTransit            Phase = "transit"
	PhaseCycling            Phase = "cycling"
	PhaseComplete           Phase = "complete"
)

var phaseOrder = []Phase{
	PhaseAwaitingSequence,
	PhaseValidatingSequence,
	PhaseTransit,
	PhaseCycling,
	PhaseComplete,
}

var phaseLabels = map[Phase]string{
	PhaseAwaitingSequence:   "AwaitingSequence",
	PhaseValidatingSequence: "ValidatingSequence",
	PhaseTransit:            "Transit",
	PhaseCycling:            "Cycling",
	PhaseComplete:           "Complete",
}

type phaseTransition struct {
	from Phase
	to   Phase
}

// forwardTransitions lists every move allowed without a reset. Reset may
// return to PhaseAwaitingSequence from anywhere.
var forwardTransitions = map[phaseTransition]struct{}{
	{from: PhaseAwaitingSequence, to: PhaseValidatingSequence}:   {},
	{from: PhaseValidatingSequence, to: PhaseValidatingSequence}: {},
	{from: PhaseValidatingSequence, to: PhaseTransit}:            {},
	{from: PhaseTransit, to: PhaseCycling}:                       {},
	{from: PhaseCycling, to: PhaseComplete}:                      {},
}

// Phases returns every phase in workflow order.
func Phases() []Phase {
	return append([]Phase(nil), phaseOrder...)
}

// Rank is the position of p in workflow order, or -1 for an unknown phase.
func (p Phase) Rank() int {
	for i, candidate := range phaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

// Label is the display form, e.g. "ValidatingSequence".
func (p Phase) Label() string {
	if label, ok := phaseLabels[p]; ok {
		return label
	}
	return string(p)
}

// CanAdvanceTo reports whether to is reachable from p without a reset.
func (p Phase) CanAdvanceTo(to Phase) bool {
	_, ok := forwardTransitions[phaseTransition{from: p, to: to}]
	return ok
}

// ParsePhase accepts either the wire name or the display label.
func ParsePhase(value string) (Phase, error) {
	trimmed := strings.TrimSpace(value)
	for _, phase := range phaseOrder {
		if strings.EqualFold(trimmed, string(phase)) || strings.EqualFold(trimmed, phase.Label()) {
			return phase, nil
		}
	}
	return "", fmt.Errorf("unknown phase %q", value)
}
