package workflow

import (
	"time"

	"ribosim/internal/carrier"
	"ribosim/internal/reconcile"
	"ribosim/internal/sequence"
)

// Renderer draws the tracked strand and reports the symbol stored in each
// rendered slot.
type Renderer interface {
	RenderPlan(plan reconcile.Plan)
	reconcile.RenderedState
}

// Animator drives carrier animations and the strand's move to the ribosome.
type Animator interface {
	carrier.Stage
	PlayTransit()
}

// Narrator receives phase and validation notifications for dialogue and UI.
type Narrator interface {
	PhaseChanged(change PhaseChange)
	ValidationResult(result Validation)
	AminoAcidsChecked(check AminoCheck)
}

// Checklist ticks off the student's task list.
type Checklist interface {
	CheckOff(task Task)
}

// OutputSink receives the growing amino acid chain.
type OutputSink = carrier.OutputSink

// TemplateSource supplies the strand a commit is checked against.
type TemplateSource interface {
	ExpectedTemplate() sequence.Sequence
	Protein() string
}

// ProteinSelector is implemented by template sources that can switch protein
// when a session is reset.
type ProteinSelector interface {
	SelectProtein(name string) error
}

// Task is a checklist entry key.
type Task string

const (
	TaskScanNucleus         Task = "scan_nucleus"
	TaskArrangeCards        Task = "arrange_cards"
	TaskFinishTranscription Task = "finish_transcription"
	TaskScanRibosome        Task = "scan_ribosome"
	TaskTranslate           Task = "translate"
	TaskSelectAmino         Task = "select_amino"
)

// PhaseChange describes one phase transition.
type PhaseChange struct {
	SessionID string    `json:"session_id"`
	Protein   string    `json:"protein"`
	From      Phase     `json:"from"`
	To        Phase     `json:"to"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

// Outcome classifies a commit.
type Outcome string

const (
	OutcomeMatch           Outcome = "match"
	OutcomeLengthMismatch  Outcome = "length_mismatch"
	OutcomeContentMismatch Outcome = "content_mismatch"
	OutcomeInvalidSymbol   Outcome = "invalid_symbol"
	OutcomeInvalidLength   Outcome = "invalid_length"
)

// Validation is the result of checking a committed strand. FirstMismatch is
// -1 unless the outcome is a content mismatch.
type Validation struct {
	SessionID     string  `json:"session_id"`
	Outcome       Outcome `json:"outcome"`
	Attempt       int     `json:"attempt"`
	ExpectedLen   int     `json:"expected_length"`
	GotLen        int     `json:"got_length"`
	FirstMismatch int     `json:"first_mismatch"`
	Detail        string  `json:"detail,omitempty"`
}

// Retryable reports whether the student may try again without a reset.
func (v Validation) Retryable() bool {
	return v.Outcome != OutcomeMatch
}

// AminoCheck is the result of comparing the student's amino acid picks with
// the chain the committed strand encodes. Mismatches holds 0-based positions.
type AminoCheck struct {
	SessionID  string   `json:"session_id"`
	Outcome    Outcome  `json:"outcome"`
	Attempt    int      `json:"attempt"`
	Expected   []string `json:"expected"`
	Picks      []string `json:"picks"`
	Mismatches []int    `json:"mismatches,omitempty"`
	Detail     string   `json:"detail,omitempty"`
}

// Collaborators bundles the outbound interfaces. Nil members are replaced
// with no-ops, except Templates which is required.
type Collaborators struct {
	Renderer  Renderer
	Animator  Animator
	Narrator  Narrator
	Checklist Checklist
	Output    OutputSink
	Templates TemplateSource
}

func (c Collaborators) withDefaults() Collaborators {
	if c.Renderer == nil {
		c.Renderer = Noop{}
	}
	if c.Animator == nil {
		c.Animator = Noop{}
	}
	if c.Narrator == nil {
		c.Narrator = Noop{}
	}
	if c.Checklist == nil {
		c.Checklist = Noop{}
	}
	if c.Output == nil {
		c.Output = Noop{}
	}
	return c
}

// Noop satisfies every collaborator interface and does nothing.
type Noop struct{}

func (Noop) RenderPlan(reconcile.Plan)                        {}
func (Noop) RenderedSymbols() (sequence.Sequence, bool)       { return nil, false }
func (Noop) SpawnCarrier(carrier.UnitID, sequence.Codon, int) {}
func (Noop) PlayEnter(carrier.UnitID)                         {}
func (Noop) PlayExit(carrier.UnitID)                          {}
func (Noop) Despawn(carrier.UnitID)                           {}
func (Noop) PlayTransit()                                     {}
func (Noop) PhaseChanged(PhaseChange)                         {}
func (Noop) ValidationResult(Validation)                      {}
func (Noop) AminoAcidsChecked(AminoCheck)                     {}
func (Noop) CheckOff(Task)                                    {}
func (Noop) AppendOutput(sequence.AminoAcid)                  {}

// Narrators fans notifications out to every non-nil narrator in order.
func Narrators(narrators ...Narrator) Narrator {
	filtered := make(multiNarrator, 0, len(narrators))
	for _, n := range narrators {
		if n != nil {
			filtered = append(filtered, n)
		}
	}
	return filtered
}

type multiNarrator []Narrator

func (m multiNarrator) PhaseChanged(change PhaseChange) {
	for _, n := range m {
		n.PhaseChanged(change)
	}
}

func (m multiNarrator) ValidationResult(result Validation) {
	for _, n := range m {
		n.ValidationResult(result)
	}
}

func (m multiNarrator) AminoAcidsChecked(check AminoCheck) {
	for _, n := range m {
		n.AminoAcidsChecked(check)
	}
}
