package testsupport

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"ribosim/internal/carrier"
	"ribosim/internal/reconcile"
	"ribosim/internal/sequence"
	"ribosim/internal/workflow"
)

// Bench records every collaborator call a workflow makes. The rendered strand
// is maintained by applying plans the way a real renderer would, so
// consistency checks see realistic state.
type Bench struct {
	mu sync.Mutex

	ProteinName string
	Template    sequence.Sequence
	// Catalog backs SelectProtein; names not present are rejected.
	Catalog map[string]sequence.Sequence

	Calls       []string
	Plans       []reconcile.Plan
	Rendered    sequence.Sequence
	Phases      []workflow.PhaseChange
	Validations []workflow.Validation
	AminoChecks []workflow.AminoCheck
	Tasks       []workflow.Task
	Output      []sequence.AminoAcid
	Transits    int

	// HideRendered makes RenderedSymbols report no state.
	HideRendered bool
}

// NewBench returns a bench whose expected template is raw.
func NewBench(protein, raw string) *Bench {
	tmpl := sequence.MustParse(raw)
	return &Bench{
		ProteinName: protein,
		Template:    tmpl,
		Catalog:     map[string]sequence.Sequence{protein: tmpl},
	}
}

// Collaborators exposes the bench as every workflow collaborator.
func (b *Bench) Collaborators() workflow.Collaborators {
	return workflow.Collaborators{
		Renderer:  b,
		Animator:  b,
		Narrator:  b,
		Checklist: b,
		Output:    b,
		Templates: b,
	}
}

func (b *Bench) record(format string, args ...any) {
	b.Calls = append(b.Calls, fmt.Sprintf(format, args...))
}

func (b *Bench) RenderPlan(plan reconcile.Plan) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Plans = append(b.Plans, plan)
	keep := plan.RebuildFrom
	if keep > len(b.Rendered) {
		keep = len(b.Rendered)
	}
	b.Rendered = append(b.Rendered[:keep:keep], plan.Suffix...)
	b.record("render keep=%d suffix=%s", plan.KeepPrefix, plan.Suffix)
}

func (b *Bench) RenderedSymbols() (sequence.Sequence, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.HideRendered {
		return nil, false
	}
	return b.Rendered.Clone(), true
}

// Corrupt overwrites one rendered slot to simulate a renderer that drifted.
func (b *Bench) Corrupt(index int, sym sequence.Symbol) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < len(b.Rendered) {
		b.Rendered[index] = sym
	}
}

func (b *Bench) SpawnCarrier(id carrier.UnitID, codon sequence.Codon, slot int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("spawn %d %s @%d", id, codon, slot)
}

func (b *Bench) PlayEnter(id carrier.UnitID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("enter %d", id)
}

func (b *Bench) PlayExit(id carrier.UnitID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("exit %d", id)
}

func (b *Bench) Despawn(id carrier.UnitID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.record("despawn %d", id)
}

func (b *Bench) PlayTransit() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Transits++
	b.record("transit")
}

func (b *Bench) PhaseChanged(change workflow.PhaseChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Phases = append(b.Phases, change)
	b.record("phase %s->%s", change.From, change.To)
}

func (b *Bench) ValidationResult(result workflow.Validation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Validations = append(b.Validations, result)
	b.record("validation %s", result.Outcome)
}

func (b *Bench) AminoAcidsChecked(check workflow.AminoCheck) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.AminoChecks = append(b.AminoChecks, check)
	b.record("amino %s", check.Outcome)
}

func (b *Bench) CheckOff(task workflow.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Tasks = append(b.Tasks, task)
	b.record("check %s", task)
}

func (b *Bench) AppendOutput(aa sequence.AminoAcid) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Output = append(b.Output, aa)
	b.record("output %s", aa)
}

func (b *Bench) ExpectedTemplate() sequence.Sequence {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Template.Clone()
}

func (b *Bench) Protein() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ProteinName
}

// ErrUnknownProtein is returned by SelectProtein for names outside Catalog.
var ErrUnknownProtein = errors.New("unknown protein")

func (b *Bench) SelectProtein(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	tmpl, ok := b.Catalog[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProtein, name)
	}
	b.ProteinName = name
	b.Template = tmpl.Clone()
	b.record("select %s", name)
	return nil
}

// Count returns how many recorded calls start with prefix.
func (b *Bench) Count(prefix string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, call := range b.Calls {
		if strings.HasPrefix(call, prefix) {
			n++
		}
	}
	return n
}

// Chain renders the delivered amino acids joined by dashes.
func (b *Bench) Chain() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	parts := make([]string, len(b.Output))
	for i, aa := range b.Output {
		parts[i] = string(aa)
	}
	return strings.Join(parts, "-")
}
