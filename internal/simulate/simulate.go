package simulate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ribosim/internal/carrier"
	"ribosim/internal/reconcile"
	"ribosim/internal/sequence"
	"ribosim/internal/workflow"
)

// ErrStalled is returned when the session stops making progress before
// translation completes.
var ErrStalled = errors.New("simulated session stalled")

const maxSteps = 10000

// Options configures a run.
type Options struct {
	// Mistakes is the number of wrong commits to make before the correct one.
	Mistakes int
	Carrier  carrier.Options
	Logger   *slog.Logger
	// Observe, when set, receives every step as it happens.
	Observe func(Step)
	// Clock overrides the simulated start time.
	Clock time.Time
}

// Step is one observable action during a run.
type Step struct {
	At     time.Duration
	Kind   string
	Detail string
}

// Result summarizes a finished run.
type Result struct {
	SessionID   string                 `json:"session_id"`
	Protein     string                 `json:"protein"`
	Chain       []sequence.AminoAcid   `json:"chain"`
	Validations []workflow.Validation  `json:"validations"`
	Phases      []workflow.PhaseChange `json:"phases"`
	Tasks       []workflow.Task        `json:"tasks"`
	AminoChecks []workflow.AminoCheck  `json:"amino_checks"`
	Spawned     int                    `json:"spawned"`
	MaxOnStage  int                    `json:"max_on_stage"`
	Steps       int                    `json:"steps"`
}

type ack struct {
	id   carrier.UnitID
	kind workflow.AnimationKind
}

// bench is the in-process stand-in for the headset.
type bench struct {
	start    time.Time
	now      time.Time
	observe  func(Step)
	rendered sequence.Sequence
	acks     []ack
	transit  bool
	onStage  int
	result   *Result
}

func (b *bench) emit(kind, detail string) {
	if b.observe != nil {
		b.observe(Step{At: b.now.Sub(b.start), Kind: kind, Detail: detail})
	}
}

func (b *bench) RenderPlan(plan reconcile.Plan) {
	keep := min(plan.RebuildFrom, len(b.rendered))
	b.rendered = append(b.rendered[:keep:keep], plan.Suffix...)
	b.emit("render", fmt.Sprintf("gen %d keep %d suffix %s", plan.Generation, plan.KeepPrefix, plan.Suffix))
}

func (b *bench) RenderedSymbols() (sequence.Sequence, bool) { return b.rendered.Clone(), true }

func (b *bench) SpawnCarrier(id carrier.UnitID, codon sequence.Codon, slot int) {
	b.result.Spawned++
	b.emit("spawn", fmt.Sprintf("unit %d codon %s slot %d", id, codon, slot))
}

func (b *bench) PlayEnter(id carrier.UnitID) {
	b.onStage++
	if b.onStage > b.result.MaxOnStage {
		b.result.MaxOnStage = b.onStage
	}
	b.acks = append(b.acks, ack{id: id, kind: workflow.AnimationEnter})
	b.emit("enter", fmt.Sprintf("unit %d", id))
}

func (b *bench) PlayExit(id carrier.UnitID) {
	b.acks = append(b.acks, ack{id: id, kind: workflow.AnimationExit})
	b.emit("exit", fmt.Sprintf("unit %d", id))
}

func (b *bench) Despawn(id carrier.UnitID) {
	b.onStage--
	b.emit("despawn", fmt.Sprintf("unit %d", id))
}

func (b *bench) PlayTransit() {
	b.transit = true
	b.emit("transit", "strand moving to ribosome")
}

func (b *bench) PhaseChanged(change workflow.PhaseChange) {
	b.result.Phases = append(b.result.Phases, change)
	b.emit("phase", fmt.Sprintf("%s -> %s (%s)", change.From, change.To, change.Reason))
}

func (b *bench) ValidationResult(v workflow.Validation) {
	b.result.Validations = append(b.result.Validations, v)
	b.emit("validation", fmt.Sprintf("attempt %d: %s", v.Attempt, v.Outcome))
}

func (b *bench) AminoAcidsChecked(check workflow.AminoCheck) {
	b.result.AminoChecks = append(b.result.AminoChecks, check)
	b.emit("amino_check", fmt.Sprintf("attempt %d: %s", check.Attempt, check.Outcome))
}

func (b *bench) CheckOff(task workflow.Task) {
	b.result.Tasks = append(b.result.Tasks, task)
	b.emit("checklist", string(task))
}

func (b *bench) AppendOutput(aa sequence.AminoAcid) {
	b.result.Chain = append(b.result.Chain, aa)
	b.emit("output", string(aa))
}

// Run plays a full session against templates. The strand is "typed" one
// codon at a time, committed (after any deliberate mistakes), carried to the
// ribosome and translated.
func Run(ctx context.Context, templates workflow.TemplateSource, opts Options) (*Result, error) {
	start := opts.Clock
	if start.IsZero() {
		start = time.Now()
	}
	result := &Result{Protein: templates.Protein()}
	b := &bench{start: start, now: start, observe: opts.Observe, result: result}

	collab := workflow.Collaborators{
		Renderer:  b,
		Animator:  b,
		Narrator:  b,
		Checklist: b,
		Output:    b,
		Templates: templates,
	}
	if opts.Carrier.Logger == nil {
		opts.Carrier.Logger = opts.Logger
	}
	wf, err := workflow.New(collab, workflow.Options{Carrier: opts.Carrier, Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	wf.Start(b.now)
	result.SessionID = wf.SessionID()

	expected := templates.ExpectedTemplate()
	for end := 3; end <= len(expected); end += 3 {
		b.tick()
		if err := wf.HandleTracking(expected[:end], b.now); err != nil {
			return result, fmt.Errorf("track: %w", err)
		}
	}

	for i := 0; i < opts.Mistakes; i++ {
		wrong := mutate(expected, i)
		b.tick()
		if err := wf.HandleTracking(wrong, b.now); err != nil {
			return result, fmt.Errorf("track mistake: %w", err)
		}
		if _, err := wf.Commit(b.now); err != nil {
			return result, fmt.Errorf("commit mistake: %w", err)
		}
	}
	if opts.Mistakes > 0 {
		b.tick()
		if err := wf.HandleTracking(expected, b.now); err != nil {
			return result, fmt.Errorf("retrack: %w", err)
		}
	}

	b.tick()
	v, err := wf.Commit(b.now)
	if err != nil {
		return result, fmt.Errorf("commit: %w", err)
	}
	if v.Outcome != workflow.OutcomeMatch {
		return result, fmt.Errorf("commit rejected: %s", v.Outcome)
	}

	for steps := 0; wf.Phase() != workflow.PhaseComplete; steps++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if steps >= maxSteps {
			return result, fmt.Errorf("%w in %s", ErrStalled, wf.Phase())
		}
		result.Steps++
		b.tick()
		switch {
		case b.transit:
			b.transit = false
			if err := wf.TransitFinished(b.now); err != nil {
				return result, fmt.Errorf("transit: %w", err)
			}
		case len(b.acks) > 0:
			next := b.acks[0]
			b.acks = b.acks[1:]
			if err := wf.AnimationFinished(next.id, next.kind, b.now); err != nil {
				return result, fmt.Errorf("ack %s %d: %w", next.kind, next.id, err)
			}
		default:
			wf.Tick(b.now)
			if len(b.acks) == 0 && !b.transit && wf.Phase() != workflow.PhaseComplete {
				return result, fmt.Errorf("%w in %s with nothing to acknowledge", ErrStalled, wf.Phase())
			}
		}
	}

	// The student reads the delivered chain back as amino acid picks,
	// getting one wrong first when mistakes were requested.
	picks := make([]string, len(result.Chain))
	for i, aa := range result.Chain {
		picks[i] = string(aa)
	}
	if opts.Mistakes > 0 {
		b.tick()
		if _, err := wf.SelectAminoAcids(wrongPicks(picks), b.now); err != nil {
			return result, fmt.Errorf("select mistake: %w", err)
		}
	}
	b.tick()
	check, err := wf.SelectAminoAcids(picks, b.now)
	if err != nil {
		return result, fmt.Errorf("select: %w", err)
	}
	if check.Outcome != workflow.OutcomeMatch {
		return result, fmt.Errorf("amino acid picks rejected: %s", check.Outcome)
	}
	return result, nil
}

// wrongPicks swaps the last pick for a different amino acid, or adds one to
// an empty chain.
func wrongPicks(picks []string) []string {
	if len(picks) == 0 {
		return []string{"Met"}
	}
	wrong := append([]string(nil), picks...)
	last := len(wrong) - 1
	if wrong[last] == "Gly" {
		wrong[last] = "Ala"
	} else {
		wrong[last] = "Gly"
	}
	return wrong
}

// tick advances simulated time by one animation beat.
func (b *bench) tick() { b.now = b.now.Add(250 * time.Millisecond) }

// mutate returns a wrong strand for mistake i: alternately one codon short
// and with a flipped symbol in the middle.
func mutate(expected sequence.Sequence, i int) sequence.Sequence {
	if i%2 == 0 && len(expected) >= 3 {
		return expected[:len(expected)-3].Clone()
	}
	wrong := expected.Clone()
	if len(wrong) == 0 {
		return sequence.MustParse("AUG")
	}
	mid := len(wrong) / 2
	wrong[mid] = sequence.Complement(wrong[mid:mid+1], true)[0]
	return wrong
}
