package workflow_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"ribosim/internal/carrier"
	"ribosim/internal/logging"
	"ribosim/internal/sequence"
	"ribosim/internal/testsupport"
	"ribosim/internal/workflow"
)

var epoch = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type benchOptions struct {
	capacity int
	overlap  bool
}

func newWorkflow(t *testing.T, template string, opts benchOptions) (*workflow.Workflow, *testsupport.Bench) {
	t.Helper()
	if opts.capacity == 0 {
		opts.capacity = 2
	}
	bench := testsupport.NewBench("Lactase", template)
	sessions := 0
	wf, err := workflow.New(bench.Collaborators(), workflow.Options{
		Carrier: carrier.Options{
			Capacity:     opts.capacity,
			EnterTimeout: 2 * time.Second,
			ExitTimeout:  2 * time.Second,
			Overlap:      opts.overlap,
		},
		TransitTimeout: 8 * time.Second,
		Logger:         logging.NewNop(),
		NewSessionID: func() string {
			sessions++
			return fmt.Sprintf("session-%d", sessions)
		},
	})
	if err != nil {
		t.Fatalf("workflow.New: %v", err)
	}
	wf.Start(epoch)
	return wf, bench
}

func track(t *testing.T, wf *workflow.Workflow, raw string) {
	t.Helper()
	if err := wf.HandleTracking(sequence.MustParse(raw), epoch); err != nil {
		t.Fatalf("HandleTracking(%q): %v", raw, err)
	}
}

func commit(t *testing.T, wf *workflow.Workflow, raw string) workflow.Validation {
	t.Helper()
	track(t, wf, raw)
	result, err := wf.Commit(epoch)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return result
}

// runParade acknowledges every pending animation until the session completes.
func runParade(t *testing.T, wf *workflow.Workflow, capacity int, now time.Time) {
	t.Helper()
	for step := 0; step < 100 && wf.Phase() != workflow.PhaseComplete; step++ {
		now = now.Add(100 * time.Millisecond)
		units := wf.Queue().Units()
		if len(units) == 0 {
			t.Fatalf("parade stalled in %s", wf.Phase())
		}
		for _, u := range units {
			var kind workflow.AnimationKind
			switch u.State {
			case carrier.StateEntering:
				kind = workflow.AnimationEnter
			case carrier.StateExiting:
				kind = workflow.AnimationExit
			default:
				continue
			}
			if err := wf.AnimationFinished(u.ID, kind, now); err != nil {
				t.Fatalf("AnimationFinished(%d, %s): %v", u.ID, kind, err)
			}
			if on := wf.Queue().OnStage(); on > capacity {
				t.Fatalf("capacity exceeded: %d > %d", on, capacity)
			}
		}
	}
	if wf.Phase() != workflow.PhaseComplete {
		t.Fatalf("expected complete, got %s", wf.Phase())
	}
}

func TestTrackingReconcilesAgainstLastStrand(t *testing.T) {
	wf, bench := newWorkflow(t, "TACGGC", benchOptions{})

	track(t, wf, "TAC")
	if wf.Phase() != workflow.PhaseValidatingSequence {
		t.Fatalf("expected validating, got %s", wf.Phase())
	}
	track(t, wf, "TACG")
	track(t, wf, "TAAG")
	track(t, wf, "TAAG")

	if len(bench.Plans) != 3 {
		t.Fatalf("expected 3 plans, got %d", len(bench.Plans))
	}
	cases := []struct {
		keep   int
		suffix string
	}{
		{keep: 0, suffix: "TAC"},
		{keep: 3, suffix: "G"},
		{keep: 2, suffix: "AG"},
	}
	for i, want := range cases {
		got := bench.Plans[i]
		if got.KeepPrefix != want.keep || got.Suffix.String() != want.suffix {
			t.Fatalf("plan %d: got keep=%d suffix=%s, want keep=%d suffix=%s", i, got.KeepPrefix, got.Suffix, want.keep, want.suffix)
		}
	}
	if bench.Rendered.String() != "TAAG" {
		t.Fatalf("rendered strand %s", bench.Rendered)
	}
	if len(bench.Tasks) != 1 || bench.Tasks[0] != workflow.TaskScanNucleus {
		t.Fatalf("expected only scan_nucleus checked, got %v", bench.Tasks)
	}
}

func TestEmptyTrackingKeepsAwaiting(t *testing.T) {
	wf, bench := newWorkflow(t, "TAC", benchOptions{})
	if err := wf.HandleTracking(nil, epoch); err != nil {
		t.Fatalf("HandleTracking: %v", err)
	}
	if wf.Phase() != workflow.PhaseAwaitingSequence || len(bench.Plans) != 0 {
		t.Fatalf("expected no change, phase=%s plans=%d", wf.Phase(), len(bench.Plans))
	}
}

func TestTrackingRejectsForeignSymbolWithoutMutation(t *testing.T) {
	wf, bench := newWorkflow(t, "TAC", benchOptions{})
	track(t, wf, "TA")

	err := wf.HandleTracking(sequence.Sequence{sequence.Thymine, sequence.Symbol('X')}, epoch)
	if !errors.Is(err, sequence.ErrInvalidSymbol) {
		t.Fatalf("expected ErrInvalidSymbol, got %v", err)
	}
	if len(bench.Plans) != 1 {
		t.Fatalf("rejected input must not render, plans=%d", len(bench.Plans))
	}
	last := bench.Validations[len(bench.Validations)-1]
	if last.Outcome != workflow.OutcomeInvalidSymbol {
		t.Fatalf("expected invalid_symbol report, got %s", last.Outcome)
	}
	if got := wf.Snapshot(epoch).Tracked; got != "TA" {
		t.Fatalf("tracked strand changed to %q", got)
	}
}

func TestTrackingInputReportsForeignSymbol(t *testing.T) {
	wf, bench := newWorkflow(t, "AUGG", benchOptions{})
	track(t, wf, "AUG")

	err := wf.HandleTrackingInput("au-xg", epoch)
	if !errors.Is(err, sequence.ErrInvalidSymbol) {
		t.Fatalf("expected ErrInvalidSymbol, got %v", err)
	}
	last := bench.Validations[len(bench.Validations)-1]
	if last.Outcome != workflow.OutcomeInvalidSymbol || last.GotLen != 4 || last.Attempt != 0 {
		t.Fatalf("unexpected report %+v", last)
	}
	snap := wf.Snapshot(epoch)
	if snap.Tracked != "AUG" || snap.Phase != workflow.PhaseValidatingSequence || len(bench.Plans) != 1 {
		t.Fatalf("invalid input mutated state: %+v", snap)
	}

	if err := wf.HandleTrackingInput(" aug-g ", epoch); err != nil {
		t.Fatalf("HandleTrackingInput: %v", err)
	}
	if got := wf.Snapshot(epoch).Tracked; got != "AUGG" {
		t.Fatalf("expected normalized input tracked, got %q", got)
	}
}

func TestRenderDriftForcesFullRebuild(t *testing.T) {
	wf, bench := newWorkflow(t, "TACGGC", benchOptions{})
	track(t, wf, "TACG")
	bench.Corrupt(1, sequence.Guanine)
	track(t, wf, "TACGG")

	plan := bench.Plans[len(bench.Plans)-1]
	if plan.RebuildFrom != 0 || plan.Suffix.String() != "TACGG" {
		t.Fatalf("expected full rebuild, got %+v", plan)
	}
	if bench.Rendered.String() != "TACGG" {
		t.Fatalf("rendered strand %s", bench.Rendered)
	}
}

func TestCommitContentMismatchStaysValidating(t *testing.T) {
	wf, bench := newWorkflow(t, "TACTGC", benchOptions{})
	result := commit(t, wf, "TACTGA")

	if result.Outcome != workflow.OutcomeContentMismatch {
		t.Fatalf("expected content mismatch, got %s", result.Outcome)
	}
	if result.FirstMismatch != 5 || !result.Retryable() {
		t.Fatalf("unexpected result %+v", result)
	}
	if wf.Phase() != workflow.PhaseValidatingSequence {
		t.Fatalf("expected validating, got %s", wf.Phase())
	}
	if bench.Transits != 0 {
		t.Fatal("transit must not start on mismatch")
	}
}

func TestCommitLengthMismatchIsDistinct(t *testing.T) {
	wf, _ := newWorkflow(t, "TACTGC", benchOptions{})
	result := commit(t, wf, "TAC")
	if result.Outcome != workflow.OutcomeLengthMismatch {
		t.Fatalf("expected length mismatch, got %s", result.Outcome)
	}
	if result.ExpectedLen != 6 || result.GotLen != 3 || result.FirstMismatch != -1 {
		t.Fatalf("unexpected result %+v", result)
	}

	retry := commit(t, wf, "TACTGC")
	if retry.Outcome != workflow.OutcomeMatch || retry.Attempt != 2 {
		t.Fatalf("expected matching second attempt, got %+v", retry)
	}
	if wf.Phase() != workflow.PhaseTransit {
		t.Fatalf("expected transit, got %s", wf.Phase())
	}
}

func TestCommitRejectsStrandNotDivisibleIntoCodons(t *testing.T) {
	wf, bench := newWorkflow(t, "AUGG", benchOptions{})
	track(t, wf, "AUGG")
	result, err := wf.Commit(epoch)
	if !errors.Is(err, sequence.ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
	if result.Outcome != workflow.OutcomeInvalidLength {
		t.Fatalf("expected invalid_length, got %s", result.Outcome)
	}
	if wf.Phase() != workflow.PhaseValidatingSequence {
		t.Fatalf("expected validating, got %s", wf.Phase())
	}
	snap := wf.Snapshot(epoch)
	if snap.Attempts != 0 || snap.LastValidation != nil || result.Attempt != 0 {
		t.Fatalf("unreadable strand must not count as an attempt: attempts=%d last=%+v", snap.Attempts, snap.LastValidation)
	}
	if n := len(bench.Validations); n != 1 || bench.Validations[0].Outcome != workflow.OutcomeInvalidLength {
		t.Fatalf("expected invalid_length reported, got %+v", bench.Validations)
	}
}

func TestCommitOutsideValidationRejected(t *testing.T) {
	wf, _ := newWorkflow(t, "AUG", benchOptions{})
	commit(t, wf, "AUG")
	if _, err := wf.Commit(epoch); !errors.Is(err, workflow.ErrUnexpectedPhase) {
		t.Fatalf("expected ErrUnexpectedPhase, got %v", err)
	}
}

func TestFullSessionTranslatesInOrder(t *testing.T) {
	wf, bench := newWorkflow(t, "AUGGGCUUU", benchOptions{capacity: 2})
	commit(t, wf, "AUGGGCUUU")
	if bench.Transits != 1 {
		t.Fatalf("expected one transit, got %d", bench.Transits)
	}

	track(t, wf, "AUG")
	if got := wf.Snapshot(epoch).Tracked; got != "AUGGGCUUU" {
		t.Fatalf("tracking after commit must be ignored, tracked=%q", got)
	}
	for _, task := range bench.Tasks {
		if task == workflow.TaskScanRibosome {
			t.Fatal("scan_ribosome must wait for the strand to reach the ribosome")
		}
	}

	if err := wf.TransitFinished(epoch); err != nil {
		t.Fatalf("TransitFinished: %v", err)
	}
	runParade(t, wf, 2, epoch)

	if got := bench.Chain(); got != "Met-Gly-Phe" {
		t.Fatalf("unexpected chain %s", got)
	}
	if bench.Count("spawn") != 3 || bench.Count("despawn") != 3 {
		t.Fatalf("expected 3 spawns and despawns, calls=%v", bench.Calls)
	}
	wantTasks := []workflow.Task{
		workflow.TaskScanNucleus,
		workflow.TaskArrangeCards,
		workflow.TaskFinishTranscription,
		workflow.TaskScanRibosome,
		workflow.TaskTranslate,
	}
	if fmt.Sprint(bench.Tasks) != fmt.Sprint(wantTasks) {
		t.Fatalf("unexpected checklist %v", bench.Tasks)
	}
	for _, change := range bench.Phases {
		if change.To.Rank() < change.From.Rank() {
			t.Fatalf("phase went backwards: %s -> %s", change.From, change.To)
		}
	}
	last := bench.Phases[len(bench.Phases)-1]
	if last.To != workflow.PhaseComplete {
		t.Fatalf("expected final notification complete, got %s", last.To)
	}
}

func TestStopCodonHaltsTranslation(t *testing.T) {
	wf, bench := newWorkflow(t, "AUGUAAGGC", benchOptions{})
	commit(t, wf, "AUGUAAGGC")
	if err := wf.TransitFinished(epoch); err != nil {
		t.Fatalf("TransitFinished: %v", err)
	}
	runParade(t, wf, 2, epoch)
	if got := bench.Chain(); got != "Met" {
		t.Fatalf("expected translation to stop after Met, got %s", got)
	}
}

func TestLeadingStopCodonCompletesImmediately(t *testing.T) {
	wf, bench := newWorkflow(t, "UAAAUG", benchOptions{})
	commit(t, wf, "UAAAUG")
	if err := wf.TransitFinished(epoch); err != nil {
		t.Fatalf("TransitFinished: %v", err)
	}
	if wf.Phase() != workflow.PhaseComplete {
		t.Fatalf("expected complete, got %s", wf.Phase())
	}
	if bench.Count("spawn") != 0 {
		t.Fatalf("expected no carriers, calls=%v", bench.Calls)
	}
}

func TestTransitTimeoutStartsCycling(t *testing.T) {
	wf, bench := newWorkflow(t, "AUGGGC", benchOptions{})
	commit(t, wf, "AUGGGC")

	wf.Tick(epoch.Add(7 * time.Second))
	if wf.Phase() != workflow.PhaseTransit {
		t.Fatalf("expected transit before timeout, got %s", wf.Phase())
	}
	wf.Tick(epoch.Add(8 * time.Second))
	if wf.Phase() != workflow.PhaseCycling {
		t.Fatalf("expected cycling after timeout, got %s", wf.Phase())
	}
	if bench.Count("spawn 1 AUG") != 1 {
		t.Fatalf("expected first carrier, calls=%v", bench.Calls)
	}
	if !wf.Snapshot(epoch).Degraded {
		t.Fatal("expected degraded snapshot")
	}
	if last := bench.Tasks[len(bench.Tasks)-1]; last != workflow.TaskScanRibosome {
		t.Fatalf("expected scan_ribosome ticked when transit times out, got %v", bench.Tasks)
	}
	if err := wf.TransitFinished(epoch.Add(9 * time.Second)); err != nil {
		t.Fatalf("late transit signal: %v", err)
	}
	if wf.Phase() != workflow.PhaseCycling {
		t.Fatalf("late transit signal changed phase to %s", wf.Phase())
	}
}

func TestTickSettlesStuckCarrier(t *testing.T) {
	wf, bench := newWorkflow(t, "AUGGGC", benchOptions{})
	commit(t, wf, "AUGGGC")
	_ = wf.TransitFinished(epoch)

	wf.Tick(epoch.Add(2 * time.Second))
	if got := bench.Chain(); got != "Met" {
		t.Fatalf("expected Met delivered by timeout, got %q", got)
	}
	if bench.Count("spawn 2 GGC") != 1 {
		t.Fatalf("expected second carrier admitted after timeout, calls=%v", bench.Calls)
	}
}

func TestResetMidCyclingDiscardsEnteringCarriers(t *testing.T) {
	wf, bench := newWorkflow(t, "AUGGGCUUU", benchOptions{capacity: 2, overlap: true})
	commit(t, wf, "AUGGGCUUU")
	if err := wf.TransitFinished(epoch); err != nil {
		t.Fatalf("TransitFinished: %v", err)
	}
	units := wf.Queue().Units()
	if len(units) != 2 {
		t.Fatalf("expected two carriers entering, got %d", len(units))
	}
	for _, u := range units {
		if u.State != carrier.StateEntering {
			t.Fatalf("unit %d in %s", u.ID, u.StateName)
		}
	}
	before := wf.SessionID()

	if err := wf.Reset("", epoch); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if wf.Phase() != workflow.PhaseAwaitingSequence {
		t.Fatalf("expected awaiting, got %s", wf.Phase())
	}
	if wf.Queue().Len() != 0 {
		t.Fatalf("expected empty queue, got %d", wf.Queue().Len())
	}
	if bench.Count("despawn") != 2 || bench.Count("exit") != 0 {
		t.Fatalf("expected silent despawns, calls=%v", bench.Calls)
	}
	if len(bench.Output) != 0 || len(wf.Output()) != 0 {
		t.Fatalf("reset must not deliver output, got %v", bench.Output)
	}
	if wf.SessionID() == before {
		t.Fatal("expected a new session id")
	}
	if len(bench.Rendered) != 0 {
		t.Fatalf("expected rendered strand cleared, got %s", bench.Rendered)
	}

	if err := wf.AnimationFinished(units[0].ID, workflow.AnimationEnter, epoch); err != nil {
		t.Fatalf("stale signal should be ignored, got %v", err)
	}
	if len(bench.Output) != 0 {
		t.Fatalf("stale signal delivered output %v", bench.Output)
	}
}

func TestResetSwitchesProtein(t *testing.T) {
	wf, bench := newWorkflow(t, "AUG", benchOptions{})
	bench.Catalog["Insulin"] = sequence.MustParse("GGC")
	track(t, wf, "AU")

	if err := wf.Reset("Insulin", epoch); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	snap := wf.Snapshot(epoch)
	if snap.Protein != "Insulin" || snap.Expected != "GGC" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	last := bench.Phases[len(bench.Phases)-1]
	if last.To != workflow.PhaseAwaitingSequence || last.Reason != "reset" {
		t.Fatalf("unexpected notification %+v", last)
	}
}

func TestResetUnknownProteinLeavesSessionIntact(t *testing.T) {
	wf, _ := newWorkflow(t, "AUG", benchOptions{})
	track(t, wf, "AU")
	session := wf.SessionID()

	err := wf.Reset("Spidersilk", epoch)
	if !errors.Is(err, testsupport.ErrUnknownProtein) {
		t.Fatalf("expected unknown protein error, got %v", err)
	}
	if wf.Phase() != workflow.PhaseValidatingSequence || wf.SessionID() != session {
		t.Fatalf("failed reset mutated state: phase=%s session=%s", wf.Phase(), wf.SessionID())
	}
}

func TestNewRequiresTemplateSource(t *testing.T) {
	_, err := workflow.New(workflow.Collaborators{}, workflow.Options{Logger: logging.NewNop()})
	if !errors.Is(err, workflow.ErrNoTemplateSource) {
		t.Fatalf("expected ErrNoTemplateSource, got %v", err)
	}
}

func TestParsePhaseAcceptsLabels(t *testing.T) {
	for _, phase := range workflow.Phases() {
		got, err := workflow.ParsePhase(strings.ToUpper(phase.Label()))
		if err != nil || got != phase {
			t.Fatalf("ParsePhase(%s) = %s, %v", phase.Label(), got, err)
		}
	}
	if _, err := workflow.ParsePhase("ribosome"); err == nil {
		t.Fatal("expected error for unknown phase")
	}
	if workflow.PhaseTransit.CanAdvanceTo(workflow.PhaseValidatingSequence) {
		t.Fatal("transit must not return to validation")
	}
}
