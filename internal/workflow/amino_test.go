package workflow_test

import (
	"errors"
	"testing"

	"ribosim/internal/sequence"
	"ribosim/internal/workflow"
)

func countTask(tasks []workflow.Task, want workflow.Task) int {
	n := 0
	for _, task := range tasks {
		if task == want {
			n++
		}
	}
	return n
}

func TestSelectAminoAcidsBeforeCommitRejected(t *testing.T) {
	wf, bench := newWorkflow(t, "AUGGGC", benchOptions{})
	track(t, wf, "AUGGGC")
	_, err := wf.SelectAminoAcids([]string{"Met", "Gly"}, epoch)
	if !errors.Is(err, workflow.ErrUnexpectedPhase) {
		t.Fatalf("expected ErrUnexpectedPhase, got %v", err)
	}
	if len(bench.AminoChecks) != 0 {
		t.Fatalf("unexpected report %+v", bench.AminoChecks)
	}
}

func TestSelectAminoAcidsComparesEachPosition(t *testing.T) {
	wf, bench := newWorkflow(t, "AUGGGCUUUUAA", benchOptions{})
	commit(t, wf, "AUGGGCUUUUAA")

	tests := []struct {
		name       string
		picks      []string
		outcome    workflow.Outcome
		mismatches []int
	}{
		{name: "too few", picks: []string{"Met", "Gly"}, outcome: workflow.OutcomeLengthMismatch},
		{name: "stop is not picked", picks: []string{"Met", "Gly", "Phe", "Leu"}, outcome: workflow.OutcomeLengthMismatch},
		{name: "wrong positions", picks: []string{"Met", "Ala", "Leu"}, outcome: workflow.OutcomeContentMismatch, mismatches: []int{1, 2}},
		{name: "match in any case", picks: []string{"MET", " gly", "", "phe"}, outcome: workflow.OutcomeMatch},
	}
	for i, tt := range tests {
		check, err := wf.SelectAminoAcids(tt.picks, epoch)
		if err != nil {
			t.Fatalf("%s: SelectAminoAcids: %v", tt.name, err)
		}
		if check.Outcome != tt.outcome || check.Attempt != i+1 {
			t.Fatalf("%s: got %+v", tt.name, check)
		}
		if len(check.Mismatches) != len(tt.mismatches) {
			t.Fatalf("%s: mismatches %v, want %v", tt.name, check.Mismatches, tt.mismatches)
		}
		for j := range tt.mismatches {
			if check.Mismatches[j] != tt.mismatches[j] {
				t.Fatalf("%s: mismatches %v, want %v", tt.name, check.Mismatches, tt.mismatches)
			}
		}
	}

	last := bench.AminoChecks[len(bench.AminoChecks)-1]
	if got := last.Expected; len(got) != 3 || got[0] != "Met" || got[2] != "Phe" {
		t.Fatalf("unexpected expected chain %v", got)
	}
	if got := last.Picks; len(got) != 3 || got[0] != "Met" || got[1] != "Gly" {
		t.Fatalf("expected normalized picks, got %v", got)
	}
	if countTask(bench.Tasks, workflow.TaskSelectAmino) != 1 {
		t.Fatalf("expected select_amino ticked once on the match, got %v", bench.Tasks)
	}

	if _, err := wf.SelectAminoAcids([]string{"Met", "Gly", "Phe"}, epoch); err != nil {
		t.Fatalf("repeat match: %v", err)
	}
	if countTask(bench.Tasks, workflow.TaskSelectAmino) != 1 {
		t.Fatalf("select_amino ticked twice: %v", bench.Tasks)
	}
	snap := wf.Snapshot(epoch)
	if snap.AminoAttempts != 5 || snap.LastAminoCheck == nil || snap.LastAminoCheck.Outcome != workflow.OutcomeMatch {
		t.Fatalf("unexpected snapshot attempts=%d last=%+v", snap.AminoAttempts, snap.LastAminoCheck)
	}
}

func TestSelectAminoAcidsMismatchLeavesChecklistAlone(t *testing.T) {
	wf, bench := newWorkflow(t, "AUGGGC", benchOptions{})
	commit(t, wf, "AUGGGC")
	if err := wf.TransitFinished(epoch); err != nil {
		t.Fatalf("TransitFinished: %v", err)
	}
	runParade(t, wf, 2, epoch)

	check, err := wf.SelectAminoAcids([]string{"Gly", "Met"}, epoch)
	if err != nil {
		t.Fatalf("SelectAminoAcids: %v", err)
	}
	if check.Outcome != workflow.OutcomeContentMismatch {
		t.Fatalf("expected content mismatch, got %+v", check)
	}
	if countTask(bench.Tasks, workflow.TaskSelectAmino) != 0 {
		t.Fatalf("select_amino ticked on a mismatch: %v", bench.Tasks)
	}
	if last := bench.Tasks[len(bench.Tasks)-1]; last != workflow.TaskTranslate {
		t.Fatalf("expected translate as the last tick, got %v", bench.Tasks)
	}
}

func TestSelectAminoAcidsUnknownCodeNotCounted(t *testing.T) {
	wf, bench := newWorkflow(t, "AUGGGC", benchOptions{})
	commit(t, wf, "AUGGGC")

	check, err := wf.SelectAminoAcids([]string{"Met", "Xyz"}, epoch)
	if !errors.Is(err, sequence.ErrUnknownAminoAcid) {
		t.Fatalf("expected ErrUnknownAminoAcid, got %v", err)
	}
	if check.Outcome != workflow.OutcomeInvalidSymbol || check.Attempt != 0 {
		t.Fatalf("unexpected check %+v", check)
	}
	if len(bench.AminoChecks) != 1 || bench.AminoChecks[0].Picks[1] != "Xyz" {
		t.Fatalf("expected the rejected pick reported, got %+v", bench.AminoChecks)
	}
	snap := wf.Snapshot(epoch)
	if snap.AminoAttempts != 0 || snap.LastAminoCheck != nil {
		t.Fatalf("unknown code must not count: %+v", snap)
	}
}

func TestResetClearsAminoSelection(t *testing.T) {
	wf, bench := newWorkflow(t, "AUG", benchOptions{})
	commit(t, wf, "AUG")
	if _, err := wf.SelectAminoAcids([]string{"Met"}, epoch); err != nil {
		t.Fatalf("SelectAminoAcids: %v", err)
	}
	if err := wf.Reset("", epoch); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	snap := wf.Snapshot(epoch)
	if snap.AminoAttempts != 0 || snap.LastAminoCheck != nil {
		t.Fatalf("reset kept amino state: %+v", snap)
	}

	commit(t, wf, "AUG")
	if _, err := wf.SelectAminoAcids([]string{"Met"}, epoch); err != nil {
		t.Fatalf("SelectAminoAcids after reset: %v", err)
	}
	if countTask(bench.Tasks, workflow.TaskSelectAmino) != 2 {
		t.Fatalf("expected select_amino once per session, got %v", bench.Tasks)
	}
}
