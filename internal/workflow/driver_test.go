package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ribosim/internal/logging"
	"ribosim/internal/services"
	"ribosim/internal/workflow"
)

func newDriver(t *testing.T, template string, buffer int) (*workflow.Driver, *time.Time) {
	t.Helper()
	wf, _ := newWorkflow(t, template, benchOptions{})
	clock := epoch
	d := workflow.NewDriver(wf, workflow.DriverOptions{
		Buffer:       buffer,
		TickInterval: time.Millisecond,
		Logger:       logging.NewNop(),
		Now:          func() time.Time { return clock },
	})
	return d, &clock
}

func TestDriverPumpAppliesEventsInOrder(t *testing.T) {
	d, _ := newDriver(t, "AUGGGC", 8)
	if err := d.SubmitTracking("AUG-GGC"); err != nil {
		t.Fatalf("SubmitTracking: %v", err)
	}
	if err := d.Submit(workflow.CommitEvent{}); err != nil {
		t.Fatalf("Submit commit: %v", err)
	}
	if err := d.Submit(workflow.TransitFinishedEvent{}); err != nil {
		t.Fatalf("Submit transit: %v", err)
	}

	if applied := d.Pump(); applied != 3 {
		t.Fatalf("expected 3 events applied, got %d", applied)
	}
	snap := d.Snapshot()
	if snap.Phase != workflow.PhaseCycling {
		t.Fatalf("expected cycling, got %s", snap.Phase)
	}
	if len(snap.Units) != 1 || snap.Units[0].ID != 1 {
		t.Fatalf("expected first carrier in snapshot, got %+v", snap.Units)
	}
	if snap.LastValidation == nil || snap.LastValidation.Outcome != workflow.OutcomeMatch {
		t.Fatalf("expected match recorded, got %+v", snap.LastValidation)
	}

	if err := d.Submit(workflow.AnimationFinishedEvent{Unit: 1, Animation: workflow.AnimationEnter}); err != nil {
		t.Fatalf("Submit animation: %v", err)
	}
	d.Pump()
	if got := d.Snapshot().Output; len(got) != 1 || got[0] != "Met" {
		t.Fatalf("expected Met output, got %v", got)
	}
}

func TestDriverRejectsBacklog(t *testing.T) {
	d, _ := newDriver(t, "AUG", 1)
	if err := d.Submit(workflow.CommitEvent{}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	err := d.Submit(workflow.CommitEvent{})
	if !errors.Is(err, workflow.ErrEventBacklog) || !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected backlog error, got %v", err)
	}
	d.Pump()
	if err := d.Submit(workflow.CommitEvent{}); err != nil {
		t.Fatalf("submit after pump: %v", err)
	}
}

func TestDriverSubmitTrackingQueuesRawInput(t *testing.T) {
	d, _ := newDriver(t, "AUG", 4)
	if err := d.SubmitTracking("AUX"); err != nil {
		t.Fatalf("SubmitTracking: %v", err)
	}
	if d.Pump() != 1 {
		t.Fatal("expected raw input queued for the workflow")
	}
	snap := d.Snapshot()
	if snap.Phase != workflow.PhaseAwaitingSequence || snap.Tracked != "" || snap.Attempts != 0 {
		t.Fatalf("invalid input must leave state untouched, got %+v", snap)
	}
}

func TestDriverTickAppliesTimeouts(t *testing.T) {
	d, clock := newDriver(t, "AUG", 4)
	_ = d.SubmitTracking("AUG")
	_ = d.Submit(workflow.CommitEvent{})
	d.Pump()
	if d.Snapshot().Phase != workflow.PhaseTransit {
		t.Fatalf("expected transit, got %s", d.Snapshot().Phase)
	}
	*clock = clock.Add(8 * time.Second)
	d.Pump()
	if d.Snapshot().Phase != workflow.PhaseCycling {
		t.Fatalf("expected cycling after transit timeout, got %s", d.Snapshot().Phase)
	}
}

func TestDriverStartStop(t *testing.T) {
	d, _ := newDriver(t, "AUG", 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}
	if err := d.SubmitTracking("AU"); err != nil {
		t.Fatalf("SubmitTracking: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for d.Snapshot().Phase != workflow.PhaseValidatingSequence {
		if time.Now().After(deadline) {
			t.Fatal("driver loop never applied the event")
		}
		time.Sleep(5 * time.Millisecond)
	}
	d.Stop()
	d.Stop()
}
