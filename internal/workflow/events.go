package workflow

import (
	"time"

	"ribosim/internal/carrier"
)

// Event is an inbound signal applied by the driver.
type Event interface {
	Kind() string
	apply(w *Workflow, now time.Time) error
}

// AnimationKind distinguishes enter and exit animation signals.
type AnimationKind string

const (
	AnimationEnter AnimationKind = "enter"
	AnimationExit  AnimationKind = "exit"
)

// TrackingEvent carries the card input currently assembled on the table,
// exactly as the tracker read it. The workflow parses it.
type TrackingEvent struct {
	Input string
}

func (TrackingEvent) Kind() string { return "tracking" }

func (e TrackingEvent) apply(w *Workflow, now time.Time) error {
	return w.HandleTrackingInput(e.Input, now)
}

// CommitEvent asks for the tracked strand to be validated.
type CommitEvent struct{}

func (CommitEvent) Kind() string { return "commit" }

func (CommitEvent) apply(w *Workflow, now time.Time) error {
	_, err := w.Commit(now)
	return err
}

// TransitFinishedEvent reports that the strand reached the ribosome.
type TransitFinishedEvent struct{}

func (TransitFinishedEvent) Kind() string { return "transit_finished" }

func (TransitFinishedEvent) apply(w *Workflow, now time.Time) error {
	return w.TransitFinished(now)
}

// AnimationFinishedEvent reports a finished carrier animation.
type AnimationFinishedEvent struct {
	Unit      carrier.UnitID
	Animation AnimationKind
}

func (AnimationFinishedEvent) Kind() string { return "animation_finished" }

func (e AnimationFinishedEvent) apply(w *Workflow, now time.Time) error {
	return w.AnimationFinished(e.Unit, e.Animation, now)
}

// SelectAminoAcidsEvent carries the student's amino acid picks in codon order.
type SelectAminoAcidsEvent struct {
	Picks []string
}

func (SelectAminoAcidsEvent) Kind() string { return "select_amino_acids" }

func (e SelectAminoAcidsEvent) apply(w *Workflow, now time.Time) error {
	_, err := w.SelectAminoAcids(e.Picks, now)
	return err
}

// ResetEvent starts a new session, optionally with a different protein.
type ResetEvent struct {
	Protein string
}

func (ResetEvent) Kind() string { return "reset" }

func (e ResetEvent) apply(w *Workflow, now time.Time) error {
	return w.Reset(e.Protein, now)
}
