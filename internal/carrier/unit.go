package carrier

import (
	"fmt"
	"strconv"
	"time"

	"ribosim/internal/sequence"
)

// UnitID identifies a carrier for the lifetime of its queue. Ids are never reused.
type UnitID uint64

func (id UnitID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// State is a carrier lifecycle state.
type State uint8

const (
	StateEntering State = iota
	StateSettled
	StateExiting
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateEntering:
		return "entering"
	case StateSettled:
		return "settled"
	case StateExiting:
		return "exiting"
	case StateRemoved:
		return "removed"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// OnStage reports whether the state counts against queue capacity.
func (s State) OnStage() bool {
	return s == StateEntering || s == StateSettled
}

// unit is owned by the queue; collaborators only ever see its id.
type unit struct {
	id       UnitID
	codon    sequence.Codon
	payload  sequence.AminoAcid
	state    State
	seq      int
	slot     int
	since    time.Time
	degraded bool
}

// Unit is a read-only view of a carrier.
type Unit struct {
	ID          UnitID             `json:"id"`
	Codon       string             `json:"codon"`
	Payload     sequence.AminoAcid `json:"payload"`
	State       State              `json:"-"`
	StateName   string             `json:"state"`
	AdmittedSeq int                `json:"admitted_seq"`
	Slot        int                `json:"slot"`
	Degraded    bool               `json:"degraded,omitempty"`
}

func (u *unit) view() Unit {
	return Unit{
		ID:          u.id,
		Codon:       u.codon.String(),
		Payload:     u.payload,
		State:       u.state,
		StateName:   u.state.String(),
		AdmittedSeq: u.seq,
		Slot:        u.slot,
		Degraded:    u.degraded,
	}
}
