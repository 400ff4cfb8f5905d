package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ribosim/internal/carrier"
	"ribosim/internal/services"
	"ribosim/internal/workflow"
)

// Inbound message types.
const (
	TypeTracking          = "tracking"
	TypeCommit            = "commit"
	TypeTransitFinished   = "transit_finished"
	TypeAnimationFinished = "animation_finished"
	TypeReset             = "reset"
	TypeRendered          = "rendered"
	TypeSelectAminoAcids  = "select_amino_acids"
)

// Outbound message types.
const (
	TypeSnapshot         = "snapshot"
	TypeRenderPlan       = "render_plan"
	TypeSpawnCarrier     = "spawn_carrier"
	TypePlayEnter        = "play_enter"
	TypePlayExit         = "play_exit"
	TypeDespawn          = "despawn"
	TypePlayTransit      = "play_transit"
	TypePhaseChanged     = "phase_changed"
	TypeValidationResult = "validation_result"
	TypeCheckOff         = "check_off"
	TypeAppendOutput     = "append_output"
	TypeAminoCheck       = "amino_check"
)

// Inbound is a message from the headset or CLI.
type Inbound struct {
	Type       string   `json:"type"`
	Sequence   string   `json:"sequence,omitempty"`
	Unit       uint64   `json:"unit,omitempty"`
	Animation  string   `json:"animation,omitempty"`
	Protein    string   `json:"protein,omitempty"`
	AminoAcids []string `json:"amino_acids,omitempty"`
	Symbols    string   `json:"symbols,omitempty"`
	Generation uint64   `json:"generation,omitempty"`
}

// Event converts the message into a driver event. Rendered reports are not
// events and return an error here.
func (m Inbound) Event() (workflow.Event, error) {
	switch strings.TrimSpace(m.Type) {
	case TypeTracking:
		return workflow.TrackingEvent{Input: m.Sequence}, nil
	case TypeCommit:
		return workflow.CommitEvent{}, nil
	case TypeTransitFinished:
		return workflow.TransitFinishedEvent{}, nil
	case TypeAnimationFinished:
		kind := workflow.AnimationKind(strings.ToLower(strings.TrimSpace(m.Animation)))
		if kind != workflow.AnimationEnter && kind != workflow.AnimationExit {
			return nil, services.Wrap(services.ErrValidation, "bridge", "animation_finished",
				fmt.Sprintf("unknown animation %q", m.Animation), nil)
		}
		if m.Unit == 0 {
			return nil, services.Wrap(services.ErrValidation, "bridge", "animation_finished", "unit is required", nil)
		}
		return workflow.AnimationFinishedEvent{Unit: carrier.UnitID(m.Unit), Animation: kind}, nil
	case TypeReset:
		return workflow.ResetEvent{Protein: strings.TrimSpace(m.Protein)}, nil
	case TypeSelectAminoAcids:
		return workflow.SelectAminoAcidsEvent{Picks: append([]string(nil), m.AminoAcids...)}, nil
	default:
		return nil, services.Wrap(services.ErrValidation, "bridge", "decode",
			fmt.Sprintf("unsupported message type %q", m.Type), nil)
	}
}

// Envelope wraps every outbound message. Seq increases by one per broadcast
// so clients can spot gaps after a reconnect.
type Envelope struct {
	Type string          `json:"type"`
	Seq  uint64          `json:"seq"`
	Data json.RawMessage `json:"data,omitempty"`
}

// PlanPayload is a render plan on the wire.
type PlanPayload struct {
	Generation     uint64 `json:"generation"`
	PreviousLength int    `json:"previous_length"`
	KeepPrefix     int    `json:"keep_prefix"`
	RebuildFrom    int    `json:"rebuild_from"`
	Suffix         string `json:"suffix"`
}

// CarrierPayload describes a carrier command.
type CarrierPayload struct {
	Unit      uint64 `json:"unit"`
	Codon     string `json:"codon,omitempty"`
	Anticodon string `json:"anticodon,omitempty"`
	AminoAcid string `json:"amino_acid,omitempty"`
	Color     string `json:"color,omitempty"`
	Slot      *int   `json:"slot,omitempty"`
}

// PhasePayload is a phase notification.
type PhasePayload struct {
	SessionID string    `json:"session_id"`
	Protein   string    `json:"protein"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Label     string    `json:"label"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// TaskPayload names a checklist entry.
type TaskPayload struct {
	Task string `json:"task"`
}

// OutputPayload is one amino acid appended to the chain.
type OutputPayload struct {
	AminoAcid string `json:"amino_acid"`
	Color     string `json:"color"`
}

// ProteinInfo is the catalog entry served by /api/proteins.
type ProteinInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Template    string   `json:"template"`
	MRNA        string   `json:"mrna"`
	Chain       []string `json:"chain"`
	Default     bool     `json:"default"`
}
