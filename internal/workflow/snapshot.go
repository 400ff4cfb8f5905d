package workflow

import (
	"time"

	"ribosim/internal/carrier"
)

// Snapshot is an immutable view of a workflow for readers outside the driver.
type Snapshot struct {
	SessionID      string         `json:"session_id"`
	Protein        string         `json:"protein"`
	Phase          Phase          `json:"phase"`
	Tracked        string         `json:"tracked"`
	Expected       string         `json:"expected"`
	Committed      string         `json:"committed,omitempty"`
	Generation     uint64         `json:"generation"`
	Output         []string       `json:"output"`
	Units          []carrier.Unit `json:"units"`
	Pending        int            `json:"pending_codons"`
	Attempts       int            `json:"attempts"`
	LastValidation *Validation    `json:"last_validation,omitempty"`
	AminoAttempts  int            `json:"amino_attempts"`
	LastAminoCheck *AminoCheck    `json:"last_amino_check,omitempty"`
	Degraded       bool           `json:"degraded"`
	StartedAt      time.Time      `json:"started_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Snapshot captures the current state.
func (w *Workflow) Snapshot(now time.Time) Snapshot {
	output := make([]string, 0, len(w.output))
	for _, aa := range w.output {
		output = append(output, string(aa))
	}
	snap := Snapshot{
		SessionID:     w.sessionID,
		Protein:       w.collab.Templates.Protein(),
		Phase:         w.phase,
		Tracked:       w.tracked.String(),
		Expected:      w.collab.Templates.ExpectedTemplate().String(),
		Committed:     w.committed.String(),
		Generation:    w.engine.Generation(),
		Output:        output,
		Units:         w.queue.Units(),
		Pending:       len(w.pending),
		Attempts:      w.attempts,
		AminoAttempts: w.aminoAttempts,
		Degraded:      w.degraded,
		StartedAt:     w.startedAt,
		UpdatedAt:     now,
	}
	if w.lastValidation != nil {
		v := *w.lastValidation
		snap.LastValidation = &v
	}
	if w.lastAminoCheck != nil {
		c := *w.lastAminoCheck
		c.Expected = append([]string(nil), c.Expected...)
		c.Picks = append([]string(nil), c.Picks...)
		c.Mismatches = append([]int(nil), c.Mismatches...)
		snap.LastAminoCheck = &c
	}
	return snap
}
