package history

import "time"

// Session summarizes one bench session.
type Session struct {
	ID          string     `json:"id"`
	Protein     string     `json:"protein"`
	Phase       string     `json:"phase"`
	Attempts    int        `json:"attempts"`
	LastOutcome string     `json:"last_outcome,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Completed reports whether the session reached the end of translation.
func (s Session) Completed() bool { return s.CompletedAt != nil }

// Duration is the time from start to completion, or to the last update for
// sessions that never finished.
func (s Session) Duration() time.Duration {
	if s.CompletedAt != nil {
		return s.CompletedAt.Sub(s.StartedAt)
	}
	return s.UpdatedAt.Sub(s.StartedAt)
}

// EventKind distinguishes journal entries.
type EventKind string

const (
	EventPhase      EventKind = "phase"
	EventValidation EventKind = "validation"
	EventAminoCheck EventKind = "amino_check"
)

// Event is one journal entry.
type Event struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Kind      EventKind `json:"kind"`
	PhaseFrom string    `json:"phase_from,omitempty"`
	PhaseTo   string    `json:"phase_to,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
