package workflow

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ribosim/internal/carrier"
	"ribosim/internal/logging"
	"ribosim/internal/reconcile"
	"ribosim/internal/sequence"
)

var (
	// ErrUnexpectedPhase rejects a command that does not apply to the current phase.
	ErrUnexpectedPhase = errors.New("command not valid in current phase")
	// ErrNoTemplateSource is returned by New when Collaborators.Templates is nil.
	ErrNoTemplateSource = errors.New("workflow requires a template source")
)

const defaultTransitTimeout = 20 * time.Second

// Options configures a Workflow.
type Options struct {
	Carrier        carrier.Options
	TransitTimeout time.Duration
	Logger         *slog.Logger
	NewSessionID   func() string
}

// Workflow is one lab bench: the tracked strand, the carrier queue and the
// phase that gates them. It is not safe for concurrent use; run it through a
// Driver.
type Workflow struct {
	logger         *slog.Logger
	collab         Collaborators
	engine         *reconcile.Engine
	queue          *carrier.Queue
	transitTimeout time.Duration
	newSessionID   func() string

	phase          Phase
	sessionID      string
	startedAt      time.Time
	tracked        sequence.Sequence
	committed      sequence.Sequence
	pending        []sequence.Codon
	codonTotal     int
	output         []sequence.AminoAcid
	chain          []sequence.AminoAcid
	transitSince   time.Time
	attempts       int
	lastValidation *Validation
	aminoAttempts  int
	lastAminoCheck *AminoCheck
	aminoMatched   bool
	scannedNucleus bool
	degraded       bool
}

// New constructs a workflow waiting for its first tracked strand.
func New(collab Collaborators, opts Options) (*Workflow, error) {
	if collab.Templates == nil {
		return nil, ErrNoTemplateSource
	}
	collab = collab.withDefaults()
	if opts.TransitTimeout <= 0 {
		opts.TransitTimeout = defaultTransitTimeout
	}
	if opts.NewSessionID == nil {
		opts.NewSessionID = uuid.NewString
	}
	logger := logging.NewComponentLogger(opts.Logger, "workflow")
	if opts.Carrier.Logger == nil {
		opts.Carrier.Logger = opts.Logger
	}

	w := &Workflow{
		logger:         logger,
		collab:         collab,
		engine:         reconcile.NewEngine(opts.Logger),
		transitTimeout: opts.TransitTimeout,
		newSessionID:   opts.NewSessionID,
		phase:          PhaseAwaitingSequence,
	}
	w.queue = carrier.NewQueue(collab.Animator, outputTap{w: w}, opts.Carrier)
	w.sessionID = w.newSessionID()
	return w, nil
}

// Start announces the initial session to the narrator.
func (w *Workflow) Start(now time.Time) {
	w.startedAt = now
	w.notifyPhase(PhaseAwaitingSequence, PhaseAwaitingSequence, "session started", now)
}

// Phase returns the current phase.
func (w *Workflow) Phase() Phase { return w.phase }

// SessionID returns the current session identifier.
func (w *Workflow) SessionID() string { return w.sessionID }

// Output returns the amino acids delivered so far.
func (w *Workflow) Output() []sequence.AminoAcid {
	return append([]sequence.AminoAcid(nil), w.output...)
}

// Queue exposes the carrier queue for inspection.
func (w *Workflow) Queue() *carrier.Queue { return w.queue }

func (w *Workflow) setPhase(to Phase, reason string, now time.Time) {
	from := w.phase
	if !from.CanAdvanceTo(to) && to != PhaseAwaitingSequence {
		logging.ErrorWithContext(w.log(), "refusing out-of-order phase transition", "phase_transition_rejected",
			logging.String("from", from.Label()),
			logging.String("to", to.Label()),
		)
		return
	}
	w.phase = to
	if from == to {
		return
	}
	w.log().Info("phase changed",
		logging.String("from", from.Label()),
		logging.String("reason", reason),
		logging.String(logging.FieldEventType, "phase_changed"),
	)
	w.notifyPhase(from, to, reason, now)
}

func (w *Workflow) notifyPhase(from, to Phase, reason string, now time.Time) {
	w.collab.Narrator.PhaseChanged(PhaseChange{
		SessionID: w.sessionID,
		Protein:   w.collab.Templates.Protein(),
		From:      from,
		To:        to,
		Reason:    reason,
		At:        now,
	})
}

func (w *Workflow) log() *slog.Logger {
	return w.logger.With(
		logging.String(logging.FieldSessionID, w.sessionID),
		logging.String(logging.FieldPhase, w.phase.Label()),
	)
}

// outputTap mirrors delivered amino acids into the snapshot before handing
// them to the real sink.
type outputTap struct {
	w *Workflow
}

func (t outputTap) AppendOutput(aa sequence.AminoAcid) {
	t.w.output = append(t.w.output, aa)
	t.w.collab.Output.AppendOutput(aa)
}
