package carrier

import (
	"fmt"
	"log/slog"
	"time"

	"ribosim/internal/logging"
	"ribosim/internal/sequence"
)

// Stage is the render side of the carrier parade.
type Stage interface {
	SpawnCarrier(id UnitID, codon sequence.Codon, slot int)
	PlayEnter(id UnitID)
	PlayExit(id UnitID)
	Despawn(id UnitID)
}

// OutputSink receives each delivered amino acid exactly once, in admission order.
type OutputSink interface {
	AppendOutput(aa sequence.AminoAcid)
}

// Options configures a Queue.
type Options struct {
	Capacity     int
	EnterTimeout time.Duration
	ExitTimeout  time.Duration
	// Overlap lets a carrier enter while its predecessor is still entering.
	Overlap bool
	Logger  *slog.Logger
}

const (
	defaultCapacity     = 2
	defaultEnterTimeout = 6 * time.Second
	defaultExitTimeout  = 6 * time.Second
)

// Queue owns every carrier and enforces the on-stage capacity. It is not safe
// for concurrent use; the workflow driver is its only caller.
type Queue struct {
	capacity     int
	enterTimeout time.Duration
	exitTimeout  time.Duration
	overlap      bool
	logger       *slog.Logger
	stage        Stage
	output       OutputSink

	units    []*unit
	nextID   UnitID
	lastID   UnitID
	admitted int
}

// NewQueue constructs an empty queue. Zero options take package defaults.
func NewQueue(stage Stage, output OutputSink, opts Options) *Queue {
	if opts.Capacity <= 0 {
		opts.Capacity = defaultCapacity
	}
	if opts.EnterTimeout <= 0 {
		opts.EnterTimeout = defaultEnterTimeout
	}
	if opts.ExitTimeout <= 0 {
		opts.ExitTimeout = defaultExitTimeout
	}
	return &Queue{
		capacity:     opts.Capacity,
		enterTimeout: opts.EnterTimeout,
		exitTimeout:  opts.ExitTimeout,
		overlap:      opts.Overlap,
		logger:       logging.NewComponentLogger(opts.Logger, "carrier"),
		stage:        stage,
		output:       output,
	}
}

// Admit puts a carrier for codon on stage in the Entering state.
//
// Unless Options.Overlap is set it returns ErrPredecessorEntering while the
// previously admitted carrier has not settled. It returns ErrQueueFull when
// the stage is at capacity; the oldest settled carrier then starts exiting,
// so a retry on a later tick succeeds. Neither error is a fault.
func (q *Queue) Admit(codon sequence.Codon, now time.Time) (UnitID, error) {
	if !q.overlap {
		if prev := q.find(q.lastID); prev != nil && prev.state == StateEntering {
			return 0, ErrPredecessorEntering
		}
	}
	if q.OnStage() >= q.capacity {
		if oldest := q.oldestSettled(); oldest != nil {
			q.beginExit(oldest, now, "evicted")
		}
		return 0, ErrQueueFull
	}

	q.nextID++
	q.admitted++
	u := &unit{
		id:      q.nextID,
		codon:   codon,
		payload: sequence.Translate(codon),
		state:   StateEntering,
		seq:     q.admitted,
		slot:    codon.Ordinal(),
		since:   now,
	}
	q.units = append(q.units, u)
	q.lastID = u.id

	q.stage.SpawnCarrier(u.id, codon, u.slot)
	q.stage.PlayEnter(u.id)
	q.unitLogger(u).Debug("carrier admitted",
		logging.String("codon", codon.String()),
		logging.String("amino_acid", string(u.payload)),
		logging.Int("on_stage", q.OnStage()),
	)
	return u.id, nil
}

// ReportEnterFinished settles an Entering carrier and delivers its payload.
// A repeat signal for a settled carrier is a no-op.
func (q *Queue) ReportEnterFinished(id UnitID) error {
	u := q.find(id)
	if u == nil {
		q.logger.Debug("enter signal for unknown carrier ignored",
			logging.Uint64(logging.FieldUnitID, uint64(id)),
			logging.String(logging.FieldEventType, "stale_signal"),
		)
		return fmt.Errorf("%w: %d", ErrUnknownUnit, id)
	}
	if u.state != StateEntering {
		return nil
	}
	q.settle(u)
	return nil
}

// ReportExitFinished removes an Exiting carrier and despawns it.
func (q *Queue) ReportExitFinished(id UnitID) error {
	u := q.find(id)
	if u == nil {
		q.logger.Debug("exit signal for unknown carrier ignored",
			logging.Uint64(logging.FieldUnitID, uint64(id)),
			logging.String(logging.FieldEventType, "stale_signal"),
		)
		return fmt.Errorf("%w: %d", ErrUnknownUnit, id)
	}
	if u.state != StateExiting {
		q.unitLogger(u).Debug("exit signal before exit started ignored",
			logging.String("state", u.state.String()),
			logging.String(logging.FieldEventType, "early_signal"),
		)
		return nil
	}
	q.remove(u)
	return nil
}

// Drain starts the exit of every settled carrier and reports whether the
// queue is empty. Entering carriers settle first so their payload is still
// delivered; call Drain again on later ticks until it returns true.
func (q *Queue) Drain(now time.Time) bool {
	for _, u := range q.snapshotUnits() {
		if u.state == StateSettled {
			q.beginExit(u, now, "drained")
		}
	}
	return len(q.units) == 0
}

// Tick forces overdue transitions. Timeouts only ever move a carrier forward.
func (q *Queue) Tick(now time.Time) {
	for _, u := range q.snapshotUnits() {
		switch u.state {
		case StateEntering:
			if now.Sub(u.since) >= q.enterTimeout {
				q.timeout(u, "enter")
				q.settle(u)
			}
		case StateExiting:
			if now.Sub(u.since) >= q.exitTimeout {
				q.timeout(u, "exit")
				q.remove(u)
			}
		}
	}
}

// Cancel removes every carrier without exit animations or output. Signals
// that arrive later for these ids are stale.
func (q *Queue) Cancel() int {
	cancelled := 0
	for _, u := range q.units {
		if u.state == StateRemoved {
			continue
		}
		u.state = StateRemoved
		q.stage.Despawn(u.id)
		cancelled++
	}
	q.units = nil
	q.lastID = 0
	q.admitted = 0
	if cancelled > 0 {
		q.logger.Debug("carriers cancelled",
			logging.Int("count", cancelled),
			logging.String(logging.FieldEventType, "carriers_cancelled"),
		)
	}
	return cancelled
}

// OnStage counts carriers that occupy capacity.
func (q *Queue) OnStage() int {
	n := 0
	for _, u := range q.units {
		if u.state.OnStage() {
			n++
		}
	}
	return n
}

// Len counts carriers not yet removed.
func (q *Queue) Len() int {
	return len(q.units)
}

// Capacity returns the on-stage limit.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Units returns views of every live carrier in admission order.
func (q *Queue) Units() []Unit {
	out := make([]Unit, 0, len(q.units))
	for _, u := range q.units {
		out = append(out, u.view())
	}
	return out
}

// State returns the state of id, or false when the id is unknown.
func (q *Queue) State(id UnitID) (State, bool) {
	if u := q.find(id); u != nil {
		return u.state, true
	}
	return StateRemoved, false
}

func (q *Queue) settle(u *unit) {
	u.state = StateSettled
	q.output.AppendOutput(u.payload)
	q.unitLogger(u).Debug("carrier settled",
		logging.String("amino_acid", string(u.payload)),
		logging.Bool("degraded", u.degraded),
	)
}

func (q *Queue) beginExit(u *unit, now time.Time, reason string) {
	u.state = StateExiting
	u.since = now
	q.stage.PlayExit(u.id)
	q.unitLogger(u).Debug("carrier exiting", logging.String("reason", reason))
}

func (q *Queue) remove(u *unit) {
	u.state = StateRemoved
	q.stage.Despawn(u.id)
	for i, candidate := range q.units {
		if candidate == u {
			q.units = append(q.units[:i], q.units[i+1:]...)
			break
		}
	}
}

func (q *Queue) timeout(u *unit, kind string) {
	u.degraded = true
	logging.WarnWithContext(q.unitLogger(u), "carrier animation signal missing; forcing transition", "animation_timeout",
		logging.String("animation", kind),
		logging.String("state", u.state.String()),
		logging.Error(ErrAnimationTimeout),
		logging.String(logging.FieldErrorHint, "check the headset bridge connection"),
		logging.String(logging.FieldImpact, "carrier animation may look cut short"),
	)
}

func (q *Queue) oldestSettled() *unit {
	for _, u := range q.units {
		if u.state == StateSettled {
			return u
		}
	}
	return nil
}

func (q *Queue) find(id UnitID) *unit {
	if id == 0 {
		return nil
	}
	for _, u := range q.units {
		if u.id == id {
			return u
		}
	}
	return nil
}

func (q *Queue) snapshotUnits() []*unit {
	return append([]*unit(nil), q.units...)
}

func (q *Queue) unitLogger(u *unit) *slog.Logger {
	return q.logger.With(logging.Uint64(logging.FieldUnitID, uint64(u.id)))
}
