package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ribosim/internal/logging"
	"ribosim/internal/workflow"
)

const defaultRecorderBuffer = 128

type record struct {
	phase      *workflow.PhaseChange
	validation *workflow.Validation
	amino      *workflow.AminoCheck
	at         time.Time
}

func (rec record) empty() bool {
	return rec.phase == nil && rec.validation == nil && rec.amino == nil
}

// Recorder is a workflow narrator that writes to the journal on its own
// goroutine. Notifications never block the driver; when the buffer is full
// the entry is dropped with a warning.
type Recorder struct {
	store   *Store
	logger  *slog.Logger
	now     func() time.Time
	records chan record

	mu      sync.Mutex
	running bool
	done    chan struct{}
	dropped int
}

// NewRecorder wraps store. buffer <= 0 uses the default.
func NewRecorder(store *Store, buffer int, logger *slog.Logger) *Recorder {
	if buffer <= 0 {
		buffer = defaultRecorderBuffer
	}
	return &Recorder{
		store:   store,
		logger:  logging.NewComponentLogger(logger, "history"),
		now:     time.Now,
		records: make(chan record, buffer),
	}
}

// PhaseChanged queues a phase event.
func (r *Recorder) PhaseChanged(change workflow.PhaseChange) {
	r.enqueue(record{phase: &change, at: change.At})
}

// ValidationResult queues a commit attempt.
func (r *Recorder) ValidationResult(result workflow.Validation) {
	r.enqueue(record{validation: &result, at: r.now()})
}

// AminoAcidsChecked queues an amino acid selection check.
func (r *Recorder) AminoAcidsChecked(check workflow.AminoCheck) {
	r.enqueue(record{amino: &check, at: r.now()})
}

func (r *Recorder) enqueue(rec record) {
	select {
	case r.records <- rec:
	default:
		r.mu.Lock()
		r.dropped++
		dropped := r.dropped
		r.mu.Unlock()
		logging.WarnWithContext(r.logger, "history entry dropped; journal writer is behind", "history_dropped",
			logging.Int("dropped_total", dropped),
			logging.String(logging.FieldImpact, "session journal is incomplete"),
			logging.String(logging.FieldErrorHint, "check disk latency for the data directory"),
		)
	}
}

// Dropped is the number of entries discarded because the buffer was full.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Start launches the writer. Entries queued before Start are written once it runs.
func (r *Recorder) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.done = make(chan struct{})
	go r.run(ctx, r.done)
}

// Stop waits for the writer to flush what is already queued and exit.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	done := r.done
	r.mu.Unlock()

	select {
	case r.records <- record{}:
	case <-done:
	}
	<-done
}

func (r *Recorder) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			r.flush(context.Background())
			return
		case rec := <-r.records:
			if rec.empty() {
				r.flush(ctx)
				return
			}
			r.write(ctx, rec)
		}
	}
}

func (r *Recorder) flush(ctx context.Context) {
	for {
		select {
		case rec := <-r.records:
			if !rec.empty() {
				r.write(ctx, rec)
			}
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec record) {
	var (
		err     error
		session string
	)
	switch {
	case rec.phase != nil:
		session = rec.phase.SessionID
		err = r.store.RecordPhase(ctx, *rec.phase)
	case rec.validation != nil:
		session = rec.validation.SessionID
		err = r.store.RecordValidation(ctx, *rec.validation, rec.at)
	case rec.amino != nil:
		session = rec.amino.SessionID
		err = r.store.RecordAminoCheck(ctx, *rec.amino, rec.at)
	}
	if err != nil {
		logging.WarnWithContext(r.logger, "history write failed", "history_write_failed",
			logging.String(logging.FieldSessionID, session),
			logging.Error(err),
			logging.String(logging.FieldImpact, "session journal is incomplete"),
			logging.String(logging.FieldErrorHint, "check the history database"),
		)
	}
}
