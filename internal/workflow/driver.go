package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"ribosim/internal/carrier"
	"ribosim/internal/logging"
	"ribosim/internal/sequence"
	"ribosim/internal/services"
)

// ErrEventBacklog is returned by Submit when the event buffer is full.
var ErrEventBacklog = services.Wrap(services.ErrUnavailable, "workflow", "submit", "event buffer full", nil)

const (
	defaultEventBuffer  = 256
	defaultTickInterval = 50 * time.Millisecond
)

// DriverOptions configures a Driver.
type DriverOptions struct {
	Buffer       int
	TickInterval time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
}

// Driver serializes every inbound event onto a single workflow. Callers from
// any goroutine submit events; one loop applies them, ticks timeouts and
// publishes snapshots.
type Driver struct {
	wf     *Workflow
	events chan Event
	tick   time.Duration
	now    func() time.Time
	logger *slog.Logger

	pumpMu   sync.Mutex
	snapshot atomic.Pointer[Snapshot]

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewDriver wraps wf. The workflow must not be used directly afterwards.
func NewDriver(wf *Workflow, opts DriverOptions) *Driver {
	if opts.Buffer <= 0 {
		opts.Buffer = defaultEventBuffer
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	d := &Driver{
		wf:     wf,
		events: make(chan Event, opts.Buffer),
		tick:   opts.TickInterval,
		now:    opts.Now,
		logger: logging.NewComponentLogger(opts.Logger, "driver"),
	}
	d.publish(opts.Now())
	return d
}

// Submit queues an event without blocking.
func (d *Driver) Submit(ev Event) error {
	if ev == nil {
		return nil
	}
	select {
	case d.events <- ev:
		return nil
	default:
		logging.WarnWithContext(d.logger, "event dropped; driver backlog full", "event_backlog",
			logging.String("event", ev.Kind()),
			logging.Int("buffer", cap(d.events)),
			logging.String(logging.FieldErrorHint, "headset is sending faster than the tick interval"),
		)
		return ErrEventBacklog
	}
}

// SubmitTracking queues raw card input. Malformed input is reported through
// the narrator when the event is applied.
func (d *Driver) SubmitTracking(raw string) error {
	return d.Submit(TrackingEvent{Input: raw})
}

// Pump applies the events already buffered, runs one tick and publishes a
// fresh snapshot. It returns the number of events applied.
func (d *Driver) Pump() int {
	d.pumpMu.Lock()
	defer d.pumpMu.Unlock()

	applied := 0
	for n := len(d.events); n > 0; n-- {
		ev := <-d.events
		now := d.now()
		if err := ev.apply(d.wf, now); err != nil {
			d.logApplyError(ev, err)
		}
		applied++
	}
	now := d.now()
	d.wf.Tick(now)
	d.publish(now)
	return applied
}

// Snapshot returns the most recently published state.
func (d *Driver) Snapshot() Snapshot {
	if snap := d.snapshot.Load(); snap != nil {
		return *snap
	}
	return Snapshot{}
}

// Start runs the pump loop in the background until ctx is cancelled or Stop
// is called.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("driver already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.pumpMu.Lock()
	d.wf.Start(d.now())
	d.pumpMu.Unlock()
	d.wg.Add(1)
	go d.run(runCtx)
	return nil
}

// Stop terminates the loop and waits for it to exit.
func (d *Driver) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel := d.cancel
	d.running = false
	d.cancel = nil
	d.mu.Unlock()

	cancel()
	d.wg.Wait()
}

func (d *Driver) run(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Pump()
		}
	}
}

func (d *Driver) publish(now time.Time) {
	snap := d.wf.Snapshot(now)
	d.snapshot.Store(&snap)
}

func (d *Driver) logApplyError(ev Event, err error) {
	attrs := []logging.Attr{
		logging.String("event", ev.Kind()),
		logging.Error(err),
	}
	switch {
	case errors.Is(err, sequence.ErrInvalidSymbol), errors.Is(err, sequence.ErrInvalidLength):
		d.logger.Info("strand rejected", logging.Args(attrs...)...)
	case errors.Is(err, sequence.ErrUnknownAminoAcid):
		d.logger.Info("amino acid picks rejected", logging.Args(attrs...)...)
	case errors.Is(err, ErrUnexpectedPhase), errors.Is(err, carrier.ErrUnknownUnit):
		d.logger.Debug("event ignored", logging.Args(attrs...)...)
	default:
		logging.WarnWithContext(d.logger, "event failed", "event_failed", attrs...)
	}
}
