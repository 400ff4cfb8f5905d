package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"ribosim/internal/bridge"
	"ribosim/internal/carrier"
	"ribosim/internal/catalog"
	"ribosim/internal/config"
	"ribosim/internal/history"
	"ribosim/internal/logging"
	"ribosim/internal/workflow"
)

// Daemon owns one lab bench and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	catalog   *catalog.Catalog
	selection *catalog.Selection
	hub       *bridge.Hub
	driver    *workflow.Driver
	server    *bridge.Server
	store     *history.Store
	recorder  *history.Recorder

	lockPath string
	lock     *flock.Flock

	mu         sync.Mutex
	running    bool
	used       bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	advertiser *bridge.Advertiser
	startedAt  time.Time
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool              `json:"running"`
	StartedAt    time.Time         `json:"started_at,omitzero"`
	Address      string            `json:"address,omitempty"`
	Clients      int               `json:"clients"`
	Advertised   bool              `json:"advertised"`
	HistoryPath  string            `json:"history_path,omitempty"`
	LockFilePath string            `json:"lock_file_path"`
	Dropped      uint64            `json:"dropped_broadcasts"`
	Session      workflow.Snapshot `json:"session"`
}

// New constructs a daemon with initialized dependencies. Nothing runs until
// Start.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	selection, err := catalog.NewSelection(cat, cfg.Catalog.DefaultProtein)
	if err != nil {
		return nil, fmt.Errorf("select default protein: %w", err)
	}

	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		catalog:   cat,
		selection: selection,
		hub:       bridge.NewHub(cfg.Bridge.ClientBuffer, logger),
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
	}

	narrator := workflow.Narrator(d.hub)
	if cfg.History.Enabled {
		store, err := history.Open(cfg)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		d.store = store
		d.recorder = history.NewRecorder(store, cfg.History.Buffer, logger)
		narrator = workflow.Narrators(d.hub, d.recorder)
	}

	wf, err := workflow.New(workflow.Collaborators{
		Renderer:  d.hub,
		Animator:  d.hub,
		Narrator:  narrator,
		Checklist: d.hub,
		Output:    d.hub,
		Templates: selection,
	}, workflow.Options{
		Carrier: carrier.Options{
			Capacity:     cfg.Carrier.Capacity,
			EnterTimeout: cfg.Carrier.EnterTimeout(),
			ExitTimeout:  cfg.Carrier.ExitTimeout(),
			Overlap:      cfg.Carrier.OverlapEntries,
			Logger:       logger,
		},
		TransitTimeout: cfg.Workflow.TransitTimeout(),
		Logger:         logger,
	})
	if err != nil {
		_ = d.closeStore()
		return nil, fmt.Errorf("build workflow: %w", err)
	}
	d.driver = workflow.NewDriver(wf, workflow.DriverOptions{
		Buffer:       cfg.Workflow.EventBuffer,
		TickInterval: cfg.Workflow.TickInterval(),
		Logger:       logger,
	})
	d.server = bridge.NewServer(cfg, d.hub, d.driver, cat, logger)
	return d, nil
}

// Start acquires the daemon lock, then starts the hub, driver, journal and
// bridge server. A daemon runs at most once; build a new one to restart.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("daemon already running")
	}
	if d.used {
		return errors.New("daemon cannot be restarted; construct a new instance")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another ribosim daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.pruneOldRecords(runCtx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.hub.Run(runCtx)
	}()
	if d.recorder != nil {
		d.recorder.Start(runCtx)
	}
	if err := d.driver.Start(runCtx); err != nil {
		d.abortStart(cancel)
		return fmt.Errorf("start driver: %w", err)
	}
	if err := d.server.Start(runCtx); err != nil {
		d.abortStart(cancel)
		return fmt.Errorf("start bridge: %w", err)
	}

	if d.cfg.Bridge.Advertise {
		advertiser, err := bridge.Advertise(d.cfg.Bridge.ServiceName, d.server.Port(), d.selection.Protein(), d.logger)
		if err != nil {
			logging.WarnWithContext(d.logger, "mDNS advertisement failed; headsets must be pointed at the bridge manually", "mdns_unavailable",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check multicast is allowed on this network or set bridge.advertise = false"),
				logging.String(logging.FieldImpact, "headsets will not discover this bench automatically"),
			)
		} else {
			d.advertiser = advertiser
		}
	}

	d.cancel = cancel
	d.running = true
	d.used = true
	d.startedAt = time.Now()
	d.logger.Info("ribosim daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.addrString()),
		logging.String(logging.FieldProtein, d.selection.Protein()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

func (d *Daemon) abortStart(cancel context.CancelFunc) {
	d.driver.Stop()
	if d.recorder != nil {
		d.recorder.Stop()
	}
	cancel()
	d.wg.Wait()
	d.used = true
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// pruneOldRecords applies the log and journal retention settings.
func (d *Daemon) pruneOldRecords(ctx context.Context) {
	logging.CleanupOldLogs(d.logger, d.cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:     d.cfg.Paths.LogDir,
		Pattern: "*.log",
		Exclude: []string{filepath.Join(d.cfg.Paths.LogDir, logging.LogFileName)},
	})
	if d.store == nil || d.cfg.History.RetentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -d.cfg.History.RetentionDays)
	removed, err := d.store.Prune(ctx, cutoff)
	if err != nil {
		logging.WarnWithContext(d.logger, "history prune failed", "history_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "old sessions remain in the journal"),
		)
		return
	}
	if removed > 0 {
		d.logger.Info("history pruned",
			logging.Int64("sessions", removed),
			logging.String(logging.FieldEventType, "history_pruned"),
		)
	}
}

// Stop shuts everything down and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return
	}

	d.advertiser.Shutdown()
	d.advertiser = nil
	d.server.Stop()
	d.driver.Stop()
	if d.recorder != nil {
		d.recorder.Stop()
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running = false
	d.logger.Info("ribosim daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases the journal.
func (d *Daemon) Close() error {
	d.Stop()
	return d.closeStore()
}

func (d *Daemon) closeStore() error {
	if d.store == nil {
		return nil
	}
	err := d.store.Close()
	d.store = nil
	return err
}

// Status reports the daemon and session state.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	status := Status{
		Running:      d.running,
		Clients:      d.hub.Clients(),
		Advertised:   d.advertiser != nil,
		LockFilePath: d.lockPath,
		Dropped:      d.hub.Dropped(),
		Session:      d.driver.Snapshot(),
	}
	if d.running {
		status.StartedAt = d.startedAt
		status.Address = d.addrString()
	}
	if d.store != nil {
		status.HistoryPath = d.store.Path()
	}
	return status
}

// Addr is the bridge listener address once running.
func (d *Daemon) Addr() net.Addr { return d.server.Addr() }

// Driver exposes the workflow driver for in-process callers such as the
// headless simulator.
func (d *Daemon) Driver() *workflow.Driver { return d.driver }

// Hub exposes the bridge hub.
func (d *Daemon) Hub() *bridge.Hub { return d.hub }

// Catalog is the loaded protein catalog.
func (d *Daemon) Catalog() *catalog.Catalog { return d.catalog }

// History is the session journal, or nil when disabled.
func (d *Daemon) History() *history.Store { return d.store }

func (d *Daemon) addrString() string {
	if addr := d.server.Addr(); addr != nil {
		return addr.String()
	}
	return ""
}
