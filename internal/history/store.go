package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	_ "modernc.org/sqlite"

	"ribosim/internal/config"
	"ribosim/internal/workflow"
)

// Store persists the session journal.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// timeLayout keeps a fixed width so stored timestamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Open initializes or connects to the journal database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.HistoryPath())
}

// OpenPath opens the journal at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// RecordPhase upserts the session summary and appends a phase event.
func (s *Store) RecordPhase(ctx context.Context, change workflow.PhaseChange) error {
	at := formatTime(change.At)
	var completed any
	if change.To == workflow.PhaseComplete {
		completed = at
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (id, protein, phase, started_at, updated_at, completed_at)
             VALUES (?, ?, ?, ?, ?, ?)
             ON CONFLICT(id) DO UPDATE SET
                 protein = CASE WHEN excluded.protein <> '' THEN excluded.protein ELSE sessions.protein END,
                 phase = excluded.phase,
                 updated_at = excluded.updated_at,
                 completed_at = COALESCE(excluded.completed_at, sessions.completed_at)`,
			change.SessionID, change.Protein, string(change.To), at, at, completed,
		); err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}
		return insertEvent(ctx, tx, Event{
			SessionID: change.SessionID,
			Kind:      EventPhase,
			PhaseFrom: string(change.From),
			PhaseTo:   string(change.To),
			Detail:    change.Reason,
		}, at)
	})
}

// RecordValidation stores a commit attempt at the given time.
func (s *Store) RecordValidation(ctx context.Context, result workflow.Validation, at time.Time) error {
	ts := formatTime(at)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (id, phase, attempts, last_outcome, started_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?)
             ON CONFLICT(id) DO UPDATE SET
                 attempts = MAX(sessions.attempts, excluded.attempts),
                 last_outcome = excluded.last_outcome,
                 updated_at = excluded.updated_at`,
			result.SessionID, string(workflow.PhaseValidatingSequence), result.Attempt, string(result.Outcome), ts, ts,
		); err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}
		detail := result.Detail
		if detail == "" {
			detail = fmt.Sprintf("expected %d symbols, got %d", result.ExpectedLen, result.GotLen)
			if result.FirstMismatch >= 0 {
				detail += fmt.Sprintf(", first mismatch at %d", result.FirstMismatch)
			}
		}
		return insertEvent(ctx, tx, Event{
			SessionID: result.SessionID,
			Kind:      EventValidation,
			Outcome:   string(result.Outcome),
			Detail:    detail,
		}, ts)
	})
}

// RecordAminoCheck stores an amino acid selection check at the given time.
func (s *Store) RecordAminoCheck(ctx context.Context, check workflow.AminoCheck, at time.Time) error {
	ts := formatTime(at)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (id, phase, started_at, updated_at)
             VALUES (?, ?, ?, ?)
             ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
			check.SessionID, string(workflow.PhaseTransit), ts, ts,
		); err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}
		detail := check.Detail
		if detail == "" {
			detail = fmt.Sprintf("picked %s, expected %s",
				strings.Join(check.Picks, "-"), strings.Join(check.Expected, "-"))
		}
		return insertEvent(ctx, tx, Event{
			SessionID: check.SessionID,
			Kind:      EventAminoCheck,
			Outcome:   string(check.Outcome),
			Detail:    detail,
		}, ts)
	})
}

// Recent lists the newest sessions first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, protein, phase, attempts, last_outcome, started_at, updated_at, completed_at
         FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			sess         Session
			lastOutcome  sql.NullString
			startedRaw   string
			updatedRaw   string
			completedRaw sql.NullString
		)
		if err := rows.Scan(&sess.ID, &sess.Protein, &sess.Phase, &sess.Attempts, &lastOutcome,
			&startedRaw, &updatedRaw, &completedRaw); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.LastOutcome = lastOutcome.String
		sess.StartedAt, _ = parseTimeString(startedRaw)
		sess.UpdatedAt, _ = parseTimeString(updatedRaw)
		if completedRaw.Valid {
			if completed, err := parseTimeString(completedRaw.String); err == nil {
				sess.CompletedAt = &completed
			}
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Events returns a session's journal in write order.
func (s *Store) Events(ctx context.Context, sessionID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, kind, phase_from, phase_to, outcome, detail, created_at
         FROM session_events WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev                               Event
			kind                             string
			phaseFrom, phaseTo, outcome, det sql.NullString
			createdRaw                       string
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &kind, &phaseFrom, &phaseTo, &outcome, &det, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = EventKind(kind)
		ev.PhaseFrom = phaseFrom.String
		ev.PhaseTo = phaseTo.String
		ev.Outcome = outcome.String
		ev.Detail = det.String
		ev.CreatedAt, _ = parseTimeString(createdRaw)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Prune deletes sessions last updated before cutoff along with their events.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	ts := formatTime(cutoff)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM session_events WHERE session_id IN (SELECT id FROM sessions WHERE updated_at < ?)`, ts); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, ts)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return removed, nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, ev Event, at string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO session_events (session_id, kind, phase_from, phase_to, outcome, detail, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.SessionID, string(ev.Kind),
		nullableString(ev.PhaseFrom), nullableString(ev.PhaseTo),
		nullableString(ev.Outcome), nullableString(ev.Detail), at,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// retryOnBusy retries op with exponential backoff while SQLite reports the
// database as locked. Any other error stops immediately.
func (s *Store) retryOnBusy(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = busyRetryInitialBackoff
	policy.MaxInterval = busyRetryMaxBackoff
	policy.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(policy, busyRetryAttempts-1), ctx)

	return backoff.Retry(func() error {
		err := op()
		if err != nil && !isSQLiteBusy(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
