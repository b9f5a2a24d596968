/*
Package sqlite persists reconciliation run records.

PURPOSE:
  Operational audit trail for the daily job: when each run started, whether
  it completed, and its aggregate counters. The admin API reads this to
  show run history, and the scheduler reads it to avoid running twice on
  the same day.

  Run records are run-level only. Which certificate paid which lesson is
  never stored; the scheduling provider owns that state.

WAL MODE:
  The database is opened with WAL so the admin API can read run history
  while a run is being written.

USAGE:
  store, err := sqlite.New("./reconciler.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// RunRecord is one reconciliation run's audit record.
type RunRecord struct {
	ID          string
	Status      string
	StartedAt   time.Time
	CompletedAt *time.Time

	StaffProcessed   int
	ClientsProcessed int
	ClientsFailed    int
	ClientsNotified  int
	LessonsPaid      int
	ReportsSent      int

	Error string
}

// Store is a SQLite-backed run record store.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (and migrates) the database at path. Use ":memory:" for tests.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate database")
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		staff_processed INTEGER NOT NULL DEFAULT 0,
		clients_processed INTEGER NOT NULL DEFAULT 0,
		clients_failed INTEGER NOT NULL DEFAULT 0,
		clients_notified INTEGER NOT NULL DEFAULT 0,
		lessons_paid INTEGER NOT NULL DEFAULT 0,
		reports_sent INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun inserts or updates a run record.
func (s *Store) SaveRun(ctx context.Context, r RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var completedAt any
	if r.CompletedAt != nil {
		completedAt = r.CompletedAt.UTC().Format(time.RFC3339)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (
			id, status, started_at, completed_at,
			staff_processed, clients_processed, clients_failed,
			clients_notified, lessons_paid, reports_sent, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			completed_at = excluded.completed_at,
			staff_processed = excluded.staff_processed,
			clients_processed = excluded.clients_processed,
			clients_failed = excluded.clients_failed,
			clients_notified = excluded.clients_notified,
			lessons_paid = excluded.lessons_paid,
			reports_sent = excluded.reports_sent,
			error = excluded.error`,
		r.ID, r.Status, r.StartedAt.UTC().Format(time.RFC3339), completedAt,
		r.StaffProcessed, r.ClientsProcessed, r.ClientsFailed,
		r.ClientsNotified, r.LessonsPaid, r.ReportsSent, r.Error,
	)
	if err != nil {
		return errors.Wrapf(err, "save run %s", r.ID)
	}
	return nil
}

// ListRuns returns run records, most recent first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, started_at, completed_at,
		       staff_processed, clients_processed, clients_failed,
		       clients_notified, lessons_paid, reports_sent, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			r           RunRecord
			startedAt   string
			completedAt sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &r.Status, &startedAt, &completedAt,
			&r.StaffProcessed, &r.ClientsProcessed, &r.ClientsFailed,
			&r.ClientsNotified, &r.LessonsPaid, &r.ReportsSent, &r.Error,
		); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		if r.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
			return nil, errors.Wrapf(err, "run %s: bad started_at", r.ID)
		}
		if completedAt.Valid {
			t, err := time.Parse(time.RFC3339, completedAt.String)
			if err != nil {
				return nil, errors.Wrapf(err, "run %s: bad completed_at", r.ID)
			}
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// HasCompletedRunOn reports whether a completed run already exists for the
// given calendar day (UTC).
func (s *Store) HasCompletedRunOn(ctx context.Context, day time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM runs
		WHERE status = ? AND started_at >= ? AND started_at < ?`,
		RunCompleted,
		dayStart.Format(time.RFC3339),
		dayEnd.Format(time.RFC3339),
	).Scan(&count)
	if err != nil {
		return false, errors.Wrap(err, "check completed run")
	}
	return count > 0, nil
}
