package sqlite

import (
	"database/sql"
	"strings"
	"time"

	"turnpp/internal/domain"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const (
	runStatusRunning   = "running"
	runStatusCompleted = "completed"
	runStatusAborted   = "aborted"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id          TEXT PRIMARY KEY,
		run_date    TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'running',
		parents     INTEGER DEFAULT 0,
		children    INTEGER DEFAULT 0,
		passed      INTEGER DEFAULT 0,
		failed      INTEGER DEFAULT 0,
		archived    INTEGER DEFAULT 0,
		marked      INTEGER DEFAULT 0,
		errors      TEXT DEFAULT '',
		started_at  DATETIME NOT NULL,
		finished_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_runs_run_date ON runs(run_date);

	CREATE TABLE IF NOT EXISTS ticket_outcomes (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id       TEXT NOT NULL,
		parent_key   TEXT NOT NULL,
		ticket_key   TEXT NOT NULL,
		outcome      TEXT NOT NULL,
		detail       TEXT DEFAULT '',
		recorded_at  DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_run ON ticket_outcomes(run_id);
	CREATE INDEX IF NOT EXISTS idx_outcomes_ticket ON ticket_outcomes(ticket_key);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	// Migration: add archive_path column if missing.
	var colCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('ticket_outcomes') WHERE name = 'archive_path'`).Scan(&colCount); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "inspect ticket_outcomes")
	}
	if colCount == 0 {
		if _, err := db.Exec(`ALTER TABLE ticket_outcomes ADD COLUMN archive_path TEXT DEFAULT ''`); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "add archive_path column")
		}
	}

	return db, nil
}

// Ledger records runs and per-ticket outcomes.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// StartRun inserts a running row and returns its id.
func (l *Ledger) StartRun(runDate string, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := l.db.Exec(
		`INSERT INTO runs (id, run_date, status, started_at) VALUES (?, ?, ?, ?)`,
		id, runDate, runStatusRunning, startedAt.UTC(),
	)
	if err != nil {
		return "", errors.Wrap(err, "insert run")
	}
	return id, nil
}

func (l *Ledger) RecordOutcome(o domain.TicketOutcome) error {
	recordedAt := o.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	_, err := l.db.Exec(
		`INSERT INTO ticket_outcomes (run_id, parent_key, ticket_key, outcome, detail, archive_path, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.RunID, o.ParentKey, o.TicketKey, o.Outcome, o.Detail, o.ArchivePath, recordedAt.UTC(),
	)
	return errors.Wrapf(err, "insert outcome %s", o.TicketKey)
}

// FinishRun stores the final counts. Aborted runs do not count as completed.
func (l *Ledger) FinishRun(s domain.RunSummary, finishedAt time.Time) error {
	status := runStatusCompleted
	if s.Aborted {
		status = runStatusAborted
	}
	_, err := l.db.Exec(
		`UPDATE runs SET status = ?, parents = ?, children = ?, passed = ?, failed = ?, archived = ?, marked = ?, errors = ?, finished_at = ?
		 WHERE id = ?`,
		status, s.Parents, s.Children, s.Passed, s.Failed, s.Archived, s.Marked,
		strings.Join(s.Errors, "\n"), finishedAt.UTC(), s.RunID,
	)
	return errors.Wrapf(err, "finish run %s", s.RunID)
}

// HasCompletedRun reports whether a run for runDate already finished.
func (l *Ledger) HasCompletedRun(runDate string) (bool, error) {
	var count int
	err := l.db.QueryRow(
		`SELECT COUNT(*) FROM runs WHERE run_date = ? AND status = ?`,
		runDate, runStatusCompleted,
	).Scan(&count)
	if err != nil {
		return false, errors.Wrap(err, "query runs")
	}
	return count > 0, nil
}

// RecentOutcomes returns the newest outcomes first.
func (l *Ledger) RecentOutcomes(limit int) ([]domain.TicketOutcome, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.Query(
		`SELECT run_id, parent_key, ticket_key, outcome, detail, archive_path, recorded_at
		 FROM ticket_outcomes ORDER BY recorded_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query outcomes")
	}
	defer rows.Close()

	var out []domain.TicketOutcome
	for rows.Next() {
		var o domain.TicketOutcome
		if err := rows.Scan(&o.RunID, &o.ParentKey, &o.TicketKey, &o.Outcome, &o.Detail, &o.ArchivePath, &o.RecordedAt); err != nil {
			return nil, errors.Wrap(err, "scan outcome")
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
