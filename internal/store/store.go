// Package store provides run-audit persistence using SQLite.
//
// Only run metadata is persisted. Plans and execution logs are transient
// values returned to the caller; the store records that a run happened, for
// which repository and goal, and how it ended.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Kind distinguishes plan-generation runs from execution runs.
type Kind string

const (
	KindPlan    Kind = "plan"
	KindExecute Kind = "execute"
)

// Status represents the current state of a run.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
	StatusError    Status = "error"
)

// Run is the audit record for one plan or execution request.
type Run struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Repo      string    `json:"repo"`
	Goal      string    `json:"goal"`
	Status    Status    `json:"status"`
	Branch    string    `json:"branch,omitempty"`
	Steps     int       `json:"steps"`
	Failures  int       `json:"failures"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event is one timeline entry in a run's lifecycle.
type Event struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Type      string    `json:"type"` // "status", "step", "error"
	Data      string    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// Store manages run and event persistence in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at the given path.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent read/write performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id         TEXT PRIMARY KEY,
			kind       TEXT NOT NULL,
			repo       TEXT NOT NULL,
			goal       TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'running',
			branch     TEXT NOT NULL DEFAULT '',
			steps      INTEGER NOT NULL DEFAULT 0,
			failures   INTEGER NOT NULL DEFAULT 0,
			error      TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT (datetime('now')),
			updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS run_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT NOT NULL,
			type       TEXT NOT NULL,
			data       TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT (datetime('now')),
			FOREIGN KEY (run_id) REFERENCES runs(id)
		);

		CREATE INDEX IF NOT EXISTS idx_run_events_run_id
			ON run_events(run_id);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRun inserts a new run.
func (s *Store) CreateRun(run *Run) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (id, kind, repo, goal, status, branch, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.Repo, run.Goal, run.Status, run.Branch,
		run.CreatedAt, run.UpdatedAt,
	)
	return err
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(
		`SELECT id, kind, repo, goal, status, branch, steps, failures,
		        error, created_at, updated_at
		 FROM runs WHERE id = ?`, id,
	)
	return scanRun(row)
}

// ListRuns returns all runs ordered by creation time (newest first).
func (s *Store) ListRuns() ([]*Run, error) {
	rows, err := s.db.Query(
		`SELECT id, kind, repo, goal, status, branch, steps, failures,
		        error, created_at, updated_at
		 FROM runs ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// UpdateRun updates mutable fields of a run.
func (s *Store) UpdateRun(run *Run) error {
	run.UpdatedAt = time.Now().UTC()
	_, err := s.db.Exec(
		`UPDATE runs SET
			status = ?, branch = ?, steps = ?, failures = ?,
			error = ?, updated_at = ?
		 WHERE id = ?`,
		run.Status, run.Branch, run.Steps, run.Failures,
		run.Error, run.UpdatedAt, run.ID,
	)
	return err
}

// AddEvent inserts a new event and sets its ID.
func (s *Store) AddEvent(event *Event) error {
	result, err := s.db.Exec(
		`INSERT INTO run_events (run_id, type, data, created_at)
		 VALUES (?, ?, ?, ?)`,
		event.RunID, event.Type, event.Data, event.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = id
	return nil
}

// GetEvents returns a run's events in insertion order.
func (s *Store) GetEvents(runID string) ([]*Event, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, type, data, created_at
		 FROM run_events
		 WHERE run_id = ?
		 ORDER BY id ASC`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.RunID, &e.Type, &e.Data, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	run := &Run{}
	err := row.Scan(
		&run.ID, &run.Kind, &run.Repo, &run.Goal, &run.Status,
		&run.Branch, &run.Steps, &run.Failures, &run.Error,
		&run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}
