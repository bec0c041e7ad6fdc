// Package journal persists batch runs and their events in SQLite.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spherical/redact-edge/internal/domain"
	"github.com/spherical/redact-edge/internal/observability"
)

// ErrNotFound is returned for unknown run ids.
var ErrNotFound = errors.New("record not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	total        INTEGER NOT NULL DEFAULT 0,
	processed    INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL DEFAULT 'running',
	summary      TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	seq        INTEGER NOT NULL,
	type       TEXT NOT NULL,
	document   TEXT NOT NULL DEFAULT '',
	step       TEXT NOT NULL DEFAULT '',
	doc_index  INTEGER NOT NULL DEFAULT 0,
	payload    TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, seq);
`

// Run is one recorded batch.
type Run struct {
	ID          string     `json:"id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Total       int        `json:"total"`
	Processed   int        `json:"processed"`
	Failed      int        `json:"failed"`
	Status      string     `json:"status"`
	Summary     string     `json:"summary,omitempty"`
}

// Event is one recorded batch event.
type Event struct {
	ID        string           `json:"id"`
	RunID     string           `json:"run_id"`
	Seq       int              `json:"seq"`
	Type      domain.EventType `json:"type"`
	Document  string           `json:"document,omitempty"`
	Step      string           `json:"step,omitempty"`
	Index     int              `json:"index,omitempty"`
	Payload   string           `json:"payload,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Journal records batch events. It implements domain.EventSink.
type Journal struct {
	db     *sql.DB
	retry  *RetryConfig
	logger *observability.Logger
}

// Open opens or creates the journal database at path. ":memory:" is
// accepted for tests.
func Open(path string, logger *observability.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, domain.IOError("open journal", err)
	}
	// one writer keeps sqlite happy and :memory: on a single connection
	db.SetMaxOpenConns(1)

	j, err := New(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// New wraps an open database and creates the schema if needed.
func New(db *sql.DB, logger *observability.Logger) (*Journal, error) {
	if logger == nil {
		logger = observability.Nop()
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, domain.IOError("create journal schema", err)
	}
	return &Journal{
		db:     db,
		retry:  DefaultRetryConfig(),
		logger: logger.WithComponent("journal"),
	}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores event and keeps the run row current.
func (j *Journal) Record(ctx context.Context, event domain.StreamEvent) error {
	if event.RunID == "" {
		return domain.ValidationError("event without run id", nil)
	}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	payload := ""
	if event.Payload != nil {
		payload = fmt.Sprint(event.Payload)
	}
	return retryWithBackoff(ctx, j.retry, j.logger, func() error {
		return j.record(ctx, event, ts, payload)
	})
}

func (j *Journal) record(ctx context.Context, event domain.StreamEvent, ts time.Time, payload string) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.IOError("begin journal transaction", err)
	}
	defer tx.Rollback()

	var runUpdate string
	var args []interface{}
	switch event.Type {
	case domain.EventStart:
		runUpdate = `INSERT INTO runs (id, started_at, total) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET total = excluded.total`
		args = []interface{}{event.RunID, ts, event.Total}
	case domain.EventDocumentComplete:
		runUpdate = `UPDATE runs SET processed = processed + 1 WHERE id = ?`
		args = []interface{}{event.RunID}
	case domain.EventDocumentFailed:
		runUpdate = `UPDATE runs SET failed = failed + 1 WHERE id = ?`
		args = []interface{}{event.RunID}
	case domain.EventComplete:
		runUpdate = `UPDATE runs SET completed_at = ?, status = 'completed', summary = ? WHERE id = ?`
		args = []interface{}{ts, payload, event.RunID}
	}
	if runUpdate == "" {
		// events before a start still need a run row
		runUpdate = `INSERT OR IGNORE INTO runs (id, started_at) VALUES (?, ?)`
		args = []interface{}{event.RunID, ts}
	}
	if _, err := tx.ExecContext(ctx, runUpdate, args...); err != nil {
		return domain.IOError("update run", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, run_id, seq, type, document, step, doc_index, payload, created_at)
		VALUES (?, ?, (SELECT COUNT(*) FROM events WHERE run_id = ?), ?, ?, ?, ?, ?, ?)
	`, uuid.New().String(), event.RunID, event.RunID, string(event.Type), event.Document, event.Step,
		event.Index, payload, ts)
	if err != nil {
		return domain.IOError("insert event", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.IOError("commit journal transaction", err)
	}
	return nil
}

// Runs lists the most recent runs first.
func (j *Journal) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, started_at, completed_at, total, processed, failed, status, summary
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, domain.IOError("list runs", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Run returns one run.
func (j *Journal) Run(ctx context.Context, id string) (*Run, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT id, started_at, completed_at, total, processed, failed, status, summary
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	run := &Run{}
	var completed sql.NullTime
	err := s.Scan(&run.ID, &run.StartedAt, &completed, &run.Total, &run.Processed, &run.Failed, &run.Status, &run.Summary)
	if err != nil {
		return nil, err
	}
	if completed.Valid {
		t := completed.Time
		run.CompletedAt = &t
	}
	return run, nil
}

// Events returns the events of a run in the order they were recorded.
func (j *Journal) Events(ctx context.Context, runID string) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, run_id, seq, type, document, step, doc_index, payload, created_at
		FROM events WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, domain.IOError("list events", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var typ string
		if err := rows.Scan(&e.ID, &e.RunID, &e.Seq, &typ, &e.Document, &e.Step, &e.Index, &e.Payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Type = domain.EventType(typ)
		events = append(events, e)
	}
	return events, rows.Err()
}
