// Package runlog records pipeline run history in a local SQLite database:
// one row per run, one row per pipeline phase within a run.
package runlog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Run is one recorded pipeline execution.
type Run struct {
	ID         string
	Kind       string
	Status     string
	Records    int
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Phase is one stage of a run.
type Phase struct {
	ID         string
	RunID      string
	Name       string
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Store persists run history using modernc.org/sqlite.
type Store struct {
	db *sql.DB
}

// Open opens the database at the given path and configures WAL mode.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "runlog: exec %s", pragma)
		}
	}
	return &Store{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	records     INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS run_phases (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	name        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	error       TEXT,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_run_phases_run_id ON run_phases(run_id);
`

// Migrate creates the schema idempotently.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "runlog: migrate")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun records a new run of the given kind (scrape, prices, sync).
func (s *Store) StartRun(ctx context.Context, kind string) (*Run, error) {
	r := &Run{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, status, started_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.Kind, r.Status, r.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: insert run")
	}
	return r, nil
}

// FinishRun closes a run. A non-nil runErr marks the run failed and stores
// the message.
func (s *Store) FinishRun(ctx context.Context, runID string, records int, runErr error) error {
	status := StatusComplete
	msg := ""
	if runErr != nil {
		status = StatusFailed
		msg = runErr.Error()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, records = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, records, msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// StartPhase records a new phase within a run.
func (s *Store) StartPhase(ctx context.Context, runID, name string) (*Phase, error) {
	p := &Phase{
		ID:        uuid.New().String(),
		RunID:     runID,
		Name:      name,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.RunID, p.Name, p.Status, p.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: insert phase for run %s", runID)
	}
	return p, nil
}

// FinishPhase closes a phase, recording failure when phaseErr is non-nil.
func (s *Store) FinishPhase(ctx context.Context, phaseID string, phaseErr error) error {
	status := StatusComplete
	msg := ""
	if phaseErr != nil {
		status = StatusFailed
		msg = phaseErr.Error()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE run_phases SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
		status, msg, time.Now().UTC(), phaseID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: finish phase %s", phaseID)
	}
	return checkRowsAffected(res, "phase", phaseID)
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, status, records, COALESCE(error, ''), started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Kind, &r.Status, &r.Records, &r.Error, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "runlog: scan run")
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "runlog: list runs iterate")
}

// Phases returns a run's phases in start order.
func (s *Store) Phases(ctx context.Context, runID string) ([]Phase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, name, status, COALESCE(error, ''), started_at, finished_at
		 FROM run_phases WHERE run_id = ? ORDER BY started_at ASC`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: phases for run %s", runID)
	}
	defer rows.Close()

	var phases []Phase
	for rows.Next() {
		var p Phase
		var finished sql.NullTime
		if err := rows.Scan(&p.ID, &p.RunID, &p.Name, &p.Status, &p.Error, &p.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "runlog: scan phase")
		}
		if finished.Valid {
			p.FinishedAt = &finished.Time
		}
		phases = append(phases, p)
	}
	return phases, eris.Wrap(rows.Err(), "runlog: phases iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "runlog: rows affected")
	}
	if n == 0 {
		return eris.Errorf("runlog: %s not found: %s", entity, id)
	}
	return nil
}
