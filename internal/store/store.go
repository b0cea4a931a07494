// Package store keeps the history of simulated runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/joshharrison/fogsched/internal/state"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	algorithm TEXT NOT NULL,
	scenario TEXT,
	status TEXT NOT NULL,
	total_tasks INTEGER NOT NULL,
	makespan REAL NOT NULL,
	total_cost REAL NOT NULL,
	port_delay REAL NOT NULL DEFAULT 0,
	started_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS jobs (
	run_id TEXT NOT NULL REFERENCES runs(id),
	task_id INTEGER NOT NULL,
	name TEXT,
	status TEXT NOT NULL,
	submission INTEGER NOT NULL,
	vm_id INTEGER NOT NULL,
	datacenter INTEGER NOT NULL,
	tier TEXT,
	start REAL NOT NULL,
	finish REAL NOT NULL,
	exec_time REAL NOT NULL,
	depth INTEGER NOT NULL,
	parents TEXT,
	cost REAL NOT NULL,
	PRIMARY KEY (run_id, task_id)
);
CREATE INDEX IF NOT EXISTS idx_jobs_run_id ON jobs(run_id);
`

// ErrRunNotFound is returned when a run id is not in the history.
var ErrRunNotFound = errors.New("run not found")

// Store is a SQLite run history.
type Store struct {
	db *sqlx.DB
}

// Run is one row of the runs table.
type Run struct {
	ID         string    `db:"id"`
	Algorithm  string    `db:"algorithm"`
	Scenario   string    `db:"scenario"`
	Status     string    `db:"status"`
	TotalTasks int       `db:"total_tasks"`
	Makespan   float64   `db:"makespan"`
	TotalCost  float64   `db:"total_cost"`
	PortDelay  float64   `db:"port_delay"`
	StartedAt  time.Time `db:"started_at"`
}

type jobRow struct {
	RunID      string         `db:"run_id"`
	TaskID     int            `db:"task_id"`
	Name       sql.NullString `db:"name"`
	Status     string         `db:"status"`
	Submission int            `db:"submission"`
	VMID       int            `db:"vm_id"`
	Datacenter int            `db:"datacenter"`
	Tier       sql.NullString `db:"tier"`
	Start      float64        `db:"start"`
	Finish     float64        `db:"finish"`
	ExecTime   float64        `db:"exec_time"`
	Depth      int            `db:"depth"`
	Parents    sql.NullString `db:"parents"`
	Cost       float64        `db:"cost"`
}

// Open opens (and creates when needed) the history database at dsn.
func Open(dsn string) (*Store, error) {
	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, errors.Wrap(err, "create history dir")
		}
	}
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open history db")
	}
	// one connection keeps an in-memory database alive across calls
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping history db")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init history schema")
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a finished run and its jobs, replacing any earlier copy.
func (s *Store) SaveRun(ctx context.Context, st *state.RunState) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	run := Run{
		ID:         st.RunID,
		Algorithm:  st.Algorithm,
		Scenario:   st.Scenario,
		Status:     st.Status,
		TotalTasks: st.TotalTasks,
		Makespan:   st.Makespan,
		TotalCost:  st.TotalCost,
		PortDelay:  st.PortDelay,
		StartedAt:  st.StartedAt,
	}
	if _, err := tx.NamedExecContext(ctx, `
	INSERT OR REPLACE INTO runs
	(id, algorithm, scenario, status, total_tasks, makespan, total_cost, port_delay, started_at)
	VALUES (:id, :algorithm, :scenario, :status, :total_tasks, :makespan, :total_cost, :port_delay, :started_at)
	`, run); err != nil {
		return errors.Wrapf(err, "save run %s", st.RunID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE run_id = ?`, st.RunID); err != nil {
		return errors.Wrapf(err, "clear jobs of run %s", st.RunID)
	}
	for _, js := range st.Jobs {
		row, err := toRow(st.RunID, js)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO jobs
		(run_id, task_id, name, status, submission, vm_id, datacenter, tier, start, finish, exec_time, depth, parents, cost)
		VALUES (:run_id, :task_id, :name, :status, :submission, :vm_id, :datacenter, :tier, :start, :finish, :exec_time, :depth, :parents, :cost)
		`, row); err != nil {
			return errors.Wrapf(err, "save job %d of run %s", js.TaskID, st.RunID)
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// ListRuns returns the most recent runs first. A limit below one lists all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit < 1 {
		limit = -1
	}
	var runs []Run
	err := s.db.SelectContext(ctx, &runs, `
	SELECT id, algorithm, scenario, status, total_tasks, makespan, total_cost, port_delay, started_at
	FROM runs ORDER BY started_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	return runs, nil
}

// LoadRun rebuilds the run state of a stored run.
func (s *Store) LoadRun(ctx context.Context, id string) (*state.RunState, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, `
	SELECT id, algorithm, scenario, status, total_tasks, makespan, total_cost, port_delay, started_at
	FROM runs WHERE id = ?
	`, id)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(ErrRunNotFound, "%s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load run %s", id)
	}

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, `
	SELECT run_id, task_id, name, status, submission, vm_id, datacenter, tier, start, finish, exec_time, depth, parents, cost
	FROM jobs WHERE run_id = ? ORDER BY submission
	`, id); err != nil {
		return nil, errors.Wrapf(err, "load jobs of run %s", id)
	}

	st := state.NewRun(run.ID, run.Algorithm, run.TotalTasks)
	st.Scenario = run.Scenario
	st.Status = run.Status
	st.Makespan = run.Makespan
	st.TotalCost = run.TotalCost
	st.PortDelay = run.PortDelay
	st.StartedAt = run.StartedAt
	for _, row := range rows {
		js, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		st.Jobs = append(st.Jobs, js)
	}
	return st, nil
}

func toRow(runID string, js *state.JobState) (jobRow, error) {
	parents, err := json.Marshal(js.Parents)
	if err != nil {
		return jobRow{}, errors.Wrapf(err, "encode parents of task %d", js.TaskID)
	}
	return jobRow{
		RunID:      runID,
		TaskID:     js.TaskID,
		Name:       sql.NullString{String: js.Name, Valid: js.Name != ""},
		Status:     string(js.Status),
		Submission: js.Submission,
		VMID:       js.VMID,
		Datacenter: js.Datacenter,
		Tier:       sql.NullString{String: js.Tier, Valid: js.Tier != ""},
		Start:      js.Start,
		Finish:     js.Finish,
		ExecTime:   js.ExecTime,
		Depth:      js.Depth,
		Parents:    sql.NullString{String: string(parents), Valid: len(js.Parents) > 0},
		Cost:       js.Cost,
	}, nil
}

func fromRow(row jobRow) (*state.JobState, error) {
	js := &state.JobState{
		TaskID:     row.TaskID,
		Name:       row.Name.String,
		Status:     state.JobStatus(row.Status),
		Submission: row.Submission,
		VMID:       row.VMID,
		Datacenter: row.Datacenter,
		Tier:       row.Tier.String,
		Start:      row.Start,
		Finish:     row.Finish,
		ExecTime:   row.ExecTime,
		Depth:      row.Depth,
		Cost:       row.Cost,
	}
	if row.Parents.Valid {
		if err := json.Unmarshal([]byte(row.Parents.String), &js.Parents); err != nil {
			return nil, errors.Wrapf(err, "decode parents of task %d", row.TaskID)
		}
	}
	return js, nil
}
