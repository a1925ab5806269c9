// Package history persists a durable record of completed drone runs,
// independent of the per-drone .hive event log, so that `drone history`
// can answer "how did past runs of this plan go" after the .hive
// directory has been cleaned up. Grounded on the teacher's
// internal/learning.Store (schema-embedded SQLite, explicit init/close).
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Run is one completed (or failed) drone run.
type Run struct {
	ID             int64
	DroneName      string
	PlanFile       string
	Outcome        string // "completed" or "failed"
	TasksCompleted int
	TasksFailed    int
	InputTokens    int64
	OutputTokens   int64
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Store manages the SQLite-backed run history database.
type Store struct {
	db *sql.DB
}

// Open creates (if absent) and opens the history database at dbPath.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun inserts a completed run record.
func (s *Store) RecordRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (drone_name, plan_file, outcome, tasks_completed, tasks_failed,
			input_tokens, output_tokens, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.DroneName, r.PlanFile, r.Outcome, r.TasksCompleted, r.TasksFailed,
		r.InputTokens, r.OutputTokens, r.StartedAt.UTC(), r.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit most recent runs for the given plan file,
// newest first. An empty planFile matches all plans.
func (s *Store) RecentRuns(ctx context.Context, planFile string, limit int) ([]Run, error) {
	query := `SELECT id, drone_name, plan_file, outcome, tasks_completed, tasks_failed,
		input_tokens, output_tokens, started_at, finished_at FROM runs`
	args := []interface{}{}
	if planFile != "" {
		query += ` WHERE plan_file = ?`
		args = append(args, planFile)
	}
	query += ` ORDER BY finished_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.DroneName, &r.PlanFile, &r.Outcome, &r.TasksCompleted,
			&r.TasksFailed, &r.InputTokens, &r.OutputTokens, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
