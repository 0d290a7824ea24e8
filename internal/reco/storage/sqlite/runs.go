package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("run not found")

// Run is one invocation of the validation loop.
type Run struct {
	RunID        string          `json:"run_id"`
	CreatedAt    int64           `json:"created_at"` // unix nanoseconds
	Settings     json.RawMessage `json:"settings,omitempty"`
	Events       int             `json:"events"`
	FailedEvents int             `json:"failed_events"`
}

// Created returns CreatedAt as a time.
func (r *Run) Created() time.Time { return time.Unix(0, r.CreatedAt) }

// CreateRun inserts a new run with a fresh UUID. settings is stored as
// JSON and may be nil.
func (db *DB) CreateRun(ctx context.Context, settings any) (*Run, error) {
	run := &Run{
		RunID:     uuid.New().String(),
		CreatedAt: time.Now().UnixNano(),
	}
	var settingsStr interface{}
	if settings != nil {
		raw, err := json.Marshal(settings)
		if err != nil {
			return nil, fmt.Errorf("marshal run settings: %w", err)
		}
		run.Settings = raw
		settingsStr = string(raw)
	}

	err := retryOnBusy(func() error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO runs (run_id, created_at, settings_json) VALUES (?, ?, ?)`,
			run.RunID, run.CreatedAt, settingsStr)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// GetRun returns one run by id.
func (db *DB) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := db.QueryRowContext(ctx, `
		SELECT run_id, created_at, settings_json, events, failed_events
		FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	return run, err
}

// ListRuns returns every run, newest first.
func (db *DB) ListRuns(ctx context.Context) ([]*Run, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, created_at, settings_json, events, failed_events
		FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var run Run
	var settingsStr sql.NullString
	if err := s.Scan(&run.RunID, &run.CreatedAt, &settingsStr, &run.Events, &run.FailedEvents); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if settingsStr.Valid {
		run.Settings = json.RawMessage(settingsStr.String)
	}
	return &run, nil
}
