package sqlite

import (
	"context"
	"fmt"

	"github.com/banshee-data/seedline/internal/reco/validate"
)

// InsertReport stores the diagnostics of one event report and updates the
// run's event counters in a single transaction. A second report for the
// same event and variant violates the primary key and is rejected.
func (db *DB) InsertReport(ctx context.Context, runID string, r validate.EventReport) error {
	return retryOnBusy(func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx, `
			UPDATE runs
			SET events = events + 1, failed_events = failed_events + ?
			WHERE run_id = ?`, boolInt(!r.OK()), runID)
		if err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
		}

		for pos, d := range r.Diagnostics {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO validation_results (
					run_id, event_id, variant, collection, position,
					reference_count, candidate_count, matched, mismatched,
					unmatched_reference, unmatched_candidate,
					max_deviation, mean_deviation
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, r.EventID, r.Variant, d.Collection, pos,
				d.ReferenceCount, d.CandidateCount, d.Matched, d.Mismatched,
				d.UnmatchedReference, d.UnmatchedCandidate,
				d.MaxDeviation, d.MeanDeviation,
			)
			if err != nil {
				return fmt.Errorf("insert %s diagnostics: %w", d.Collection, err)
			}
		}
		return tx.Commit()
	})
}

// ListDiagnostics returns the stored reports of a run ordered by event id
// and variant. Collections keep the order they were reported in.
func (db *DB) ListDiagnostics(ctx context.Context, runID string) ([]validate.EventReport, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT event_id, variant, collection,
		       reference_count, candidate_count, matched, mismatched,
		       unmatched_reference, unmatched_candidate,
		       max_deviation, mean_deviation
		FROM validation_results
		WHERE run_id = ?
		ORDER BY event_id, variant, position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	var reports []validate.EventReport
	for rows.Next() {
		var (
			eventID int64
			variant string
			d       validate.Diagnostics
		)
		if err := rows.Scan(&eventID, &variant, &d.Collection,
			&d.ReferenceCount, &d.CandidateCount, &d.Matched, &d.Mismatched,
			&d.UnmatchedReference, &d.UnmatchedCandidate,
			&d.MaxDeviation, &d.MeanDeviation); err != nil {
			return nil, fmt.Errorf("scan diagnostics: %w", err)
		}
		n := len(reports)
		if n == 0 || reports[n-1].EventID != eventID || reports[n-1].Variant != variant {
			reports = append(reports, validate.EventReport{EventID: eventID, Variant: variant})
			n++
		}
		reports[n-1].Diagnostics = append(reports[n-1].Diagnostics, d)
	}
	return reports, rows.Err()
}

// Summarise folds every stored report of a run into per-variant totals.
func (db *DB) Summarise(ctx context.Context, runID string) ([]validate.VariantSummary, error) {
	if _, err := db.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	reports, err := db.ListDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	s := validate.NewSummary()
	for _, r := range reports {
		s.Add(r)
	}
	return s.Variants(), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
