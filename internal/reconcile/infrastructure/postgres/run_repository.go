package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	reconcile "receivables-cloud/internal/reconcile/domain"
)

// ErrRunNotFound is returned when no reconciliation run exists.
var ErrRunNotFound = errors.New("reconcile runs: not found")

// RunRepository persists bulk reconciliation run reports.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository constructs a run repository.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// SaveRun inserts one run report. Correction records are stored as jsonb.
func (r *RunRepository) SaveRun(ctx context.Context, report reconcile.Report) error {
	corrections, err := json.Marshal(report.Corrections)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO reconciliation_runs (
	id, started_at, finished_at, elapsed_ms, total, succeeded, failed,
	corrected, unchanged, canceled, corrections
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`, report.RunID, report.StartedAt, report.FinishedAt, report.ElapsedMs,
		report.Total, report.Succeeded, report.Failed,
		report.Corrected, report.Unchanged, report.Canceled, corrections)
	return err
}

// ListRuns returns the most recent runs, newest first, without the
// per-account correction detail.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]reconcile.Report, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, started_at, finished_at, elapsed_ms, total, succeeded, failed,
	corrected, unchanged, canceled
FROM reconciliation_runs
ORDER BY started_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reconcile.Report
	for rows.Next() {
		var report reconcile.Report
		if err := rows.Scan(
			&report.RunID,
			&report.StartedAt,
			&report.FinishedAt,
			&report.ElapsedMs,
			&report.Total,
			&report.Succeeded,
			&report.Failed,
			&report.Corrected,
			&report.Unchanged,
			&report.Canceled,
		); err != nil {
			return nil, err
		}
		report.StartedAt = report.StartedAt.UTC()
		report.FinishedAt = report.FinishedAt.UTC()
		result = append(result, report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// LatestRun returns the most recent run with its full correction detail.
func (r *RunRepository) LatestRun(ctx context.Context) (reconcile.Report, error) {
	var report reconcile.Report
	var corrections []byte
	err := r.db.QueryRowContext(ctx, `
SELECT id, started_at, finished_at, elapsed_ms, total, succeeded, failed,
	corrected, unchanged, canceled, corrections
FROM reconciliation_runs
ORDER BY started_at DESC
LIMIT 1`).Scan(
		&report.RunID,
		&report.StartedAt,
		&report.FinishedAt,
		&report.ElapsedMs,
		&report.Total,
		&report.Succeeded,
		&report.Failed,
		&report.Corrected,
		&report.Unchanged,
		&report.Canceled,
		&corrections,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return reconcile.Report{}, ErrRunNotFound
	}
	if err != nil {
		return reconcile.Report{}, err
	}
	if len(corrections) > 0 {
		if err := json.Unmarshal(corrections, &report.Corrections); err != nil {
			return reconcile.Report{}, err
		}
	}
	report.StartedAt = report.StartedAt.UTC()
	report.FinishedAt = report.FinishedAt.UTC()
	return report, nil
}
