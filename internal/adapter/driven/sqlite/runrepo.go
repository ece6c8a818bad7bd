package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/embedlab/powergate/internal/domain/model"
	"github.com/embedlab/powergate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RunStore = (*RunRepo)(nil)

// RunRepo is the SQLite implementation of the RunStore port interface.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new RunRepo backed by the given DB.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// Insert records a newly started run.
func (r *RunRepo) Insert(ctx context.Context, rec model.RunRecord) error {
	const query = `
		INSERT INTO runs (id, head_sha, triggered_by, status, conclusion, failure_class,
			mean_amps, threshold_amps, trace_url, chart_url, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if _, err := r.db.Writer.ExecContext(ctx, query,
		rec.ID, rec.HeadSHA, rec.TriggeredBy, string(rec.Status), string(rec.Conclusion),
		string(rec.FailureClass), meanValue(rec), rec.ThresholdAmps,
		rec.TraceURL, rec.ChartURL, rec.StartedAt.UTC(), completedValue(rec),
	); err != nil {
		return fmt.Errorf("insert run %s: %w", rec.ID, err)
	}

	return nil
}

// Finalize updates a run with its terminal fields.
func (r *RunRepo) Finalize(ctx context.Context, rec model.RunRecord) error {
	const query = `
		UPDATE runs
		SET status = ?, conclusion = ?, failure_class = ?, mean_amps = ?,
			trace_url = ?, chart_url = ?, completed_at = ?
		WHERE id = ?
	`

	res, err := r.db.Writer.ExecContext(ctx, query,
		string(rec.Status), string(rec.Conclusion), string(rec.FailureClass),
		meanValue(rec), rec.TraceURL, rec.ChartURL, completedValue(rec), rec.ID,
	)
	if err != nil {
		return fmt.Errorf("finalize run %s: %w", rec.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize run %s: %w", rec.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("finalize run %s: no such run", rec.ID)
	}

	return nil
}

// GetByID returns the run with the given ID, or nil when absent.
func (r *RunRepo) GetByID(ctx context.Context, id string) (*model.RunRecord, error) {
	const query = `
		SELECT id, head_sha, triggered_by, status, conclusion, failure_class,
			mean_amps, threshold_amps, trace_url, chart_url, started_at, completed_at
		FROM runs
		WHERE id = ?
	`

	rec, err := scanRun(r.db.Reader.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	return rec, nil
}

// ListRecent returns up to limit runs ordered by start time descending.
func (r *RunRepo) ListRecent(ctx context.Context, limit int) ([]model.RunRecord, error) {
	const query = `
		SELECT id, head_sha, triggered_by, status, conclusion, failure_class,
			mean_amps, threshold_amps, trace_url, chart_url, started_at, completed_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent runs: %w", err)
	}
	defer rows.Close()

	var recs []model.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		recs = append(recs, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return recs, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanRun reads one runs row into a RunRecord.
func scanRun(s scanner) (*model.RunRecord, error) {
	var (
		rec         model.RunRecord
		status      string
		conclusion  string
		class       string
		mean        sql.NullFloat64
		completedAt sql.NullTime
	)

	if err := s.Scan(
		&rec.ID, &rec.HeadSHA, &rec.TriggeredBy, &status, &conclusion, &class,
		&mean, &rec.ThresholdAmps, &rec.TraceURL, &rec.ChartURL,
		&rec.StartedAt, &completedAt,
	); err != nil {
		return nil, err
	}

	rec.Status = model.RunStatus(status)
	rec.Conclusion = model.CheckConclusion(conclusion)
	rec.FailureClass = model.FailureClass(class)
	if mean.Valid {
		rec.MeanAmps = mean.Float64
		rec.Measured = true
	}
	if completedAt.Valid {
		rec.CompletedAt = completedAt.Time
	}

	return &rec, nil
}

// meanValue maps an unmeasured run to NULL so it never reads back as 0 A.
func meanValue(rec model.RunRecord) any {
	if !rec.Measured {
		return nil
	}
	return rec.MeanAmps
}

// completedValue maps a zero completion time to NULL.
func completedValue(rec model.RunRecord) any {
	if rec.CompletedAt.IsZero() {
		return nil
	}
	return rec.CompletedAt.UTC()
}
