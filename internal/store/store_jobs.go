package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// AddJob persists a new job in the Processing state.
func (s *Store) AddJob(ctx context.Context, j *Job) error {
	if j == nil {
		return errors.New("job is nil")
	}
	if strings.TrimSpace(j.ID) == "" {
		return errors.New("job id is required")
	}
	if j.StartedAt.IsZero() {
		j.StartedAt = time.Now().UTC()
	}
	j.Status = JobProcessing
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO jobs (id, status, progress, file_count, settings_json, started_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		j.ID,
		j.Status,
		j.Progress,
		j.FileCount,
		nullableString(j.SettingsJSON),
		formatTime(j.StartedAt),
	); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob fetches a job by identifier. It returns nil when no row matches.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// ListJobs returns the most recently started jobs first. A limit <= 0 returns all rows.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryJobs(ctx, query, args...)
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// UpdateJobProgress raises the stored progress of a Processing job. Lower
// values are ignored so persisted progress never decreases.
func (s *Store) UpdateJobProgress(ctx context.Context, id string, progress float64) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET progress = MAX(progress, ?) WHERE id = ? AND status = ?`,
		progress,
		id,
		JobProcessing,
	); err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// UpdateJobStatus moves a Processing job to a terminal status. Completed jobs are
// stored with progress 100; errored jobs keep their last progress and record
// errorMessage.
func (s *Store) UpdateJobStatus(ctx context.Context, id string, status JobStatus, errorMessage string, completedAt time.Time) error {
	if !status.IsTerminal() {
		return fmt.Errorf("update job status: %q is not terminal", status)
	}
	if status == JobError && strings.TrimSpace(errorMessage) == "" {
		return errors.New("update job status: error status requires a message")
	}
	if status == JobCompleted {
		errorMessage = ""
	}
	if completedAt.IsZero() {
		completedAt = time.Now()
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, error_message = ?, completed_at = ?,
             progress = CASE WHEN ? = 'completed' THEN 100 ELSE progress END
         WHERE id = ? AND status = ?`,
		status,
		nullableString(errorMessage),
		formatTime(completedAt),
		status,
		id,
		JobProcessing,
	); err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// SetJobBundle records the archive produced for a Completed job and clears
// any earlier purge marker so the retention window restarts.
func (s *Store) SetJobBundle(ctx context.Context, id, path string, createdAt time.Time) error {
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET bundle_path = ?, bundle_created_at = ?, bundle_purged_at = NULL
         WHERE id = ? AND status = ?`,
		path,
		formatTime(createdAt),
		id,
		JobCompleted,
	)
	if err != nil {
		return fmt.Errorf("set job bundle: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set job bundle: job %s is not completed", id)
	}
	return nil
}
