package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// FilesEligibleForCleanup returns Completed files uploaded before cutoff whose
// source has not been purged yet.
func (s *Store) FilesEligibleForCleanup(ctx context.Context, cutoff time.Time) ([]*File, error) {
	return s.queryFiles(
		ctx,
		`SELECT `+fileColumns+` FROM files
         WHERE status = ? AND source_purged_at IS NULL AND upload_time < ?
         ORDER BY upload_time`,
		FileCompleted,
		formatTime(cutoff),
	)
}

// JobsWithExpiredOutputs returns Completed jobs whose bundle was created before
// cutoff and whose per-file outputs have not been purged yet.
func (s *Store) JobsWithExpiredOutputs(ctx context.Context, cutoff time.Time) ([]*Job, error) {
	return s.queryJobs(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE status = ? AND bundle_created_at IS NOT NULL AND bundle_created_at < ?
           AND outputs_purged_at IS NULL
         ORDER BY bundle_created_at`,
		JobCompleted,
		formatTime(cutoff),
	)
}

// BundlesEligibleForCleanup returns Completed jobs whose bundle was created
// before cutoff and still needs deleting.
func (s *Store) BundlesEligibleForCleanup(ctx context.Context, cutoff time.Time) ([]*Job, error) {
	return s.queryJobs(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE status = ? AND bundle_path IS NOT NULL AND bundle_created_at < ?
           AND bundle_purged_at IS NULL
         ORDER BY bundle_created_at`,
		JobCompleted,
		formatTime(cutoff),
	)
}

// OutputsForJob returns the processed output paths recorded for a job's files.
func (s *Store) OutputsForJob(ctx context.Context, jobID string) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT output_path FROM files WHERE job_id = ? AND output_path IS NOT NULL ORDER BY processed_time`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("outputs for job: %w", err)
	}
	defer rows.Close()

	var outputs []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan output path: %w", err)
		}
		outputs = append(outputs, path)
	}
	return outputs, rows.Err()
}

// MarkSourcePurged records that a file's uploaded source no longer needs cleanup.
func (s *Store) MarkSourcePurged(ctx context.Context, fileID string) error {
	if err := s.execWithoutResultRetry(ctx, `UPDATE files SET source_purged_at = ? WHERE id = ?`, nowString(), fileID); err != nil {
		return fmt.Errorf("mark source purged: %w", err)
	}
	return nil
}

// MarkOutputsPurged records that a job's per-file outputs no longer need cleanup.
func (s *Store) MarkOutputsPurged(ctx context.Context, jobID string) error {
	if err := s.execWithoutResultRetry(ctx, `UPDATE jobs SET outputs_purged_at = ? WHERE id = ?`, nowString(), jobID); err != nil {
		return fmt.Errorf("mark outputs purged: %w", err)
	}
	return nil
}

// MarkBundlePurged records that a job's bundle no longer needs cleanup.
func (s *Store) MarkBundlePurged(ctx context.Context, jobID string) error {
	if err := s.execWithoutResultRetry(ctx, `UPDATE jobs SET bundle_purged_at = ? WHERE id = ?`, nowString(), jobID); err != nil {
		return fmt.Errorf("mark bundle purged: %w", err)
	}
	return nil
}

// AppendCleanupLog writes one audit entry. Entries are never updated or deleted.
func (s *Store) AppendCleanupLog(ctx context.Context, entry CleanupEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO cleanup_log (operation, target_path, job_id, timestamp, success, error_message)
         VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Operation,
		nullableString(entry.TargetPath),
		nullableString(entry.JobID),
		formatTime(entry.Timestamp),
		boolToInt(entry.Success),
		nullableString(entry.ErrorMessage),
	); err != nil {
		return fmt.Errorf("append cleanup log: %w", err)
	}
	return nil
}

// ListCleanupLog returns the newest audit entries first. A limit <= 0 returns all rows.
func (s *Store) ListCleanupLog(ctx context.Context, limit int) ([]CleanupEntry, error) {
	query := `SELECT id, operation, target_path, job_id, timestamp, success, error_message
              FROM cleanup_log ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cleanup log: %w", err)
	}
	defer rows.Close()

	var entries []CleanupEntry
	for rows.Next() {
		var (
			e          CleanupEntry
			targetPath sql.NullString
			jobID      sql.NullString
			tsRaw      string
			success    int
			errMsg     sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Operation, &targetPath, &jobID, &tsRaw, &success, &errMsg); err != nil {
			return nil, fmt.Errorf("scan cleanup log: %w", err)
		}
		e.TargetPath = targetPath.String
		e.JobID = jobID.String
		e.Success = success != 0
		e.ErrorMessage = errMsg.String
		if ts, err := parseTimeString(tsRaw); err == nil {
			e.Timestamp = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
