package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// AddFile records a newly uploaded file in the Uploaded state.
func (s *Store) AddFile(ctx context.Context, f *File) error {
	if f == nil {
		return errors.New("file is nil")
	}
	if strings.TrimSpace(f.ID) == "" || strings.TrimSpace(f.StoredPath) == "" {
		return errors.New("file id and stored path are required")
	}
	if f.UploadTime.IsZero() {
		f.UploadTime = time.Now().UTC()
	}
	f.Status = FileUploaded
	if err := s.execWithoutResultRetry(
		ctx,
		`INSERT INTO files (id, original_name, stored_path, size_bytes, content_type, upload_time, status)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID,
		f.OriginalName,
		f.StoredPath,
		f.SizeBytes,
		nullableString(f.ContentType),
		formatTime(f.UploadTime),
		f.Status,
	); err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// GetFile fetches a file by identifier. It returns nil when no row matches.
func (s *Store) GetFile(ctx context.Context, id string) (*File, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return f, nil
}

// FilePath resolves a file id to its stored source path. The boolean is false
// when the id is unknown.
func (s *Store) FilePath(ctx context.Context, id string) (string, bool, error) {
	var path string
	err := s.db.QueryRowContext(ctx, `SELECT stored_path FROM files WHERE id = ?`, id).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("file path: %w", err)
	}
	return path, true, nil
}

// ListFiles returns files ordered by upload time, optionally filtered by status.
func (s *Store) ListFiles(ctx context.Context, statuses ...FileStatus) ([]*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query += ` ORDER BY upload_time`
	return s.queryFiles(ctx, query, args...)
}

// FilesForJob returns the files currently assigned to a job.
func (s *Store) FilesForJob(ctx context.Context, jobID string) ([]*File, error) {
	return s.queryFiles(ctx, `SELECT `+fileColumns+` FROM files WHERE job_id = ? ORDER BY upload_time`, jobID)
}

func (s *Store) queryFiles(ctx context.Context, query string, args ...any) ([]*File, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// AssignFilesToJob moves Uploaded files to Processing under jobID. Unknown ids
// and files in other states are left untouched. It returns the number of rows changed.
func (s *Store) AssignFilesToJob(ctx context.Context, jobID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+3)
	args = append(args, FileProcessing, jobID, FileUploaded)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE files SET status = ?, job_id = ?
         WHERE status = ? AND id IN (`+makePlaceholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("assign files to job: %w", err)
	}
	return res.RowsAffected()
}

// UpdateFileStatus applies a forward-only status transition. Completed
// transitions record outputPath and processedAt. It returns false when the
// file is unknown or the transition would move backwards.
func (s *Store) UpdateFileStatus(ctx context.Context, id string, status FileStatus, outputPath string, processedAt time.Time) (bool, error) {
	from, ok := fileTransitions[status]
	if !ok {
		return false, fmt.Errorf("update file status: %q is not a valid target", status)
	}
	if status == FileCompleted && strings.TrimSpace(outputPath) == "" {
		return false, errors.New("update file status: completed files require an output path")
	}
	var processed any
	if status == FileCompleted || status == FileError {
		if processedAt.IsZero() {
			processedAt = time.Now()
		}
		processed = formatTime(processedAt)
	}

	args := []any{status, nullableString(outputPath), processed, id}
	for _, f := range from {
		args = append(args, f)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE files SET status = ?, output_path = ?, processed_time = ?
         WHERE id = ? AND status IN (`+makePlaceholders(len(from))+`)`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("update file status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FailUnfinishedFiles marks every Processing file assigned to jobID as Error.
func (s *Store) FailUnfinishedFiles(ctx context.Context, jobID string) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE files SET status = ?, processed_time = ? WHERE job_id = ? AND status = ?`,
		FileError,
		nowString(),
		jobID,
		FileProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("fail unfinished files: %w", err)
	}
	return res.RowsAffected()
}
