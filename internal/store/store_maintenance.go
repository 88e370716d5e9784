package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// AggregateStats returns row counts grouped by status and cleanup outcomes
// grouped by operation.
func (s *Store) AggregateStats(ctx context.Context) (Stats, error) {
	stats := Stats{
		FilesByStatus:     make(map[string]int),
		JobsByStatus:      make(map[string]int),
		CleanupOperations: make(map[string]OperationCount),
	}

	if err := s.groupCounts(ctx, `SELECT status, COUNT(1) FROM files GROUP BY status`, stats.FilesByStatus, &stats.TotalFiles); err != nil {
		return Stats{}, fmt.Errorf("file stats: %w", err)
	}
	if err := s.groupCounts(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`, stats.JobsByStatus, &stats.TotalJobs); err != nil {
		return Stats{}, fmt.Errorf("job stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT operation, success, COUNT(1) FROM cleanup_log GROUP BY operation, success`)
	if err != nil {
		return Stats{}, fmt.Errorf("cleanup stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			op      string
			success int
			count   int
		)
		if err := rows.Scan(&op, &success, &count); err != nil {
			return Stats{}, err
		}
		entry := stats.CleanupOperations[op]
		if success != 0 {
			entry.Success += count
		} else {
			entry.Failed += count
		}
		stats.CleanupOperations[op] = entry
	}
	return stats, rows.Err()
}

func (s *Store) groupCounts(ctx context.Context, query string, dst map[string]int, total *int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key   string
			count int
		)
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		dst[key] = count
		*total += count
	}
	return rows.Err()
}

// PruneTerminal deletes Completed and Error jobs that finished before cutoff,
// the files assigned to them, and unassigned terminal files uploaded before
// cutoff. Cleanup log rows are never touched.
func (s *Store) PruneTerminal(ctx context.Context, cutoff time.Time) (PruneResult, error) {
	ctx = ensureContext(ctx)
	var result PruneResult
	err := retryOnBusy(ctx, func() error {
		result = PruneResult{}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		cut := formatTime(cutoff)
		expired := `SELECT id FROM jobs
                    WHERE status IN (?, ?) AND COALESCE(completed_at, started_at) < ?`

		res, err := tx.ExecContext(ctx,
			`DELETE FROM files WHERE job_id IN (`+expired+`)`,
			JobCompleted, JobError, cut,
		)
		if err != nil {
			return err
		}
		jobFiles, _ := res.RowsAffected()

		res, err = tx.ExecContext(ctx,
			`DELETE FROM files WHERE job_id IS NULL AND status IN (?, ?) AND upload_time < ?`,
			FileCompleted, FileError, cut,
		)
		if err != nil {
			return err
		}
		looseFiles, _ := res.RowsAffected()

		res, err = tx.ExecContext(ctx,
			`DELETE FROM jobs WHERE status IN (?, ?) AND COALESCE(completed_at, started_at) < ?`,
			JobCompleted, JobError, cut,
		)
		if err != nil {
			return err
		}
		result.Jobs, _ = res.RowsAffected()
		result.Files = jobFiles + looseFiles
		return tx.Commit()
	})
	if err != nil {
		return PruneResult{}, fmt.Errorf("prune terminal rows: %w", err)
	}
	return result, nil
}

// CheckHealth returns diagnostic information about the database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping database: %w", err)
	}
	health.DatabaseReadable = true

	if err := s.db.QueryRowContext(connCtx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}

	rows, err := s.db.QueryContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("list tables: %w", err)
	}
	present := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			health.Error = err.Error()
			return health, fmt.Errorf("scan table name: %w", err)
		}
		present[name] = struct{}{}
		health.TablesPresent = append(health.TablesPresent, name)
	}
	rows.Close()
	for _, table := range []string{"files", "jobs", "cleanup_log", "schema_version"} {
		if _, ok := present[table]; !ok {
			health.MissingTables = append(health.MissingTables, table)
		}
	}
	if len(health.MissingTables) > 0 {
		health.Error = "missing tables: " + strings.Join(health.MissingTables, ", ")
		return health, nil
	}

	counts := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM files", &health.TotalFiles},
		{"SELECT COUNT(*) FROM jobs", &health.TotalJobs},
		{"SELECT COUNT(*) FROM cleanup_log", &health.TotalAuditRows},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(connCtx, c.query).Scan(c.dst); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count rows: %w", err)
		}
	}

	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrity, "ok")
	return health, nil
}
