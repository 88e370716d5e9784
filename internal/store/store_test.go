package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"clipforge/internal/store"
	"clipforge/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	health, err := st.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.IntegrityCheck {
		t.Fatalf("unexpected health: %+v", health)
	}
	if len(health.MissingTables) != 0 {
		t.Fatalf("missing tables: %v", health.MissingTables)
	}
	if health.SchemaVersion != 1 {
		t.Fatalf("unexpected schema version %d", health.SchemaVersion)
	}

	// Reopening an initialized database must not recreate the schema.
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	reopened, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	reopened.Close()
}

func TestFileLifecycleMovesForwardOnly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	f := testsupport.AddUploadedFile(t, st, cfg, "clip.mp4", time.Time{})

	path, ok, err := st.FilePath(ctx, f.ID)
	if err != nil || !ok || path != f.StoredPath {
		t.Fatalf("FilePath = %q %v %v, want %q", path, ok, err, f.StoredPath)
	}
	if _, ok, err := st.FilePath(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected unknown id to resolve to nothing, got ok=%v err=%v", ok, err)
	}

	job := &store.Job{ID: "job-1", FileCount: 1}
	if err := st.AddJob(ctx, job); err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}
	n, err := st.AssignFilesToJob(ctx, job.ID, []string{f.ID, "missing"})
	if err != nil || n != 1 {
		t.Fatalf("AssignFilesToJob = %d %v, want 1", n, err)
	}

	output := filepath.Join(cfg.Paths.OutputDir, "out.mp4")
	changed, err := st.UpdateFileStatus(ctx, f.ID, store.FileCompleted, output, time.Now())
	if err != nil || !changed {
		t.Fatalf("complete file: changed=%v err=%v", changed, err)
	}

	// Completed -> Processing is a backwards move and must be refused.
	if n, err := st.AssignFilesToJob(ctx, "job-2", []string{f.ID}); err != nil || n != 0 {
		t.Fatalf("expected reassignment to be refused, got %d %v", n, err)
	}
	if changed, err := st.UpdateFileStatus(ctx, f.ID, store.FileError, "", time.Now()); err != nil || changed {
		t.Fatalf("expected completed -> error to be refused, changed=%v err=%v", changed, err)
	}

	got, err := st.GetFile(ctx, f.ID)
	if err != nil || got == nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if got.Status != store.FileCompleted || got.OutputPath != output || got.JobID != job.ID || got.ProcessedTime == nil {
		t.Fatalf("unexpected file row: %+v", got)
	}

	outputs, err := st.OutputsForJob(ctx, job.ID)
	if err != nil || len(outputs) != 1 || outputs[0] != output {
		t.Fatalf("OutputsForJob = %v %v", outputs, err)
	}
}

func TestCompletedFileRequiresOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	f := testsupport.AddUploadedFile(t, st, cfg, "a.mp4", time.Time{})
	if _, err := st.UpdateFileStatus(context.Background(), f.ID, store.FileCompleted, "", time.Now()); err == nil {
		t.Fatal("expected error for completed file without output")
	}
}

func TestJobProgressIsMonotonicAndTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := st.AddJob(ctx, &store.Job{ID: "job-1", FileCount: 2}); err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}
	for _, p := range []float64{10, 40, 25} {
		if err := st.UpdateJobProgress(ctx, "job-1", p); err != nil {
			t.Fatalf("UpdateJobProgress(%v): %v", p, err)
		}
	}
	job, _ := st.GetJob(ctx, "job-1")
	if job.Progress != 40 {
		t.Fatalf("expected progress to stay at 40, got %v", job.Progress)
	}

	if err := st.UpdateJobStatus(ctx, "job-1", store.JobError, "", time.Now()); err == nil {
		t.Fatal("expected error when finishing with error status and no message")
	}
	if err := st.UpdateJobStatus(ctx, "job-1", store.JobCompleted, "", time.Now()); err != nil {
		t.Fatalf("UpdateJobStatus failed: %v", err)
	}
	job, _ = st.GetJob(ctx, "job-1")
	if job.Status != store.JobCompleted || job.Progress != 100 || job.CompletedAt == nil {
		t.Fatalf("unexpected completed job: %+v", job)
	}

	// Terminal jobs ignore further progress and status changes.
	_ = st.UpdateJobProgress(ctx, "job-1", 5)
	_ = st.UpdateJobStatus(ctx, "job-1", store.JobError, "late failure", time.Now())
	job, _ = st.GetJob(ctx, "job-1")
	if job.Status != store.JobCompleted || job.Progress != 100 || job.ErrorMessage != "" {
		t.Fatalf("terminal job changed: %+v", job)
	}

	if missing, err := st.GetJob(ctx, "nope"); err != nil || missing != nil {
		t.Fatalf("expected nil for unknown job, got %+v %v", missing, err)
	}
}

func TestSetJobBundleRequiresCompleted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := st.AddJob(ctx, &store.Job{ID: "job-1"}); err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}
	if err := st.SetJobBundle(ctx, "job-1", "/tmp/b.zip", time.Now()); err == nil {
		t.Fatal("expected bundle to be refused while processing")
	}
	if err := st.UpdateJobStatus(ctx, "job-1", store.JobCompleted, "", time.Now()); err != nil {
		t.Fatalf("UpdateJobStatus failed: %v", err)
	}
	if err := st.SetJobBundle(ctx, "job-1", "/tmp/b.zip", time.Now()); err != nil {
		t.Fatalf("SetJobBundle failed: %v", err)
	}
	job, _ := st.GetJob(ctx, "job-1")
	if job.BundlePath != "/tmp/b.zip" || job.BundleCreatedAt == nil {
		t.Fatalf("unexpected bundle fields: %+v", job)
	}
}

func TestCleanupEligibilityQueries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	now := time.Now()

	old := testsupport.AddUploadedFile(t, st, cfg, "old.mp4", now.Add(-time.Minute))
	fresh := testsupport.AddUploadedFile(t, st, cfg, "fresh.mp4", now)
	idle := testsupport.AddUploadedFile(t, st, cfg, "idle.mp4", now.Add(-time.Hour))

	if err := st.AddJob(ctx, &store.Job{ID: "job-1", FileCount: 2}); err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}
	if _, err := st.AssignFilesToJob(ctx, "job-1", []string{old.ID, fresh.ID}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	for _, f := range []*store.File{old, fresh} {
		if _, err := st.UpdateFileStatus(ctx, f.ID, store.FileCompleted, f.StoredPath+".out", now); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}

	eligible, err := st.FilesEligibleForCleanup(ctx, now.Add(-5*time.Second))
	if err != nil {
		t.Fatalf("FilesEligibleForCleanup failed: %v", err)
	}
	if len(eligible) != 1 || eligible[0].ID != old.ID {
		t.Fatalf("expected only %s eligible, got %+v (idle %s must be skipped)", old.ID, eligible, idle.ID)
	}
	if err := st.MarkSourcePurged(ctx, old.ID); err != nil {
		t.Fatalf("MarkSourcePurged failed: %v", err)
	}
	eligible, _ = st.FilesEligibleForCleanup(ctx, now.Add(-5*time.Second))
	if len(eligible) != 0 {
		t.Fatalf("expected purged file to be excluded, got %d", len(eligible))
	}

	if err := st.UpdateJobStatus(ctx, "job-1", store.JobCompleted, "", now); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}
	if err := st.SetJobBundle(ctx, "job-1", filepath.Join(cfg.Paths.OutputDir, "b.zip"), now.Add(-2*time.Minute)); err != nil {
		t.Fatalf("SetJobBundle: %v", err)
	}

	jobs, err := st.JobsWithExpiredOutputs(ctx, now.Add(-time.Minute))
	if err != nil || len(jobs) != 1 {
		t.Fatalf("JobsWithExpiredOutputs = %d %v", len(jobs), err)
	}
	if err := st.MarkOutputsPurged(ctx, "job-1"); err != nil {
		t.Fatalf("MarkOutputsPurged: %v", err)
	}
	if jobs, _ := st.JobsWithExpiredOutputs(ctx, now.Add(-time.Minute)); len(jobs) != 0 {
		t.Fatalf("expected purged outputs to be excluded")
	}

	if bundles, _ := st.BundlesEligibleForCleanup(ctx, now.Add(-10*time.Minute)); len(bundles) != 0 {
		t.Fatalf("bundle younger than window must not be eligible")
	}
	bundles, err := st.BundlesEligibleForCleanup(ctx, now.Add(-time.Minute))
	if err != nil || len(bundles) != 1 {
		t.Fatalf("BundlesEligibleForCleanup = %d %v", len(bundles), err)
	}
}

func TestAggregateStatsAndAuditLog(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.AddUploadedFile(t, st, cfg, "a.mp4", time.Time{})
	testsupport.AddUploadedFile(t, st, cfg, "b.mp4", time.Time{})
	if err := st.AddJob(ctx, &store.Job{ID: "job-1"}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	entries := []store.CleanupEntry{
		{Operation: "upload_file_deleted", TargetPath: "/x", Success: true},
		{Operation: "upload_file_deleted", TargetPath: "/y", Success: false, ErrorMessage: "permission denied"},
		{Operation: "bundle_deleted", TargetPath: "/z", JobID: "job-1", Success: true},
	}
	for _, e := range entries {
		if err := st.AppendCleanupLog(ctx, e); err != nil {
			t.Fatalf("AppendCleanupLog: %v", err)
		}
	}

	stats, err := st.AggregateStats(ctx)
	if err != nil {
		t.Fatalf("AggregateStats: %v", err)
	}
	if stats.TotalFiles != 2 || stats.FilesByStatus[string(store.FileUploaded)] != 2 {
		t.Fatalf("unexpected file stats: %+v", stats)
	}
	if stats.TotalJobs != 1 || stats.JobsByStatus[string(store.JobProcessing)] != 1 {
		t.Fatalf("unexpected job stats: %+v", stats)
	}
	if got := stats.CleanupOperations["upload_file_deleted"]; got.Success != 1 || got.Failed != 1 {
		t.Fatalf("unexpected upload op counts: %+v", got)
	}

	logRows, err := st.ListCleanupLog(ctx, 0)
	if err != nil || len(logRows) != 3 {
		t.Fatalf("ListCleanupLog = %d %v", len(logRows), err)
	}
	if logRows[0].Operation != "bundle_deleted" || logRows[0].JobID != "job-1" {
		t.Fatalf("expected newest entry first, got %+v", logRows[0])
	}
	if logRows[1].ErrorMessage != "permission denied" || logRows[1].Success {
		t.Fatalf("unexpected failure row: %+v", logRows[1])
	}
}

func TestPruneTerminalKeepsAuditAndActiveRows(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	longAgo := time.Now().Add(-72 * time.Hour)

	done := testsupport.AddUploadedFile(t, st, cfg, "done.mp4", longAgo)
	running := testsupport.AddUploadedFile(t, st, cfg, "running.mp4", longAgo)

	if err := st.AddJob(ctx, &store.Job{ID: "old", StartedAt: longAgo}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	if err := st.AddJob(ctx, &store.Job{ID: "active", StartedAt: longAgo}); err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	_, _ = st.AssignFilesToJob(ctx, "old", []string{done.ID})
	_, _ = st.AssignFilesToJob(ctx, "active", []string{running.ID})
	if err := st.UpdateJobStatus(ctx, "old", store.JobError, "boom", longAgo); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}
	if err := st.AppendCleanupLog(ctx, store.CleanupEntry{Operation: "bundle_deleted", JobID: "old", Success: true}); err != nil {
		t.Fatalf("AppendCleanupLog: %v", err)
	}

	result, err := st.PruneTerminal(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneTerminal: %v", err)
	}
	if result.Jobs != 1 || result.Files != 1 {
		t.Fatalf("unexpected prune result: %+v", result)
	}
	if job, _ := st.GetJob(ctx, "active"); job == nil {
		t.Fatal("processing job must survive pruning")
	}
	if f, _ := st.GetFile(ctx, running.ID); f == nil {
		t.Fatal("processing file must survive pruning")
	}
	logRows, _ := st.ListCleanupLog(ctx, 0)
	if len(logRows) != 1 {
		t.Fatalf("audit rows must never be pruned, got %d", len(logRows))
	}
}
