package preflight_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"clipforge/internal/preflight"
	"clipforge/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := preflight.CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := preflight.CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if preflight.CheckDirectoryAccess("test", f).Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	report := preflight.RunAll(context.Background(), nil)
	if report.Directories != nil || report.Dependencies != nil {
		t.Fatal("expected empty report for nil config")
	}
}

func TestRunAll_WithStubbedBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	report := preflight.RunAll(context.Background(), cfg)
	if len(report.Directories) != 3 {
		t.Fatalf("expected 3 directory checks, got %d", len(report.Directories))
	}
	if len(report.Dependencies) != 2 {
		t.Fatalf("expected 2 dependency checks, got %d", len(report.Dependencies))
	}
	if !report.OK() {
		t.Fatalf("expected healthy report, got %+v", report)
	}
}

func TestRunAll_MissingOutputDir(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := os.RemoveAll(cfg.Paths.OutputDir); err != nil {
		t.Fatalf("remove output dir: %v", err)
	}
	if preflight.RunAll(context.Background(), cfg).OK() {
		t.Fatal("expected report to fail without output dir")
	}
}
