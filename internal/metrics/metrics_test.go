package metrics_test

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"clipforge/internal/metrics"
)

func TestCollectorsRecordValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	subs := 3
	m := metrics.New(reg, func() int { return subs })

	m.JobSubmitted()
	m.JobSubmitted()
	m.JobFinished("completed")
	m.FileTransformed("completed")
	m.FileTransformed("skipped")
	m.CleanupDeletion("bundle_deleted", true)
	m.CleanupDeletion("bundle_deleted", false)
	m.ObserveSweep(120 * time.Millisecond)

	expected := `
# HELP clipforge_jobs_active Processing jobs currently running.
# TYPE clipforge_jobs_active gauge
clipforge_jobs_active 1
# HELP clipforge_jobs_finished_total Processing jobs that reached a terminal state.
# TYPE clipforge_jobs_finished_total counter
clipforge_jobs_finished_total{status="completed"} 1
# HELP clipforge_events_subscribers Connected event stream clients.
# TYPE clipforge_events_subscribers gauge
clipforge_events_subscribers 3
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"clipforge_jobs_active", "clipforge_jobs_finished_total", "clipforge_events_subscribers"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}

	if got, err := testutil.GatherAndCount(reg, "clipforge_cleanup_deletions_total"); err != nil || got != 2 {
		t.Fatalf("expected 2 deletion series, got %d (%v)", got, err)
	}
	if got, err := testutil.GatherAndCount(reg, "clipforge_cleanup_sweep_duration_seconds"); err != nil || got != 1 {
		t.Fatalf("expected sweep histogram, got %d (%v)", got, err)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *metrics.Metrics
	m.JobSubmitted()
	m.JobFinished("error")
	m.FileTransformed("error")
	m.CleanupDeletion("x", true)
	m.ObserveSweep(time.Second)

	empty := metrics.New(nil, nil)
	empty.JobSubmitted()
}
