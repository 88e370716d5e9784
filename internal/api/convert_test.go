package api

import (
	"errors"
	"strings"
	"testing"
	"time"

	"clipforge/internal/jobs"
	"clipforge/internal/services"
	"clipforge/internal/settings"
	"clipforge/internal/store"
)

func TestFromFile(t *testing.T) {
	uploaded := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	processed := uploaded.Add(time.Minute)
	item := FromFile(&store.File{
		ID:            "f1",
		OriginalName:  "clip.mp4",
		SizeBytes:     42,
		UploadTime:    uploaded,
		Status:        store.FileCompleted,
		JobID:         "j1",
		ProcessedTime: &processed,
		OutputPath:    "/out/clip_processed.mp4",
	})
	if item.UploadedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("unexpected upload time %q", item.UploadedAt)
	}
	if item.ProcessedAt != "2026-03-01T12:01:00.000Z" {
		t.Fatalf("unexpected processed time %q", item.ProcessedAt)
	}
	if item.Status != "completed" || item.JobID != "j1" {
		t.Fatalf("unexpected item: %+v", item)
	}
	if got := FromFile(nil); got.ID != "" {
		t.Fatalf("expected zero item for nil, got %+v", got)
	}
}

func TestFromJobView(t *testing.T) {
	completed := time.Now()
	view := jobs.View{
		ID:          "job-1",
		Status:      store.JobCompleted,
		Progress:    100,
		FileCount:   1,
		Results:     []jobs.Result{{FileID: "f1", OutputPath: "/out/a.mp4", Status: "completed"}},
		StartedAt:   completed.Add(-time.Minute),
		CompletedAt: &completed,
		BundleReady: true,
	}
	item := FromJobView(view)
	if item.BundleURL != "/api/jobs/job-1/bundle" {
		t.Fatalf("unexpected bundle url %q", item.BundleURL)
	}
	if len(item.Results) != 1 || item.Results[0].OutputPath != "/out/a.mp4" {
		t.Fatalf("unexpected results: %+v", item.Results)
	}
	if item.CompletedAt == "" || item.StartedAt == "" {
		t.Fatal("expected timestamps")
	}

	running := FromJobView(jobs.View{ID: "job-2", Status: store.JobProcessing})
	if running.BundleURL != "" || running.Results == nil {
		t.Fatalf("unexpected running item: %+v", running)
	}
}

func TestDecodeJSONValidatesNestedSettings(t *testing.T) {
	var req SubmitJobRequest
	body := `{"file_ids":["a"],"settings":{"noise":{"type":"Perlin","intensity":500}}}`
	err := DecodeJSON(strings.NewReader(body), &req)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	var verr *settings.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected field errors, got %T", err)
	}
}

func TestDecodeJSONRejectsBadBodies(t *testing.T) {
	cases := []string{
		`{"file_ids":[]}`,
		`{"file_ids":[""]}`,
		`{"file_ids":["a"],"unknown":true}`,
		`not json`,
	}
	for _, body := range cases {
		var req SubmitJobRequest
		if err := DecodeJSON(strings.NewReader(body), &req); !errors.Is(err, services.ErrValidation) {
			t.Errorf("DecodeJSON(%s) = %v, want validation error", body, err)
		}
	}
}

func TestResolveSettings(t *testing.T) {
	got, err := SubmitJobRequest{Preset: "tiktok"}.ResolveSettings()
	if err != nil {
		t.Fatalf("ResolveSettings: %v", err)
	}
	want, _ := settings.Lookup("TikTok")
	if got != want.Settings {
		t.Fatalf("expected TikTok preset settings, got %+v", got)
	}

	if _, err := (SubmitJobRequest{Preset: "myspace"}).ResolveSettings(); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown preset, got %v", err)
	}

	def, err := SubmitJobRequest{}.ResolveSettings()
	if err != nil || def != settings.Default() {
		t.Fatalf("expected defaults, got %+v %v", def, err)
	}
}
