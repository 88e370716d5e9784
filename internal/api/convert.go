package api

import (
	"time"

	"clipforge/internal/jobs"
	"clipforge/internal/settings"
	"clipforge/internal/store"
)

// FromFile converts a store row to its API representation.
func FromFile(f *store.File) FileItem {
	if f == nil {
		return FileItem{}
	}
	return FileItem{
		ID:           f.ID,
		OriginalName: f.OriginalName,
		Size:         f.SizeBytes,
		ContentType:  f.ContentType,
		UploadedAt:   formatTime(f.UploadTime),
		Status:       string(f.Status),
		JobID:        f.JobID,
		ProcessedAt:  formatTimePtr(f.ProcessedTime),
		OutputPath:   f.OutputPath,
		SourcePurged: f.SourcePurged,
	}
}

// FromFiles converts a slice of store rows.
func FromFiles(files []*store.File) []FileItem {
	out := make([]FileItem, 0, len(files))
	for _, f := range files {
		out = append(out, FromFile(f))
	}
	return out
}

// FromJobView converts an orchestrator snapshot.
func FromJobView(v jobs.View) JobItem {
	item := JobItem{
		ID:          v.ID,
		Status:      string(v.Status),
		Progress:    v.Progress,
		FileIDs:     v.FileIDs,
		FileCount:   v.FileCount,
		Results:     make([]JobResult, 0, len(v.Results)),
		Error:       v.Error,
		Settings:    v.Settings,
		StartedAt:   formatTime(v.StartedAt),
		CompletedAt: formatTimePtr(v.CompletedAt),
		BundleReady: v.BundleReady,
	}
	for _, r := range v.Results {
		item.Results = append(item.Results, JobResult(r))
	}
	if v.Status == store.JobCompleted {
		item.BundleURL = "/api/jobs/" + v.ID + "/bundle"
	}
	return item
}

// FromJobViews converts a slice of snapshots.
func FromJobViews(views []jobs.View) []JobItem {
	out := make([]JobItem, 0, len(views))
	for _, v := range views {
		out = append(out, FromJobView(v))
	}
	return out
}

// FromPresets converts the settings preset catalogue.
func FromPresets(presets []settings.Preset) []PresetItem {
	out := make([]PresetItem, 0, len(presets))
	for _, p := range presets {
		out = append(out, PresetItem{Name: p.Name, Settings: p.Settings})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
