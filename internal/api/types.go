package api

import (
	"clipforge/internal/cleanup"
	"clipforge/internal/deps"
	"clipforge/internal/preflight"
	"clipforge/internal/settings"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FileItem describes an uploaded file.
type FileItem struct {
	ID           string `json:"id"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size"`
	ContentType  string `json:"content_type,omitempty"`
	UploadedAt   string `json:"uploaded_at,omitempty"`
	Status       string `json:"status"`
	JobID        string `json:"job_id,omitempty"`
	ProcessedAt  string `json:"processed_at,omitempty"`
	OutputPath   string `json:"output_path,omitempty"`
	SourcePurged bool   `json:"source_purged"`
}

// JobResult is one processed output inside a JobItem.
type JobResult struct {
	FileID     string `json:"file_id"`
	OutputPath string `json:"output_path"`
	Status     string `json:"status"`
}

// JobItem is the transport form of a job snapshot.
type JobItem struct {
	ID          string                      `json:"job_id"`
	Status      string                      `json:"status"`
	Progress    float64                     `json:"progress"`
	FileIDs     []string                    `json:"file_ids,omitempty"`
	FileCount   int                         `json:"file_count"`
	Results     []JobResult                 `json:"results"`
	Error       string                      `json:"error,omitempty"`
	Settings    settings.ProcessingSettings `json:"settings"`
	StartedAt   string                      `json:"started_at,omitempty"`
	CompletedAt string                      `json:"completed_at,omitempty"`
	BundleReady bool                        `json:"bundle_ready"`
	BundleURL   string                      `json:"bundle_url,omitempty"`
}

// SubmitJobRequest starts a job. Preset, when set, supplies the settings and
// Settings is ignored.
type SubmitJobRequest struct {
	FileIDs  []string                     `json:"file_ids" validate:"required,min=1,dive,required"`
	Settings *settings.ProcessingSettings `json:"settings,omitempty"`
	Preset   string                       `json:"preset,omitempty" validate:"omitempty,max=64"`
}

// SubmitJobResponse acknowledges an accepted job.
type SubmitJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// UploadResponse lists files stored by one upload request.
type UploadResponse struct {
	Message string     `json:"message"`
	Files   []FileItem `json:"files"`
}

// FileListResponse wraps a collection of files.
type FileListResponse struct {
	Files []FileItem `json:"files"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []JobItem `json:"jobs"`
}

// HealthResponse answers liveness probes.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// PresetItem is one named settings preset.
type PresetItem struct {
	Name     string                      `json:"name"`
	Settings settings.ProcessingSettings `json:"settings"`
}

// PresetListResponse wraps the available presets.
type PresetListResponse struct {
	Presets []PresetItem `json:"presets"`
}

// PatternState reports the global intro pattern toggle.
type PatternState struct {
	Enabled bool `json:"enabled"`
}

// PatternRequest sets the global intro pattern toggle.
type PatternRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// PatternProcessRequest runs the intro pattern over a single uploaded file.
type PatternProcessRequest struct {
	FileID string `json:"file_id" validate:"required"`
}

// CleanupResponse acknowledges a manual or forced cleanup.
type CleanupResponse struct {
	Message string         `json:"message"`
	Report  cleanup.Report `json:"report"`
	Errors  []string       `json:"errors,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DirectoryStatus reports access to one managed directory.
type DirectoryStatus struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool               `json:"running"`
	PID            int                `json:"pid"`
	DatabasePath   string             `json:"database_path"`
	LockFilePath   string             `json:"lock_file_path"`
	ActiveJobs     []string           `json:"active_jobs"`
	Subscribers    int                `json:"subscribers"`
	CleanupRunning bool               `json:"cleanup_running"`
	PatternEnabled bool               `json:"pattern_enabled"`
	Transcoder     string             `json:"transcoder"`
	Dependencies   []DependencyStatus `json:"dependencies"`
	Directories    []DirectoryStatus  `json:"directories"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// FromDependencies converts dependency checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

// FromDirectories converts directory access checks.
func FromDirectories(results []preflight.Result) []DirectoryStatus {
	out := make([]DirectoryStatus, 0, len(results))
	for _, r := range results {
		out = append(out, DirectoryStatus{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}
