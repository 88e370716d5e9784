package store

import "time"

// FileStatus represents the lifecycle of an uploaded file.
type FileStatus string

const (
	FileUploaded   FileStatus = "uploaded"
	FileProcessing FileStatus = "processing"
	FileCompleted  FileStatus = "completed"
	FileError      FileStatus = "error"
)

// JobStatus represents the lifecycle of a processing job.
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobError      JobStatus = "error"
)

// IsTerminal reports whether the job can no longer change status.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobError
}

// fileTransitions lists the statuses a file may move to from each state.
// Transitions only move forward.
var fileTransitions = map[FileStatus][]FileStatus{
	FileProcessing: {FileUploaded},
	FileCompleted:  {FileProcessing},
	FileError:      {FileUploaded, FileProcessing},
}

// File is one uploaded source artifact.
type File struct {
	ID            string
	OriginalName  string
	StoredPath    string
	SizeBytes     int64
	ContentType   string
	UploadTime    time.Time
	Status        FileStatus
	JobID         string
	ProcessedTime *time.Time
	OutputPath    string
	SourcePurged  bool
}

// Job is one processing request spanning one or more files.
type Job struct {
	ID              string
	Status          JobStatus
	Progress        float64
	FileCount       int
	SettingsJSON    string
	ErrorMessage    string
	StartedAt       time.Time
	CompletedAt     *time.Time
	BundlePath      string
	BundleCreatedAt *time.Time
	OutputsPurged   bool
	BundlePurged    bool
}

// CleanupEntry is one append-only audit record written by the cleanup engine.
type CleanupEntry struct {
	ID           int64
	Operation    string
	TargetPath   string
	JobID        string
	Timestamp    time.Time
	Success      bool
	ErrorMessage string
}

// OperationCount tallies audit rows for a single cleanup operation.
type OperationCount struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// Stats aggregates row counts for observability endpoints.
type Stats struct {
	TotalFiles        int                       `json:"total_files"`
	FilesByStatus     map[string]int            `json:"files_by_status"`
	TotalJobs         int                       `json:"total_jobs"`
	JobsByStatus      map[string]int            `json:"jobs_by_status"`
	CleanupOperations map[string]OperationCount `json:"cleanup_operations"`
}

// PruneResult reports rows removed by PruneTerminal.
type PruneResult struct {
	Jobs  int64
	Files int64
}

// DatabaseHealth contains diagnostic information about the database.
type DatabaseHealth struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    int      `json:"schema_version"`
	TablesPresent    []string `json:"tables_present"`
	MissingTables    []string `json:"missing_tables,omitempty"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalFiles       int      `json:"total_files"`
	TotalJobs        int      `json:"total_jobs"`
	TotalAuditRows   int      `json:"total_audit_rows"`
	Error            string   `json:"error,omitempty"`
}
