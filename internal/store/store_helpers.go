package store

import (
	"database/sql"
	"errors"
	"time"
)

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const fileColumns = "id, original_name, stored_path, size_bytes, content_type, upload_time, status, job_id, processed_time, output_path, source_purged_at"

const jobColumns = "id, status, progress, file_count, settings_json, error_message, started_at, completed_at, bundle_path, bundle_created_at, outputs_purged_at, bundle_purged_at"

type scanner interface{ Scan(dest ...any) error }

func scanFile(row scanner) (*File, error) {
	var (
		f            File
		contentType  sql.NullString
		uploadRaw    string
		status       string
		jobID        sql.NullString
		processedRaw sql.NullString
		outputPath   sql.NullString
		sourcePurged sql.NullString
	)
	if err := row.Scan(
		&f.ID,
		&f.OriginalName,
		&f.StoredPath,
		&f.SizeBytes,
		&contentType,
		&uploadRaw,
		&status,
		&jobID,
		&processedRaw,
		&outputPath,
		&sourcePurged,
	); err != nil {
		return nil, err
	}
	f.ContentType = contentType.String
	f.Status = FileStatus(status)
	f.JobID = jobID.String
	f.OutputPath = outputPath.String
	f.SourcePurged = sourcePurged.Valid
	if ts, err := parseTimeString(uploadRaw); err == nil {
		f.UploadTime = ts
	}
	f.ProcessedTime = parseNullableTime(processedRaw)
	return &f, nil
}

func scanJob(row scanner) (*Job, error) {
	var (
		j             Job
		status        string
		settingsJSON  sql.NullString
		errorMessage  sql.NullString
		startedRaw    string
		completedRaw  sql.NullString
		bundlePath    sql.NullString
		bundleRaw     sql.NullString
		outputsPurged sql.NullString
		bundlePurged  sql.NullString
	)
	if err := row.Scan(
		&j.ID,
		&status,
		&j.Progress,
		&j.FileCount,
		&settingsJSON,
		&errorMessage,
		&startedRaw,
		&completedRaw,
		&bundlePath,
		&bundleRaw,
		&outputsPurged,
		&bundlePurged,
	); err != nil {
		return nil, err
	}
	j.Status = JobStatus(status)
	j.SettingsJSON = settingsJSON.String
	j.ErrorMessage = errorMessage.String
	j.BundlePath = bundlePath.String
	j.OutputsPurged = outputsPurged.Valid
	j.BundlePurged = bundlePurged.Valid
	if ts, err := parseTimeString(startedRaw); err == nil {
		j.StartedAt = ts
	}
	j.CompletedAt = parseNullableTime(completedRaw)
	j.BundleCreatedAt = parseNullableTime(bundleRaw)
	return &j, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nowString() string {
	return formatTime(time.Now())
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return formatTime(*value)
}

func parseNullableTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	ts, err := parseTimeString(raw.String)
	if err != nil {
		return nil
	}
	return &ts
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
