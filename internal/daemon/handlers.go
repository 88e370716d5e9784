package daemon

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/multierr"

	"clipforge/internal/api"
	"clipforge/internal/logging"
	"clipforge/internal/services"
	"clipforge/internal/settings"
	"clipforge/internal/store"
)

const defaultJobListLimit = 100

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	active := status.ActiveJobs
	if active == nil {
		active = []string{}
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:        status.Running,
		PID:            status.PID,
		DatabasePath:   status.DatabasePath,
		LockFilePath:   status.LockFilePath,
		ActiveJobs:     active,
		Subscribers:    status.Subscribers,
		CleanupRunning: status.CleanupRunning,
		PatternEnabled: status.PatternEnabled,
		Transcoder:     s.daemon.cfg.Transcoder.Backend,
		Dependencies:   api.FromDependencies(status.Preflight.Dependencies),
		Directories:    api.FromDirectories(status.Preflight.Directories),
	})
}

// handleUpload streams every "files" part of a multipart body into the
// ingest service. One rejected file fails the request; files stored before it
// are kept.
func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	reader, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "upload", "multipart form required", err))
		return
	}
	stored := make([]api.FileItem, 0)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "upload", "read multipart body", err))
			return
		}
		if part.FormName() != "files" || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		file, err := s.daemon.ingest.Save(r.Context(), part.FileName(), part)
		_ = part.Close()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		stored = append(stored, api.FromFile(file))
	}
	if len(stored) == 0 {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "upload", "no files provided", nil))
		return
	}
	s.writeJSON(w, http.StatusOK, api.UploadResponse{
		Message: fmt.Sprintf("Successfully uploaded %d files", len(stored)),
		Files:   stored,
	})
}

func (s *apiServer) handleFiles(w http.ResponseWriter, r *http.Request) {
	var statuses []store.FileStatus
	for _, value := range r.URL.Query()["status"] {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			statuses = append(statuses, store.FileStatus(strings.ToLower(trimmed)))
		}
	}
	files, err := s.daemon.store.ListFiles(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FileListResponse{Files: api.FromFiles(files)})
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitJobRequest
	if err := api.DecodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	opts, err := req.ResolveSettings()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id, err := s.daemon.orch.Submit(r.Context(), req.FileIDs, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.SubmitJobResponse{JobID: id, Status: string(store.JobProcessing)})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultJobListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "jobs", "limit must be a positive integer", nil))
			return
		}
		limit = parsed
	}
	views, err := s.daemon.orch.ListAll(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobViews(views)})
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	view, err := s.daemon.orch.Lookup(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromJobView(view))
}

func (s *apiServer) handleBundle(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	path, err := s.daemon.orch.GetOrCreateBundle(r.Context(), jobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrConflict, "api", "bundle", "bundle not available", err))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "processed_videos_"+jobID+".zip"))
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}

func (s *apiServer) handlePresets(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.PresetListResponse{Presets: api.FromPresets(settings.Presets())})
}

func (s *apiServer) handleCleanupStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.daemon.cleanup.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *apiServer) handleCleanupRun(w http.ResponseWriter, r *http.Request) {
	report, err := s.daemon.cleanup.ManualCycle(r.Context())
	resp := api.CleanupResponse{Message: "Manual cleanup completed", Report: report}
	for _, e := range multierr.Errors(err) {
		resp.Errors = append(resp.Errors, e.Error())
	}
	if err != nil {
		resp.Message = "Manual cleanup completed with errors"
		logging.WithContext(r.Context(), s.logger).Warn("manual cleanup reported errors", logging.Error(err))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleCleanupForce(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	report, err := s.daemon.cleanup.ForceCleanup(r.Context(), jobID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CleanupResponse{
		Message: fmt.Sprintf("Job %s cleaned up successfully", jobID),
		Report:  report,
	})
}

func (s *apiServer) handlePatternGet(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.PatternState{Enabled: s.daemon.pattern.Enabled()})
}

func (s *apiServer) handlePatternSet(w http.ResponseWriter, r *http.Request) {
	var req api.PatternRequest
	if err := api.DecodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.daemon.pattern.Set(*req.Enabled)
	logging.WithContext(r.Context(), s.logger).Info("intro pattern toggled", logging.Bool("enabled", *req.Enabled))
	s.writeJSON(w, http.StatusOK, api.PatternState{Enabled: s.daemon.pattern.Enabled()})
}

// handlePatternProcess starts a single-file job with the intro pattern forced
// on. The global toggle must be enabled.
func (s *apiServer) handlePatternProcess(w http.ResponseWriter, r *http.Request) {
	var req api.PatternProcessRequest
	if err := api.DecodeJSON(r.Body, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if !s.daemon.pattern.Enabled() {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "pattern", "intro pattern is disabled", nil))
		return
	}
	file, err := s.daemon.store.GetFile(r.Context(), req.FileID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if file == nil {
		s.writeError(w, r, services.Wrap(services.ErrNotFound, "api", "pattern", fmt.Sprintf("file %s not found", req.FileID), nil))
		return
	}
	if file.Status != store.FileUploaded {
		s.writeError(w, r, services.Wrap(services.ErrConflict, "api", "pattern",
			fmt.Sprintf("file %s is %s; only uploaded files can be processed", file.ID, file.Status), nil))
		return
	}
	opts := settings.Default()
	opts.Effects.Pattern = true
	id, err := s.daemon.orch.Submit(r.Context(), []string{file.ID}, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	logging.WithContext(r.Context(), s.logger).Info("intro pattern job started",
		logging.String(logging.FieldFileID, file.ID),
		logging.String(logging.FieldJobID, id),
	)
	s.writeJSON(w, http.StatusAccepted, api.SubmitJobResponse{JobID: id, Status: string(store.JobProcessing)})
}
