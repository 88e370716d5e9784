package jobs

import (
	"os"
	"sort"
	"time"

	"clipforge/internal/settings"
	"clipforge/internal/store"
)

// Result reports one successfully processed file.
type Result struct {
	FileID     string `json:"file_id"`
	OutputPath string `json:"output_path"`
	Status     string `json:"status"`
}

// View is an immutable snapshot of a job.
type View struct {
	ID              string                      `json:"id"`
	Status          store.JobStatus             `json:"status"`
	Progress        float64                     `json:"progress"`
	FileIDs         []string                    `json:"file_ids,omitempty"`
	FileCount       int                         `json:"file_count"`
	Results         []Result                    `json:"results"`
	Error           string                      `json:"error,omitempty"`
	Settings        settings.ProcessingSettings `json:"settings"`
	StartedAt       time.Time                   `json:"started_at"`
	CompletedAt     *time.Time                  `json:"completed_at,omitempty"`
	BundlePath      string                      `json:"bundle_path,omitempty"`
	BundleCreatedAt *time.Time                  `json:"bundle_created_at,omitempty"`
	BundleReady     bool                        `json:"bundle_ready"`
}

// task is the mutable registry entry; fields are guarded by Orchestrator.mu.
type task struct {
	id              string
	status          store.JobStatus
	progress        float64
	persistedPct    int
	fileIDs         []string
	settings        settings.ProcessingSettings
	results         []Result
	errMsg          string
	startedAt       time.Time
	completedAt     *time.Time
	bundlePath      string
	bundleCreatedAt *time.Time
	done            chan struct{}
}

func (t *task) view() View {
	v := View{
		ID:          t.id,
		Status:      t.status,
		Progress:    t.progress,
		FileIDs:     append([]string(nil), t.fileIDs...),
		FileCount:   len(t.fileIDs),
		Results:     append([]Result{}, t.results...),
		Error:       t.errMsg,
		Settings:    t.settings,
		StartedAt:   t.startedAt,
		CompletedAt: copyTime(t.completedAt),
		BundlePath:  t.bundlePath,
	}
	v.BundleCreatedAt = copyTime(t.bundleCreatedAt)
	v.BundleReady = t.status == store.JobCompleted && t.bundlePath != ""
	return v
}

func viewFromStore(job *store.Job, files []*store.File) View {
	v := View{
		ID:              job.ID,
		Status:          job.Status,
		Progress:        job.Progress,
		FileCount:       job.FileCount,
		Results:         []Result{},
		Error:           job.ErrorMessage,
		StartedAt:       job.StartedAt,
		CompletedAt:     copyTime(job.CompletedAt),
		BundleCreatedAt: copyTime(job.BundleCreatedAt),
	}
	if s, err := settings.Decode(job.SettingsJSON); err == nil {
		v.Settings = s
	}
	if !job.BundlePurged {
		v.BundlePath = job.BundlePath
	}
	v.BundleReady = job.Status == store.JobCompleted && v.BundlePath != ""
	for _, f := range files {
		v.FileIDs = append(v.FileIDs, f.ID)
		if job.Status == store.JobCompleted && f.Status == store.FileCompleted && f.OutputPath != "" {
			v.Results = append(v.Results, Result{FileID: f.ID, OutputPath: f.OutputPath, Status: string(store.FileCompleted)})
		}
	}
	return v
}

// dropMissingBundle clears a bundle that no longer exists on disk, such as one
// removed by a retention sweep or force cleanup.
func (v *View) dropMissingBundle() {
	if v.BundlePath == "" {
		return
	}
	if info, err := os.Stat(v.BundlePath); err == nil && !info.IsDir() {
		return
	}
	v.BundlePath = ""
	v.BundleCreatedAt = nil
	v.BundleReady = false
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func sortViews(views []View) {
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].StartedAt.Before(views[j].StartedAt)
	})
}

// Get returns a snapshot of a job known to the registry.
func (o *Orchestrator) Get(id string) (View, bool) {
	o.mu.RLock()
	t, ok := o.tasks[id]
	if !ok {
		o.mu.RUnlock()
		return View{}, false
	}
	v := t.view()
	o.mu.RUnlock()
	v.dropMissingBundle()
	return v, true
}

// List returns registry snapshots ordered by start time.
func (o *Orchestrator) List() []View {
	o.mu.RLock()
	views := make([]View, 0, len(o.tasks))
	for _, t := range o.tasks {
		views = append(views, t.view())
	}
	o.mu.RUnlock()
	for i := range views {
		views[i].dropMissingBundle()
	}
	sortViews(views)
	return views
}

// Active returns the ids of running jobs ordered by start time.
func (o *Orchestrator) Active() []string {
	var ids []string
	for _, v := range o.List() {
		if v.Status == store.JobProcessing {
			ids = append(ids, v.ID)
		}
	}
	return ids
}

// Evict drops terminal jobs that finished before cutoff from the registry.
// They remain available through the store.
func (o *Orchestrator) Evict(cutoff time.Time) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.evictLocked(cutoff)
}

func (o *Orchestrator) evictLocked(cutoff time.Time) int {
	removed := 0
	for id, t := range o.tasks {
		if t.status.IsTerminal() && t.completedAt != nil && t.completedAt.Before(cutoff) {
			delete(o.tasks, id)
			removed++
		}
	}
	return removed
}
