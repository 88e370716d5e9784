package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
	"clipforge/internal/apiclient"
	"clipforge/internal/settings"
	"clipforge/internal/store"
)

const waitPollInterval = time.Second

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var preset string
	var settingsPath string
	var pattern bool
	var wait bool

	cmd := &cobra.Command{
		Use:   "submit <file-id>...",
		Short: "Start a processing job for uploaded files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.SubmitJobRequest{FileIDs: args, Preset: strings.TrimSpace(preset)}
			if settingsPath != "" {
				s, err := readSettingsFile(settingsPath)
				if err != nil {
					return err
				}
				req.Settings = &s
			}
			if pattern {
				if req.Preset != "" {
					p, ok := settings.Lookup(req.Preset)
					if !ok {
						return fmt.Errorf("unknown preset %q", req.Preset)
					}
					s := p.Settings
					req.Settings, req.Preset = &s, ""
				}
				if req.Settings == nil {
					s := settings.Default()
					req.Settings = &s
				}
				req.Settings.Effects.Pattern = true
			}

			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.Submit(cmd.Context(), req)
				if err != nil {
					return err
				}
				return reportAccepted(cmd, ctx, client, resp, wait)
			})
		},
	}
	cmd.Flags().StringVarP(&preset, "preset", "p", "", "Named preset (run clipforge presets for the list)")
	cmd.Flags().StringVar(&settingsPath, "settings", "", "JSON file with processing settings")
	cmd.Flags().BoolVar(&pattern, "pattern", false, "Prepend the intro pattern to every output")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the job to finish")
	return cmd
}

// reportAccepted prints an accepted job, or with wait polls it to a terminal
// state and prints the result.
func reportAccepted(cmd *cobra.Command, ctx *commandContext, client *apiclient.Client, resp api.SubmitJobResponse, wait bool) error {
	if !wait {
		if ctx.jsonOutput() {
			return writeJSON(cmd, resp)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Job %s accepted\n", resp.JobID)
		return nil
	}
	job, err := waitForJob(cmd.Context(), client, resp.JobID, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if ctx.jsonOutput() {
		return writeJSON(cmd, job)
	}
	printJob(cmd.OutOrStdout(), job)
	if job.Status == string(store.JobError) {
		return fmt.Errorf("job %s failed: %s", job.ID, job.Error)
	}
	return nil
}

func readSettingsFile(path string) (settings.ProcessingSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return settings.ProcessingSettings{}, fmt.Errorf("read settings: %w", err)
	}
	s, err := settings.Decode(string(data))
	if err != nil {
		return settings.ProcessingSettings{}, err
	}
	if err := s.Validate(); err != nil {
		return settings.ProcessingSettings{}, err
	}
	return s, nil
}

// waitForJob polls until the job reaches a terminal state, echoing progress
// changes to progressOut.
func waitForJob(ctx context.Context, client *apiclient.Client, id string, progressOut io.Writer) (api.JobItem, error) {
	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()
	last := -1.0
	for {
		job, err := client.Job(ctx, id)
		if err != nil {
			return api.JobItem{}, err
		}
		if job.Progress != last {
			fmt.Fprintf(progressOut, "%s %s\n", shortID(id), formatProgress(job.Progress))
			last = job.Progress
		}
		if job.Status != string(store.JobProcessing) {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return api.JobItem{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
