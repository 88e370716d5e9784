package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
	"clipforge/internal/apiclient"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect jobs and download their bundles",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				jobs, err := client.ListJobs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.JobListResponse{Jobs: jobs})
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						job.ID,
						statusLabel(job.Status),
						formatProgress(job.Progress),
						strconv.Itoa(job.FileCount),
						yesNo(job.BundleReady),
						valueOrDash(job.StartedAt),
					})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Job", "Status", "Progress", "Files", "Bundle", "Started"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of jobs to show")

	showCmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job with its results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				job, err := client.Job(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, job)
				}
				printJob(cmd.OutOrStdout(), job)
				return nil
			})
		},
	}

	var outputPath string
	downloadCmd := &cobra.Command{
		Use:   "download <job-id>",
		Short: "Download the zip bundle of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			target := outputPath
			if target == "" {
				target = "processed_videos_" + id + ".zip"
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				return downloadBundle(cmd, client, id, target)
			})
		},
	}
	downloadCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination path for the zip")

	jobsCmd.AddCommand(listCmd, showCmd, downloadCmd)
	return jobsCmd
}

// downloadBundle writes to a temp file next to target and renames on success
// so an interrupted download never leaves a truncated zip behind.
func downloadBundle(cmd *cobra.Command, client *apiclient.Client, id, target string) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".clipforge-bundle-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := client.DownloadBundle(cmd.Context(), id, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", target, formatBytes(n))
	return nil
}

func printJob(out io.Writer, job api.JobItem) {
	fmt.Fprintf(out, "Job:       %s\n", job.ID)
	fmt.Fprintf(out, "Status:    %s\n", statusLabel(job.Status))
	fmt.Fprintf(out, "Progress:  %s\n", formatProgress(job.Progress))
	fmt.Fprintf(out, "Files:     %d\n", job.FileCount)
	fmt.Fprintf(out, "Started:   %s\n", valueOrDash(job.StartedAt))
	fmt.Fprintf(out, "Completed: %s\n", valueOrDash(job.CompletedAt))
	if job.Error != "" {
		fmt.Fprintf(out, "Error:     %s\n", job.Error)
	}
	if job.BundleURL != "" {
		fmt.Fprintf(out, "Bundle:    %s\n", job.BundleURL)
	}
	if len(job.Results) == 0 {
		return
	}
	rows := make([][]string, 0, len(job.Results))
	for _, r := range job.Results {
		rows = append(rows, []string{r.FileID, filepath.Base(r.OutputPath), statusLabel(r.Status)})
	}
	fmt.Fprint(out, renderTable([]string{"File", "Output", "Status"}, rows, nil))
}
