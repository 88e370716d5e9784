package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
	"clipforge/internal/apiclient"
	"clipforge/internal/cleanup"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Inspect and drive the retention cleanup engine",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show storage usage, audit counts, and retention settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				stats, err := client.CleanupStats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, stats)
				}
				printCleanupStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one cleanup sweep now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.RunCleanup(cmd.Context())
				if err != nil {
					return err
				}
				return printCleanupResponse(cmd, ctx, resp)
			})
		},
	}

	forceCmd := &cobra.Command{
		Use:   "force <job-id>",
		Short: "Delete a job's outputs and bundle immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.ForceCleanup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printCleanupResponse(cmd, ctx, resp)
			})
		},
	}

	cleanupCmd.AddCommand(statsCmd, runCmd, forceCmd)
	return cleanupCmd
}

func printCleanupResponse(cmd *cobra.Command, ctx *commandContext, resp api.CleanupResponse) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, resp)
	}
	out := cmd.OutOrStdout()
	r := resp.Report
	fmt.Fprintln(out, resp.Message)
	fmt.Fprintf(out, "Deleted %d, missing %d, failed %d, pruned %d jobs and %d files in %s\n",
		r.Deleted, r.Missing, r.Failed, r.PrunedJobs, r.PrunedFiles, r.Duration)
	for _, e := range resp.Errors {
		fmt.Fprintf(out, "  error: %s\n", e)
	}
	return nil
}

func printCleanupStats(out io.Writer, stats cleanup.Stats) {
	colorize := shouldColorize(out)
	loop := statusWarn
	if stats.Running {
		loop = statusOK
	}
	s := stats.Settings
	printSection(out, "Retention", colorize, []string{
		renderStatusLine("Cleanup loop", loop, yesNo(stats.Running), colorize),
		renderStatusLine("Enabled", statusInfo, yesNo(s.Enabled), colorize),
		renderStatusLine("Interval", statusInfo, strconv.Itoa(s.IntervalSeconds)+"s", colorize),
		renderStatusLine("Uploads after", statusInfo, strconv.Itoa(s.UploadDelaySeconds)+"s", colorize),
		renderStatusLine("Outputs after", statusInfo, strconv.Itoa(s.ProcessedDelaySeconds)+"s", colorize),
		renderStatusLine("Bundles after", statusInfo, strconv.Itoa(s.BundleDelaySeconds)+"s", colorize),
		renderStatusLine("Row retention", statusInfo, strconv.Itoa(s.RowRetentionHours)+"h", colorize),
	})

	st := stats.Storage
	fmt.Fprint(out, renderTable(
		[]string{"Root", "Path", "Files", "Size"},
		[][]string{
			{"Uploads", st.Uploads.Path, strconv.Itoa(st.Uploads.Files), formatBytes(st.Uploads.Bytes)},
			{"Outputs", st.Outputs.Path, strconv.Itoa(st.Outputs.Files), formatBytes(st.Outputs.Bytes)},
			{"Temp", st.Temp.Path, strconv.Itoa(st.Temp.Files), formatBytes(st.Temp.Bytes)},
		},
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
	))
	fmt.Fprintf(out, "Total %.2f MB, free %.2f MB\n", st.TotalMB, st.FreeMB)
	if st.Error != "" {
		fmt.Fprintf(out, "Storage totals are partial: %s\n", st.Error)
	}
	fmt.Fprintln(out)

	db := stats.Database
	fmt.Fprintf(out, "Files: %d  Jobs: %d\n", db.TotalFiles, db.TotalJobs)
	if len(db.CleanupOperations) == 0 {
		fmt.Fprintln(out, "No cleanup operations recorded")
		return
	}
	ops := make([]string, 0, len(db.CleanupOperations))
	for op := range db.CleanupOperations {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	rows := make([][]string, 0, len(ops))
	for _, op := range ops {
		c := db.CleanupOperations[op]
		rows = append(rows, []string{op, strconv.Itoa(c.Success), strconv.Itoa(c.Failed)})
	}
	fmt.Fprint(out, renderTable([]string{"Operation", "Succeeded", "Failed"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight}))
}
