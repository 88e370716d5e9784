package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
	"clipforge/internal/apiclient"
	"clipforge/internal/config"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <video>...",
		Short: "Upload videos to the daemon",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := make([]string, 0, len(args))
			for _, arg := range args {
				p, err := config.ExpandPath(arg)
				if err != nil {
					return fmt.Errorf("resolve %q: %w", arg, err)
				}
				paths = append(paths, p)
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.Upload(cmd.Context(), paths...)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, resp.Message)
				fmt.Fprint(out, renderFiles(resp.Files))
				return nil
			})
		},
	}
}

func renderFiles(files []api.FileItem) string {
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{
			f.ID,
			f.OriginalName,
			formatBytes(f.Size),
			statusLabel(f.Status),
			valueOrDash(shortID(f.JobID)),
			strconv.FormatBool(f.SourcePurged),
		})
	}
	return renderTable(
		[]string{"ID", "Name", "Size", "Status", "Job", "Purged"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	)
}

func newFilesCommand(ctx *commandContext) *cobra.Command {
	filesCmd := &cobra.Command{
		Use:   "files",
		Short: "Inspect uploaded files",
	}

	var statuses []string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List uploaded files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				files, err := client.ListFiles(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FileListResponse{Files: files})
				}
				out := cmd.OutOrStdout()
				if len(files) == 0 {
					fmt.Fprintln(out, "No files")
					return nil
				}
				fmt.Fprint(out, renderFiles(files))
				return nil
			})
		},
	}
	listCmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (uploaded, processing, completed, error)")
	filesCmd.AddCommand(listCmd)
	return filesCmd
}
