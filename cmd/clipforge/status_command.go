package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
	"clipforge/internal/apiclient"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and directory status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				printSection(out, "Daemon", colorize, daemonLines(status, colorize))
				printSection(out, "Dependencies", colorize, dependencyLines(status.Dependencies, colorize))
				printSection(out, "Directories", colorize, directoryLines(status.Directories, colorize))
				return nil
			})
		},
	}
}

func daemonLines(status api.DaemonStatus, colorize bool) []string {
	running := statusError
	if status.Running {
		running = statusOK
	}
	cleanupKind := statusWarn
	if status.CleanupRunning {
		cleanupKind = statusOK
	}
	active := "none"
	if len(status.ActiveJobs) > 0 {
		ids := make([]string, 0, len(status.ActiveJobs))
		for _, id := range status.ActiveJobs {
			ids = append(ids, shortID(id))
		}
		active = strings.Join(ids, ", ")
	}
	return []string{
		renderStatusLine("Daemon", running, "pid "+strconv.Itoa(status.PID), colorize),
		renderStatusLine("Transcoder", statusInfo, status.Transcoder, colorize),
		renderStatusLine("Active jobs", statusInfo, active, colorize),
		renderStatusLine("Event clients", statusInfo, strconv.Itoa(status.Subscribers), colorize),
		renderStatusLine("Cleanup loop", cleanupKind, yesNo(status.CleanupRunning), colorize),
		renderStatusLine("Intro pattern", statusInfo, yesNo(status.PatternEnabled), colorize),
		renderStatusLine("Database", statusInfo, status.DatabasePath, colorize),
	}
}

func dependencyLines(deps []api.DependencyStatus, colorize bool) []string {
	if len(deps) == 0 {
		return []string{renderStatusLine("Dependencies", statusInfo, "none required", colorize)}
	}
	lines := make([]string, 0, len(deps))
	for _, dep := range deps {
		kind := statusOK
		detail := "available"
		if !dep.Available {
			kind = statusError
			if dep.Optional {
				kind = statusWarn
			}
			detail = valueOrDash(dep.Detail)
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
	}
	return lines
}

func directoryLines(dirs []api.DirectoryStatus, colorize bool) []string {
	lines := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		kind := statusOK
		if !dir.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(dir.Name, kind, dir.Detail, colorize))
	}
	if len(lines) == 0 {
		lines = append(lines, fmt.Sprintf("%sno directory checks reported", statusIndent))
	}
	return lines
}
