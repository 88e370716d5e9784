package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
	"clipforge/internal/apiclient"
)

func newPatternCommand(ctx *commandContext) *cobra.Command {
	patternCmd := &cobra.Command{
		Use:   "pattern",
		Short: "Manage the intro pattern",
	}

	show := func(cmd *cobra.Command, state api.PatternState) error {
		if ctx.jsonOutput() {
			return writeJSON(cmd, state)
		}
		label := "disabled"
		if state.Enabled {
			label = "enabled"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Intro pattern %s\n", label)
		return nil
	}

	set := func(enabled bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				state, err := client.SetPattern(cmd.Context(), enabled)
				if err != nil {
					return err
				}
				return show(cmd, state)
			})
		}
	}

	var wait bool
	apply := &cobra.Command{
		Use:   "apply <file-id>",
		Short: "Process one uploaded file with the intro pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.ProcessWithPattern(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return reportAccepted(cmd, ctx, client, resp, wait)
			})
		},
	}
	apply.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the job to finish")

	patternCmd.AddCommand(
		apply,
		&cobra.Command{Use: "on", Short: "Enable the intro pattern for every job", RunE: set(true)},
		&cobra.Command{Use: "off", Short: "Disable the global intro pattern", RunE: set(false)},
		&cobra.Command{
			Use:   "status",
			Short: "Show whether the intro pattern is enabled",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return ctx.withClient(func(client *apiclient.Client) error {
					state, err := client.Pattern(cmd.Context())
					if err != nil {
						return err
					}
					return show(cmd, state)
				})
			},
		},
	)
	return patternCmd
}
