package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"clipforge/internal/api"
	"clipforge/internal/apiclient"
)

func newPresetsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the built-in platform presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				presets, err := client.Presets(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.PresetListResponse{Presets: presets})
				}
				rows := make([][]string, 0, len(presets))
				for _, p := range presets {
					s := p.Settings
					rows = append(rows, []string{
						p.Name,
						strconv.Itoa(s.Noise.Intensity),
						strconv.Itoa(s.Color.Brightness),
						strconv.Itoa(s.Color.Contrast),
						strconv.Itoa(s.Color.Saturation),
						strconv.FormatFloat(s.Color.Blur, 'f', -1, 64),
						strconv.Itoa(s.Effects.Speed) + "%",
						yesNo(s.Color.Mirrored),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"Preset", "Noise", "Brightness", "Contrast", "Saturation", "Blur", "Speed", "Mirrored"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}
