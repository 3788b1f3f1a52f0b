package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"likeness/internal/api"
)

func newProfileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "profile <user-id>",
		Short: "Show profile strength and feature coverage for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := strings.TrimSpace(args[0])

			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.ProfileStrength(cmd.Context(), userID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}

				stdout := cmd.OutOrStdout()
				if resp.SessionsCount == 0 {
					fmt.Fprintln(stdout, "No completed enrollment sessions for this user")
					return nil
				}

				fmt.Fprintf(stdout, "Profile strength: %s (%d completed sessions)\n", percent(resp.StrengthScore), resp.SessionsCount)
				fmt.Fprintf(stdout, "  Voice samples: %d\n", resp.TotalVoiceSamples)
				fmt.Fprintf(stdout, "  Face samples:  %d\n", resp.TotalFaceSamples)
				if resp.LastUpdated != "" {
					fmt.Fprintf(stdout, "  Last updated:  %s\n", resp.LastUpdated)
				}

				if len(resp.FeatureCoverage) > 0 {
					fmt.Fprintln(stdout)
					rows := coverageRows(resp.FeatureCoverage)
					fmt.Fprintln(stdout, renderTable([]tableColumn{{Header: "Feature"}, {Header: "Coverage", Numeric: true}}, rows))
				}
				return nil
			})
		},
	}
}

func coverageRows(coverage map[string]float64) [][]string {
	keys := make([]string, 0, len(coverage))
	for key := range coverage {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{featureLabel(key), percent(coverage[key])})
	}
	return rows
}

// featureLabel turns a snake_case coverage key into a display label.
func featureLabel(key string) string {
	parts := strings.Split(key, "_")
	for i, part := range parts {
		parts[i] = titleCase(part)
	}
	return strings.Join(parts, " ")
}
