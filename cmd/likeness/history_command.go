package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"likeness/internal/api"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <user-id>",
		Short: "List past verification attempts for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := strings.TrimSpace(args[0])

			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.History(cmd.Context(), userID, limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}

				stdout := cmd.OutOrStdout()
				if len(resp.Verifications) == 0 {
					fmt.Fprintln(stdout, "No verifications recorded")
					return nil
				}

				rows := make([][]string, 0, len(resp.Verifications))
				for _, item := range resp.Verifications {
					result := "rejected"
					if item.Authentic {
						result = "authentic"
					}
					rows = append(rows, []string{item.VerifiedAt, result, percent(item.Confidence), item.ID})
				}
				fmt.Fprintln(stdout, renderTable(
					[]tableColumn{
						{Header: "Verified At"},
						{Header: "Result"},
						{Header: "Confidence", Numeric: true},
						{Header: "ID"},
					},
					rows,
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Maximum number of entries (0 uses the configured default)")
	return cmd
}
