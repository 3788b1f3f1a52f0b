package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"likeness/internal/api"
)

func newDBCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "db",
		Short: "Check profile database health (tables, integrity, row counts)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.DatabaseHealth(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}

				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Database path: %s\n", resp.DBPath)
				fmt.Fprintf(stdout, "Database exists: %s\n", yesNo(resp.DatabaseExists))
				fmt.Fprintf(stdout, "Readable: %s\n", yesNo(resp.DatabaseReadable))
				if len(resp.TablesPresent) > 0 {
					tables := append([]string(nil), resp.TablesPresent...)
					sort.Strings(tables)
					fmt.Fprintf(stdout, "Tables: %s\n", strings.Join(tables, ", "))
				}
				if len(resp.MissingTables) > 0 {
					missing := append([]string(nil), resp.MissingTables...)
					sort.Strings(missing)
					fmt.Fprintf(stdout, "Missing tables: %s\n", strings.Join(missing, ", "))
				} else {
					fmt.Fprintln(stdout, "Missing tables: none")
				}
				fmt.Fprintf(stdout, "Integrity check: %s\n", yesNo(resp.IntegrityCheck))
				fmt.Fprintf(stdout, "Users: %d\n", resp.UserCount)
				fmt.Fprintf(stdout, "Embeddings: %d\n", resp.EmbeddingCount)
				if resp.Error != "" {
					fmt.Fprintf(stdout, "Error: %s\n", resp.Error)
				}
				return nil
			})
		},
	}
}
