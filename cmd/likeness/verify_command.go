package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"likeness/internal/api"
)

// breakdownOrder fixes the display order of verification score components.
var breakdownOrder = []struct {
	key   string
	label string
}{
	{"voice_match", "Voice match"},
	{"face_match", "Face match"},
	{"lip_sync", "Lip sync"},
	{"speech_patterns", "Speech patterns"},
}

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a recorded clip against an enrolled profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user := strings.TrimSpace(userID)
			if user == "" {
				return fmt.Errorf("--user is required")
			}
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read clip %q: %w", args[0], err)
			}

			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Verify(cmd.Context(), user, content, filepath.Base(args[0]))
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				renderVerifyResult(cmd, resp)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User ID to verify against")
	return cmd
}

func renderVerifyResult(cmd *cobra.Command, resp api.VerifyResponse) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	verdict := "REJECTED"
	kind := statusError
	if resp.Authentic {
		verdict = "AUTHENTIC"
		kind = statusOK
	}
	fmt.Fprintln(stdout, renderStatusLine("Verdict", kind, fmt.Sprintf("%s (%s confidence)", verdict, percent(resp.Confidence)), colorize))
	fmt.Fprintln(stdout)

	rows := make([][]string, 0, len(breakdownOrder))
	for _, entry := range breakdownOrder {
		value, ok := resp.Breakdown[entry.key]
		if !ok {
			continue
		}
		rows = append(rows, []string{entry.label, percent(value)})
	}
	if len(rows) > 0 {
		fmt.Fprintln(stdout, renderTable([]tableColumn{{Header: "Signal"}, {Header: "Match", Numeric: true}}, rows))
	}

	if len(resp.Anomalies) > 0 {
		fmt.Fprintln(stdout, "Anomalies:")
		for _, anomaly := range resp.Anomalies {
			fmt.Fprintf(stdout, "  - %s\n", anomaly)
		}
		fmt.Fprintln(stdout)
	}

	fmt.Fprintf(stdout, "Compared %d voice and %d face samples against a %s profile (clip length %.1fs)\n",
		resp.AnalysisDetails.VoiceSamplesCompared,
		resp.AnalysisDetails.FaceSamplesCompared,
		percent(resp.AnalysisDetails.ProfileStrength),
		resp.AnalysisDetails.TestDuration,
	)
	fmt.Fprintf(stdout, "Verification ID: %s\n", resp.VerificationID)
}
