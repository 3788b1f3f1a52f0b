package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"likeness/internal/api"
)

func newEnrollCommand(ctx *commandContext) *cobra.Command {
	enrollCmd := &cobra.Command{
		Use:   "enroll",
		Short: "Build a biometric profile from recorded clips",
	}

	enrollCmd.AddCommand(newEnrollStartCommand(ctx))
	enrollCmd.AddCommand(newEnrollChunkCommand(ctx))
	enrollCmd.AddCommand(newEnrollCompleteCommand(ctx))

	return enrollCmd
}

func newEnrollStartCommand(ctx *commandContext) *cobra.Command {
	var userID string
	var email string
	var name string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Open an enrollment session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userID) == "" && strings.TrimSpace(email) == "" {
				return fmt.Errorf("either --user or --email is required")
			}
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.StartEnrollment(cmd.Context(), api.EnrollStartRequest{
					UserID: strings.TrimSpace(userID),
					Email:  strings.TrimSpace(email),
					Name:   strings.TrimSpace(name),
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Enrollment session started\n")
				fmt.Fprintf(stdout, "  Session: %s\n", resp.SessionID)
				fmt.Fprintf(stdout, "  User:    %s\n", resp.UserID)
				fmt.Fprintln(stdout, "Record clips and submit them with `likeness enroll chunk`.")
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Existing user ID to continue enrolling")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Email for a new or existing user")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name for a new user")
	return cmd
}

func newEnrollChunkCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "chunk <session-id> <file>",
		Short: "Submit a recorded clip to an enrollment session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := strings.TrimSpace(args[0])
			content, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read clip %q: %w", args[1], err)
			}

			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.SendChunk(cmd.Context(), sessionID, content)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				if !resp.Success {
					fmt.Fprintf(stdout, "Chunk skipped: %s\n", resp.Error)
					return nil
				}
				fmt.Fprintf(stdout, "Chunk processed\n")
				fmt.Fprintf(stdout, "  Voice embeddings: %d\n", resp.VoiceEmbeddings)
				fmt.Fprintf(stdout, "  Face embeddings:  %d\n", resp.FaceEmbeddings)
				fmt.Fprintf(stdout, "  Speech duration:  %.1fs\n", resp.SpeechDuration)
				if resp.SyncScore != nil {
					fmt.Fprintf(stdout, "  Lip sync score:   %.2f\n", *resp.SyncScore)
				}
				return nil
			})
		},
	}
}

func newEnrollCompleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <session-id>",
		Short: "Finalize an enrollment session and persist the profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := strings.TrimSpace(args[0])

			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.CompleteEnrollment(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				stdout := cmd.OutOrStdout()
				fmt.Fprintf(stdout, "Enrollment complete for user %s\n", resp.UserID)
				fmt.Fprintf(stdout, "  Profile strength: %s\n", percent(resp.ProfileStrength))
				fmt.Fprintf(stdout, "  Session duration: %s\n", formatUptime(resp.DurationSeconds))
				fmt.Fprintf(stdout, "  Speech captured:  %.1fs\n", resp.SpeechDuration)
				fmt.Fprintf(stdout, "  Voice samples:    %d\n", resp.Embeddings.Voice)
				fmt.Fprintf(stdout, "  Face samples:     %d\n", resp.Embeddings.Face)
				fmt.Fprintf(stdout, "  Sync samples:     %d\n", resp.Embeddings.Sync)
				if len(resp.EmotionCoverage) > 0 {
					fmt.Fprintf(stdout, "  Expressions:      %s\n", emotionSummary(resp.EmotionCoverage))
				}
				return nil
			})
		},
	}
}
