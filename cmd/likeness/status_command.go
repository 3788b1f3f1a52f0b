package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"likeness/internal/api"
	"likeness/internal/daemonctl"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show system status and dependency readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status, err := daemonctl.BuildStatusSnapshot(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, status)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("System Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if status.Running {
				fmt.Fprintln(stdout, renderStatusLine("Likeness", statusOK, fmt.Sprintf("Running (pid %d, up %s)", status.PID, formatUptime(status.UptimeSeconds)), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Sessions", statusInfo, fmt.Sprintf("%d active enrollment sessions", status.ActiveSessions), colorize))
			} else if status.PID > 0 {
				fmt.Fprintln(stdout, renderStatusLine("Likeness", statusWarn, fmt.Sprintf("Process %d alive but API not responding", status.PID), colorize))
			} else {
				fmt.Fprintln(stdout, renderStatusLine("Likeness", statusWarn, "Not running (run `likeness daemon start`)", colorize))
			}
			fmt.Fprintln(stdout, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
			if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
				fmt.Fprintln(stdout, renderStatusLine("Notifications", statusOK, "Configured", colorize))
			} else {
				fmt.Fprintln(stdout, renderStatusLine("Notifications", statusInfo, "Not configured", colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range dependencyLines(status.Dependencies, colorize) {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}
}

func dependencyLines(deps []api.DependencyStatus, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	available := 0
	missing := make([]string, 0)
	for _, dep := range deps {
		if dep.Available {
			available++
		}
	}
	summaryKind := statusOK
	if available < len(deps) {
		summaryKind = statusError
	}
	lines = append(lines, renderStatusLine("Summary", summaryKind, fmt.Sprintf("%d/%d available", available, len(deps)), colorize))

	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, fmt.Sprintf("%s (see README.md for install steps)", strings.Join(missing, ", ")), colorize))
	}
	return lines
}
