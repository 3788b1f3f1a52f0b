package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// percent renders a [0,1] score the way the daemon reports it.
func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

// writeJSON renders v as indented JSON on the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func formatUptime(seconds float64) string {
	if seconds <= 0 {
		return "0s"
	}
	return time.Duration(seconds * float64(time.Second)).Round(time.Second).String()
}

// emotionSummary renders emotion coverage counts as a stable, readable list.
func emotionSummary(coverage map[string]int) string {
	keys := make([]string, 0, len(coverage))
	for key := range coverage {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s (%d)", titleCase(key), coverage[key]))
	}
	return strings.Join(parts, ", ")
}
