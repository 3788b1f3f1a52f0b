package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"likeness/internal/api"
	"likeness/internal/config"
	"likeness/internal/logging"
	"likeness/internal/logs"
)

// followWait is the long-poll window for each follow-mode fetch.
const followWait = 2 * time.Second

// logFetch reads a batch of log lines starting at offset. A negative offset
// tails the last limit lines.
type logFetch func(ctx context.Context, offset int64, limit int, wait time.Duration) (api.LogTailResponse, error)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon log output",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			fetch, initial, err := openLogStream(cmd.Context(), cfg, lines)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			for _, line := range initial.Lines {
				fmt.Fprintln(stdout, line)
			}
			if !follow {
				return nil
			}

			offset := initial.Offset
			for {
				resp, err := fetch(cmd.Context(), offset, 0, followWait)
				if err != nil {
					if cmd.Context().Err() != nil || errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				for _, line := range resp.Lines {
					fmt.Fprintln(stdout, line)
				}
				offset = resp.Offset
			}
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new log lines")
	return cmd
}

// openLogStream prefers the daemon API so logs work against a remote bind,
// falling back to reading the log file directly when the daemon is down.
func openLogStream(ctx context.Context, cfg *config.Config, lines int) (logFetch, api.LogTailResponse, error) {
	client, err := api.NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
	if err != nil {
		return nil, api.LogTailResponse{}, err
	}
	if client != nil {
		fetch := apiLogFetcher(client)
		initial, err := fetch(ctx, -1, lines, 0)
		if err == nil {
			return fetch, initial, nil
		}
		if !api.IsDaemonUnavailable(err) {
			return nil, api.LogTailResponse{}, err
		}
	}

	path := logging.FilePath(cfg)
	if path == "" {
		return nil, api.LogTailResponse{}, fmt.Errorf("no log directory configured; set paths.log_dir in the configuration")
	}
	fetch := fileLogFetcher(path)
	initial, err := fetch(ctx, -1, lines, 0)
	if err != nil {
		return nil, api.LogTailResponse{}, err
	}
	return fetch, initial, nil
}

func apiLogFetcher(client *api.Client) logFetch {
	return func(ctx context.Context, offset int64, limit int, wait time.Duration) (api.LogTailResponse, error) {
		return client.LogTail(ctx, offset, limit, wait)
	}
}

func fileLogFetcher(path string) logFetch {
	return func(ctx context.Context, offset int64, limit int, wait time.Duration) (api.LogTailResponse, error) {
		result, err := logs.Tail(ctx, path, logs.TailOptions{Offset: offset, Limit: limit, Wait: wait})
		if err != nil {
			return api.LogTailResponse{}, err
		}
		return api.LogTailResponse{Lines: result.Lines, Offset: result.Offset}, nil
	}
}
