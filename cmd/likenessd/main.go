// Command likenessd runs the likeness daemon: it owns the profile store,
// processes enrollment chunks, scores verification uploads, and serves the
// HTTP API the CLI talks to.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"likeness/internal/config"
	"likeness/internal/daemon"
)

func main() {
	configFlag := flag.String("config", "", "Configuration file path")
	flag.Parse()

	cfg, _, _, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "likenessd: load config: %v\n", err)
		os.Exit(1)
	}

	if err := daemon.Run(context.Background(), cfg); err != nil {
		fmt.Fprintf(os.Stderr, "likenessd: %v\n", err)
		os.Exit(1)
	}
}
