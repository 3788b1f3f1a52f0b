package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"likeness/internal/config"
	"likeness/internal/deps"
	"likeness/internal/enroll"
	"likeness/internal/extract"
	"likeness/internal/logging"
	"likeness/internal/media"
	"likeness/internal/notifications"
	"likeness/internal/store"
	"likeness/internal/vad"
	"likeness/internal/verify"
)

// PIDFileName is the daemon process marker written under the data directory.
const PIDFileName = "likenessd.pid"

// Run boots the full daemon runtime and blocks until the context is
// cancelled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.DataDir, PIDFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open store", logging.Error(err))
		return err
	}
	defer st.Close()

	decoder := media.NewFFmpegDecoder(cfg)
	detector := vad.New(cfg)
	extractor := extract.NewRunner(cfg, logger)
	notifier := notifications.NewService(cfg)

	coordinator := enroll.NewCoordinator(cfg, st, decoder, detector, extractor, logger)
	engine := verify.NewEngine(cfg, st, decoder, detector, extractor, logger)

	d, err := New(cfg, st, coordinator, engine, notifier, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Stop()

	if err := d.Start(signalCtx); err != nil {
		if notifyErr := notifier.NotifyError(signalCtx, err, "daemon start"); notifyErr != nil {
			logger.Warn("start failure notification failed", logging.Error(notifyErr))
		}
		return err
	}

	<-signalCtx.Done()
	logger.Info("likeness daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure pid directory: %w", err)
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// ReadPIDFile returns the process ID recorded by a running daemon, or zero
// when no PID file exists.
func ReadPIDFile(cfg *config.Config) (int, error) {
	if cfg == nil {
		return 0, nil
	}
	raw, err := os.ReadFile(filepath.Join(cfg.Paths.DataDir, PIDFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file: %w", err)
	}
	return pid, nil
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	for _, status := range deps.Check(cfg) {
		logger.Info("dependency snapshot",
			logging.String(logging.FieldEventType, "dependency_snapshot"),
			logging.String("dependency", status.Name),
			logging.Bool("available", status.Available),
			logging.String("command", status.Command),
		)
	}
}
