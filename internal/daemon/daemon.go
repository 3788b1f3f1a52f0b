package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"likeness/internal/config"
	"likeness/internal/deps"
	"likeness/internal/enroll"
	"likeness/internal/logging"
	"likeness/internal/notifications"
	"likeness/internal/store"
	"likeness/internal/verify"
)

// Daemon owns the process lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *store.Store
	coordinator *enroll.Coordinator
	engine      *verify.Engine
	notifier    notifications.Service

	lockPath string
	lock     *flock.Flock

	api *apiServer

	startedAt time.Time
	running   atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	UptimeSeconds  float64
	DatabasePath   string
	LockFilePath   string
	ActiveSessions int
	Dependencies   []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, coordinator *enroll.Coordinator, engine *verify.Engine, notifier notifications.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || coordinator == nil || engine == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, coordinator, engine, and logger")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := cfg.LockFilePath()
	return &Daemon{
		cfg:         cfg,
		logger:      logging.NewComponentLogger(logger, "daemon"),
		store:       st,
		coordinator: coordinator,
		engine:      engine,
		notifier:    notifier,
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and brings up the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another likeness daemon instance is already running")
	}

	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		_ = d.lock.Unlock()
		return err
	}
	if srv != nil {
		if err := srv.start(ctx); err != nil {
			_ = d.lock.Unlock()
			return err
		}
	}
	d.api = srv

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("likeness daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop shuts down the HTTP API and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.api != nil {
		d.api.stop()
		d.api = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("likeness daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
	)
}

// APIAddr returns the address the HTTP API is listening on, or an empty
// string when the API is not running. Useful when the bind port is 0.
func (d *Daemon) APIAddr() string {
	if d.api == nil || d.api.listener == nil {
		return ""
	}
	return d.api.listener.Addr().String()
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status, including dependency checks.
func (d *Daemon) Status() Status {
	var uptime float64
	if d.running.Load() && !d.startedAt.IsZero() {
		uptime = time.Since(d.startedAt).Seconds()
	}
	return Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		UptimeSeconds:  uptime,
		DatabasePath:   d.store.Path(),
		LockFilePath:   d.lockPath,
		ActiveSessions: d.coordinator.ActiveSessions(),
		Dependencies:   deps.Check(d.cfg),
	}
}

// DatabaseHealth returns detailed profile database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (store.DatabaseHealth, error) {
	if d.store == nil {
		return store.DatabaseHealth{}, errors.New("profile store unavailable")
	}
	return d.store.CheckHealth(ctx)
}
