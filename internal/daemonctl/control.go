package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"likeness/internal/api"
	"likeness/internal/config"
	"likeness/internal/daemon"
	"likeness/internal/deps"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
	StartStateRequested      StartState = "start_requested"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	Message  string
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	StopSignaled bool
	ForcedKill   bool
	PID          int
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// ErrDaemonNotRunning indicates no daemon process could be found.
var ErrDaemonNotRunning = errors.New("daemon not running")

// ResolveDaemonBinary locates the likenessd executable. A binary sitting
// next to the CLI executable wins; otherwise PATH is consulted.
func ResolveDaemonBinary() (string, error) {
	name := "likenessd"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}

	if self, err := os.Executable(); err == nil && self != "" {
		candidate := filepath.Join(filepath.Dir(self), name)
		if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
			return candidate, nil
		}
	}

	resolved, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("locate daemon binary: %w", err)
	}
	return resolved, nil
}

// Launch starts a detached likeness daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	var args []string
	if cfgPath := strings.TrimSpace(opts.ConfigPath); cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForHealthy polls the daemon health endpoint until it responds.
func WaitForHealthy(ctx context.Context, client *api.Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := client.Health(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon when no instance answers on the API
// bind address, then waits for it to become healthy.
func EnsureStarted(ctx context.Context, cfg *config.Config, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	client, err := api.NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
	if err != nil {
		return StartResult{}, err
	}
	if client != nil {
		if _, healthErr := client.Health(ctx); healthErr == nil {
			return StartResult{State: StartStateAlreadyRunning}, nil
		} else if !api.IsDaemonUnavailable(healthErr) {
			return StartResult{}, healthErr
		}
	}

	binary, err := ResolveDaemonBinary()
	if err != nil {
		return StartResult{}, err
	}
	if err := Launch(binary, opts); err != nil {
		return StartResult{}, err
	}
	if client == nil {
		return StartResult{State: StartStateRequested, Launched: true, Message: "daemon launched; no API bind configured to confirm startup"}, nil
	}
	if err := WaitForHealthy(ctx, client, waitTimeout); err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, Launched: true}, nil
}

// ProcessInfo reports whether a daemon process appears alive and its PID.
// The API is consulted first; a PID file probe covers daemons whose API
// is unreachable.
func ProcessInfo(ctx context.Context, cfg *config.Config) (bool, int, error) {
	client, err := api.NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
	if err != nil {
		return false, 0, err
	}
	if client != nil {
		if status, statusErr := client.Status(ctx); statusErr == nil {
			return true, status.PID, nil
		} else if !api.IsDaemonUnavailable(statusErr) {
			return false, 0, statusErr
		}
	}

	pid, err := daemon.ReadPIDFile(cfg)
	if err != nil {
		return false, 0, err
	}
	if pid > 0 && processAlive(pid) {
		return true, pid, nil
	}
	return false, 0, nil
}

// StopAndTerminate signals the daemon to stop and force-kills the process
// if it is still alive after gracePeriod.
func StopAndTerminate(ctx context.Context, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	running, pid, err := ProcessInfo(ctx, cfg)
	if err != nil {
		return StopResult{}, err
	}
	if !running {
		cleanupRuntimeFiles(cfg)
		return StopResult{}, ErrDaemonNotRunning
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to stop current process (pid %d)", pid)
	}

	result := StopResult{PID: pid}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return result, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			cleanupRuntimeFiles(cfg)
			return StopResult{}, ErrDaemonNotRunning
		}
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	result.StopSignaled = true

	if waitForExit(pid, gracePeriod) {
		return result, nil
	}

	pidPath := filepath.Join(cfg.Paths.DataDir, daemon.PIDFileName)
	killedPID, killErr := ForceKillProcess(pidPath, cfg.LockFilePath(), pid)
	if killErr != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", killErr)
	}
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(ctx context.Context, cfg *config.Config, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(ctx, cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(ctx, cfg, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

// ForceKillProcess sends SIGKILL to the daemon process and cleans pid/lock files.
func ForceKillProcess(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid := fallbackPID
	data, err := os.ReadFile(pidPath)
	if err == nil {
		if parsed, parseErr := parsePID(string(data)); parseErr == nil && parsed > 0 {
			pid = parsed
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

// BuildStatusSnapshot collects daemon status over the API and falls back to
// local dependency checks when the daemon is unreachable. PID is still
// populated from the PID file when a process is alive but not answering.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (*api.DaemonStatus, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}

	client, err := api.NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
	if err != nil {
		return nil, err
	}
	if client != nil {
		if status, statusErr := client.Status(ctx); statusErr == nil {
			return &status, nil
		} else if !api.IsDaemonUnavailable(statusErr) {
			return nil, statusErr
		}
	}

	status := &api.DaemonStatus{
		DatabasePath: cfg.Paths.DatabasePath,
		LockFilePath: cfg.LockFilePath(),
		Dependencies: api.FromDependencyStatuses(deps.Check(cfg)),
	}
	if pid, readErr := daemon.ReadPIDFile(cfg); readErr == nil && pid > 0 && processAlive(pid) {
		status.PID = pid
	}
	return status, nil
}

func parsePID(raw string) (int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, fmt.Errorf("empty pid")
	}
	pid := 0
	if _, err := fmt.Sscanf(value, "%d", &pid); err != nil {
		return 0, err
	}
	return pid, nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return true
		}
		time.Sleep(200 * time.Millisecond)
	}
	return !processAlive(pid)
}

func cleanupRuntimeFiles(cfg *config.Config) {
	if cfg == nil {
		return
	}
	_ = os.Remove(filepath.Join(cfg.Paths.DataDir, daemon.PIDFileName))
	_ = os.Remove(cfg.LockFilePath())
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
