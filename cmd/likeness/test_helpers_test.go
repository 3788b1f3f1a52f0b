package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"likeness/internal/config"
	"likeness/internal/daemon"
	"likeness/internal/enroll"
	"likeness/internal/extract"
	"likeness/internal/logging"
	"likeness/internal/media"
	"likeness/internal/notifications"
	"likeness/internal/store"
	"likeness/internal/testsupport"
	"likeness/internal/vad"
	"likeness/internal/verify"
)

type stubDecoder struct {
	clip *media.Clip
}

func (d *stubDecoder) Decode(context.Context, string) (*media.Clip, error) {
	return d.clip, nil
}

type stubDetector struct{}

func (stubDetector) DetectSpeech(samples []float32) []vad.Interval {
	if len(samples) == 0 {
		return nil
	}
	return []vad.Interval{{Start: 0, End: 1}}
}

type stubExtractor struct{}

func (stubExtractor) ExtractSegments(context.Context, []float32, int, []vad.Interval) ([]extract.VoiceSample, error) {
	return []extract.VoiceSample{{Vector: []float32{0.6, 0.8}, Start: 0, End: 1}}, nil
}

func (stubExtractor) ExtractFrames(_ context.Context, frames []media.Frame, _ bool) ([]extract.FaceSample, error) {
	samples := make([]extract.FaceSample, 0, len(frames))
	for _, frame := range frames {
		samples = append(samples, extract.FaceSample{Vector: []float32{1, 0}, Timestamp: frame.Timestamp, Emotion: "neutral", Score: 0.9})
	}
	return samples, nil
}

func (stubExtractor) Analyze(context.Context, []media.Frame, []float32, int) (extract.SyncAnalysis, error) {
	return extract.SyncAnalysis{Score: 0.6, FrameScores: []float64{0.6}}, nil
}

func testClip() *media.Clip {
	return &media.Clip{
		PCM:        testsupport.Sine(440, 0.5, 1.0, 16000),
		SampleRate: 16000,
		Frames: []media.Frame{
			{JPEG: []byte{0xff, 0xd8, 0xff, 0xd9}, Timestamp: 0.0},
			{JPEG: []byte{0xff, 0xd8, 0xff, 0xd9}, Timestamp: 0.5},
		},
		Duration: 1.0,
	}
}

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	daemon     *daemon.Daemon
	configPath string
	baseDir    string
	cancel     context.CancelFunc
}

// setupCLITestEnv starts a real daemon on an ephemeral port and writes a
// config file pointing the CLI at its resolved bind address.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	logger := logging.NewNop()
	decoder := &stubDecoder{clip: testClip()}
	coordinator := enroll.NewCoordinator(cfg, st, decoder, stubDetector{}, stubExtractor{}, logger)
	engine := verify.NewEngine(cfg, st, decoder, stubDetector{}, stubExtractor{}, logger)

	d, err := daemon.New(cfg, st, coordinator, engine, notifications.NewService(cfg), logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon.Start: %v", err)
	}
	// The daemon bound port 0; the config file has to carry the address it
	// actually got.
	cfg.Paths.APIBind = d.APIAddr()

	configPath := filepath.Join(homeDir, ".config", "likeness", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	env := &cliTestEnv{
		cfg:        cfg,
		store:      st,
		daemon:     d,
		configPath: configPath,
		baseDir:    base,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		d.Stop()
	})

	return env
}

// setupOfflineEnv writes a config whose API bind points at a port nothing
// listens on, for exercising daemon-down paths.
func setupOfflineEnv(t *testing.T) (*config.Config, string) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()
	cfg.Paths.APIBind = addr

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return cfg, configPath
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\ndatabase_path = %q\nlog_dir = %q\nstaging_dir = %q\napi_bind = %q\napi_token = %q\n",
		cfg.Paths.DataDir,
		cfg.Paths.DatabasePath,
		cfg.Paths.LogDir,
		cfg.Paths.StagingDir,
		cfg.Paths.APIBind,
		cfg.Paths.APIToken,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeClipFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("clip-bytes"), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	return path
}

func decodeOutput(t *testing.T, out string, target any) {
	t.Helper()
	if err := json.Unmarshal([]byte(out), target); err != nil {
		t.Fatalf("decode CLI output %q: %v", out, err)
	}
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
