package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	DatabasePath string `toml:"database_path"`
	LogDir       string `toml:"log_dir"`
	StagingDir   string `toml:"staging_dir"`
	APIBind      string `toml:"api_bind"`
	APIToken     string `toml:"api_token"`
}

// Media contains configuration for clip decoding.
type Media struct {
	FFmpegBinary  string  `toml:"ffmpeg_binary"`
	FFprobeBinary string  `toml:"ffprobe_binary"`
	SampleRate    int     `toml:"sample_rate"`
	FrameRate     float64 `toml:"frame_rate"`
}

// VAD contains configuration for voice activity detection.
type VAD struct {
	FrameMs         int     `toml:"frame_ms"`
	Aggressiveness  int     `toml:"aggressiveness"`
	EnergyThreshold float64 `toml:"energy_threshold"`
	MinSpeechMs     int     `toml:"min_speech_ms"`
}

// Models contains configuration for the embedding model runner sidecar.
type Models struct {
	RunnerCommand  []string `toml:"runner_command"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Enrollment groups the targets and weights used to score profile strength.
// Weights for the within-session formula sum to 1.0.
type Enrollment struct {
	VoiceTarget            int     `toml:"voice_target"`
	FaceTarget             int     `toml:"face_target"`
	EmotionTarget          int     `toml:"emotion_target"`
	DurationTargetSeconds  float64 `toml:"duration_target_seconds"`
	VoiceWeight            float64 `toml:"voice_weight"`
	FaceWeight             float64 `toml:"face_weight"`
	EmotionWeight          float64 `toml:"emotion_weight"`
	DurationWeight         float64 `toml:"duration_weight"`
	SyncConsistencyWeight  float64 `toml:"sync_consistency_weight"`
	TotalVoiceTarget       int     `toml:"total_voice_target"`
	TotalFaceTarget        int     `toml:"total_face_target"`
	CompletedSessionTarget int     `toml:"completed_session_target"`
}

// Verification groups the fusion weights and anomaly thresholds used when
// scoring submitted content against a profile. Fusion weights sum to 1.0.
type Verification struct {
	VoiceWeight            float64 `toml:"voice_weight"`
	FaceWeight             float64 `toml:"face_weight"`
	SyncWeight             float64 `toml:"sync_weight"`
	SpeechWeight           float64 `toml:"speech_weight"`
	ConfidenceThreshold    float64 `toml:"confidence_threshold"`
	AnomalyLimit           int     `toml:"anomaly_limit"`
	DivergenceThreshold    float64 `toml:"divergence_threshold"`
	SyncDeviationStdDevs   float64 `toml:"sync_deviation_std_devs"`
	LowSimilarityThreshold float64 `toml:"low_similarity_threshold"`
	PerfectSyncThreshold   float64 `toml:"perfect_sync_threshold"`
	SyncTolerance          float64 `toml:"sync_tolerance"`
	SpeechPresentScore     float64 `toml:"speech_present_score"`
	SpeechAbsentScore      float64 `toml:"speech_absent_score"`
	HistoryLimit           int     `toml:"history_limit"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Enrollment     bool   `toml:"enrollment"`
	Verification   bool   `toml:"verification"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for likeness.
//
// Configuration sections by subsystem:
//   - Paths: directories, database location, and API bind address
//   - Media: ffmpeg decode settings (sample rate, frame sampling)
//   - VAD: voice activity detection tuning
//   - Models: embedding model runner command and timeout
//   - Enrollment: profile strength targets and weights
//   - Verification: confidence fusion weights and anomaly thresholds
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Media         Media         `toml:"media"`
	VAD           VAD           `toml:"vad"`
	Models        Models        `toml:"models"`
	Enrollment    Enrollment    `toml:"enrollment"`
	Verification  Verification  `toml:"verification"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/likeness/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/likeness/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("likeness.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.StagingDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if dbDir := filepath.Dir(c.Paths.DatabasePath); dbDir != "." && dbDir != "" {
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			return fmt.Errorf("create database directory %q: %w", dbDir, err)
		}
	}
	return nil
}

// LockFilePath returns the daemon single-instance lock path under the data directory.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.DataDir, "likenessd.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
