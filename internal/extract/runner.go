package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"likeness/internal/config"
	"likeness/internal/logging"
	"likeness/internal/media"
	"likeness/internal/services"
	"likeness/internal/vad"
)

const defaultRunnerTimeout = 120 * time.Second

// Runner execs the configured model sidecar to produce embeddings. One
// invocation handles one modality: the subcommand (voice, face, sync) is
// appended to the configured command, the request arrives as JSON on stdin
// with media staged on disk, and the result comes back as JSON on stdout.
// On failure the sidecar writes {"error": "..."} to stderr and exits
// nonzero.
type Runner struct {
	command    []string
	timeout    time.Duration
	stagingDir string
	logger     *slog.Logger
}

var _ Extractor = (*Runner)(nil)

// NewRunner creates a Runner from the models and paths configuration.
func NewRunner(cfg *config.Config, logger *slog.Logger) *Runner {
	timeout := time.Duration(cfg.Models.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultRunnerTimeout
	}
	return &Runner{
		command:    append([]string(nil), cfg.Models.RunnerCommand...),
		timeout:    timeout,
		stagingDir: cfg.Paths.StagingDir,
		logger:     logging.NewComponentLogger(logger, "extract"),
	}
}

type runnerSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type runnerFrame struct {
	Path      string  `json:"path"`
	Timestamp float64 `json:"timestamp"`
}

type voiceRequest struct {
	AudioPath  string          `json:"audio_path"`
	SampleRate int             `json:"sample_rate"`
	Segments   []runnerSegment `json:"segments"`
}

type voiceResponse struct {
	Samples []struct {
		Embedding []float32 `json:"embedding"`
		Start     float64   `json:"start"`
		End       float64   `json:"end"`
	} `json:"samples"`
}

type faceRequest struct {
	Frames         []runnerFrame `json:"frames"`
	AnalyzeEmotion bool          `json:"analyze_emotion"`
}

type faceResponse struct {
	Faces []struct {
		Embedding    []float32 `json:"embedding"`
		Timestamp    float64   `json:"timestamp"`
		Emotion      string    `json:"emotion"`
		EmotionScore float64   `json:"emotion_score"`
	} `json:"faces"`
}

type syncRequest struct {
	AudioPath  string        `json:"audio_path"`
	SampleRate int           `json:"sample_rate"`
	Frames     []runnerFrame `json:"frames"`
}

type syncResponse struct {
	Score       float64   `json:"score"`
	FrameScores []float64 `json:"frame_scores"`
}

type runnerFailure struct {
	Error string `json:"error"`
}

// ExtractSegments stages the audio as a WAV file and asks the sidecar for
// one speaker embedding per speech interval. No speech means no samples,
// not an error.
func (r *Runner) ExtractSegments(ctx context.Context, samples []float32, sampleRate int, intervals []vad.Interval) ([]VoiceSample, error) {
	if len(samples) == 0 || len(intervals) == 0 {
		return nil, nil
	}

	stage, err := r.stage("voice-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(stage)

	audioPath := filepath.Join(stage, "audio.wav")
	if err := media.WriteWAV(audioPath, samples, sampleRate); err != nil {
		return nil, fmt.Errorf("stage audio: %w", err)
	}

	request := voiceRequest{AudioPath: audioPath, SampleRate: sampleRate}
	for _, interval := range intervals {
		request.Segments = append(request.Segments, runnerSegment{Start: interval.Start, End: interval.End})
	}

	var response voiceResponse
	if err := r.invoke(ctx, "voice", request, &response); err != nil {
		return nil, err
	}

	out := make([]VoiceSample, 0, len(response.Samples))
	for _, sample := range response.Samples {
		if len(sample.Embedding) == 0 {
			continue
		}
		out = append(out, VoiceSample{Vector: sample.Embedding, Start: sample.Start, End: sample.End})
	}
	return out, nil
}

// ExtractFrames stages each frame as a JPEG and asks the sidecar for one
// face embedding per frame in which it finds a face.
func (r *Runner) ExtractFrames(ctx context.Context, frames []media.Frame, withEmotion bool) ([]FaceSample, error) {
	if len(frames) == 0 {
		return nil, nil
	}

	stage, err := r.stage("face-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(stage)

	staged, err := writeFrames(stage, frames)
	if err != nil {
		return nil, err
	}

	var response faceResponse
	if err := r.invoke(ctx, "face", faceRequest{Frames: staged, AnalyzeEmotion: withEmotion}, &response); err != nil {
		return nil, err
	}

	out := make([]FaceSample, 0, len(response.Faces))
	for _, face := range response.Faces {
		if len(face.Embedding) == 0 {
			continue
		}
		out = append(out, FaceSample{
			Vector:    face.Embedding,
			Timestamp: face.Timestamp,
			Emotion:   NormalizeEmotion(face.Emotion),
			Score:     face.EmotionScore,
		})
	}
	return out, nil
}

// Analyze stages both streams and asks the sidecar to score audio-visual
// synchronization across the clip.
func (r *Runner) Analyze(ctx context.Context, frames []media.Frame, samples []float32, sampleRate int) (SyncAnalysis, error) {
	if len(frames) == 0 || len(samples) == 0 {
		return SyncAnalysis{}, services.Wrap(services.ErrValidation, "extract", "sync", "both audio and frames are required", nil)
	}

	stage, err := r.stage("sync-")
	if err != nil {
		return SyncAnalysis{}, err
	}
	defer os.RemoveAll(stage)

	audioPath := filepath.Join(stage, "audio.wav")
	if err := media.WriteWAV(audioPath, samples, sampleRate); err != nil {
		return SyncAnalysis{}, fmt.Errorf("stage audio: %w", err)
	}
	staged, err := writeFrames(stage, frames)
	if err != nil {
		return SyncAnalysis{}, err
	}

	var response syncResponse
	if err := r.invoke(ctx, "sync", syncRequest{AudioPath: audioPath, SampleRate: sampleRate, Frames: staged}, &response); err != nil {
		return SyncAnalysis{}, err
	}
	return SyncAnalysis{Score: response.Score, FrameScores: response.FrameScores}, nil
}

// stage creates a per-call scratch directory under the staging root.
func (r *Runner) stage(pattern string) (string, error) {
	if err := os.MkdirAll(r.stagingDir, 0o755); err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	dir, err := os.MkdirTemp(r.stagingDir, pattern)
	if err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	return dir, nil
}

func writeFrames(dir string, frames []media.Frame) ([]runnerFrame, error) {
	staged := make([]runnerFrame, 0, len(frames))
	for i, frame := range frames {
		path := filepath.Join(dir, fmt.Sprintf("frame-%04d.jpg", i))
		if err := os.WriteFile(path, frame.JPEG, 0o644); err != nil {
			return nil, fmt.Errorf("stage frame %d: %w", i, err)
		}
		staged = append(staged, runnerFrame{Path: path, Timestamp: frame.Timestamp})
	}
	return staged, nil
}

// invoke runs one sidecar subcommand, feeding the request on stdin and
// decoding the response from stdout.
func (r *Runner) invoke(ctx context.Context, op string, request, response any) error {
	if len(r.command) == 0 {
		return services.Wrap(services.ErrConfiguration, "extract", op, "models.runner_command is not configured", nil)
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "extract", op, "encode request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	argv := append(append([]string(nil), r.command...), op)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	if runErr != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "extract", op, fmt.Sprintf("model runner exceeded %s", r.timeout), runErr)
		}
		var failure runnerFailure
		if json.Unmarshal(stderr.Bytes(), &failure) == nil && failure.Error != "" {
			return services.Wrap(services.ErrExternalTool, "extract", op, failure.Error, runErr)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = "model runner failed"
		}
		return services.Wrap(services.ErrExternalTool, "extract", op, detail, runErr)
	}

	if err := json.Unmarshal(stdout.Bytes(), response); err != nil {
		return services.Wrap(services.ErrExternalTool, "extract", op, "parse model runner output", err)
	}

	r.logger.Debug("model runner completed",
		logging.String("operation", op),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}
