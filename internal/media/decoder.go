package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"likeness/internal/config"
)

// Decoder turns a media file into PCM samples and video frames.
type Decoder interface {
	Decode(ctx context.Context, path string) (*Clip, error)
}

// FFmpegDecoder decodes media by shelling out to ffmpeg and ffprobe.
type FFmpegDecoder struct {
	ffmpegBinary  string
	ffprobeBinary string
	sampleRate    int
	frameRate     float64
}

// NewFFmpegDecoder builds a decoder from the media configuration.
func NewFFmpegDecoder(cfg *config.Config) *FFmpegDecoder {
	return &FFmpegDecoder{
		ffmpegBinary:  cfg.Media.FFmpegBinary,
		ffprobeBinary: cfg.Media.FFprobeBinary,
		sampleRate:    cfg.Media.SampleRate,
		frameRate:     cfg.Media.FrameRate,
	}
}

// Decode probes the file, extracts mono PCM at the configured rate, and
// samples video frames at the configured FPS. A file carrying only one
// stream type yields a clip with the other side empty.
func (d *FFmpegDecoder) Decode(ctx context.Context, path string) (*Clip, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("decode: empty path")
	}

	info, err := Probe(ctx, d.ffprobeBinary, path)
	if err != nil {
		return nil, err
	}
	if !info.HasAudio && !info.HasVideo {
		return nil, fmt.Errorf("decode %s: no audio or video streams", path)
	}

	clip := &Clip{SampleRate: d.sampleRate, Duration: info.DurationSeconds}

	if info.HasAudio {
		pcm, err := d.extractPCM(ctx, path)
		if err != nil {
			return nil, err
		}
		clip.PCM = SamplesFromPCM(pcm)
	}
	if info.HasVideo {
		frames, err := d.extractFrames(ctx, path)
		if err != nil {
			return nil, err
		}
		clip.Frames = frames
	}

	if clip.Duration == 0 && len(clip.PCM) > 0 && d.sampleRate > 0 {
		clip.Duration = float64(len(clip.PCM)) / float64(d.sampleRate)
	}
	return clip, nil
}

func (d *FFmpegDecoder) extractPCM(ctx context.Context, path string) ([]byte, error) {
	binary := d.ffmpegBinary
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-vn",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", d.sampleRate),
		"-f", "s16le",
		"-",
	}
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg pcm extract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func (d *FFmpegDecoder) extractFrames(ctx context.Context, path string) ([]Frame, error) {
	binary := d.ffmpegBinary
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	frameRate := d.frameRate
	if frameRate <= 0 {
		frameRate = 2
	}
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-an",
		"-vf", fmt.Sprintf("fps=%g", frameRate),
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-",
	}
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame extract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	images := splitJPEG(stdout.Bytes())
	frames := make([]Frame, 0, len(images))
	for i, img := range images {
		frames = append(frames, Frame{
			JPEG:      img,
			Timestamp: float64(i) / frameRate,
		})
	}
	return frames, nil
}
