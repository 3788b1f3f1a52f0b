package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Info summarizes what ffprobe found in a media file.
type Info struct {
	DurationSeconds float64
	HasAudio        bool
	HasVideo        bool
	FormatName      string
}

type probePayload struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Duration  string `json:"duration"`
}

type probeFormat struct {
	Duration   string `json:"duration"`
	FormatName string `json:"format_name"`
}

// Probe executes ffprobe against the provided path and summarizes the streams.
func Probe(ctx context.Context, binary string, path string) (Info, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Info{}, errors.New("probe: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return parseProbeOutput(output)
}

func parseProbeOutput(output []byte) (Info, error) {
	var payload probePayload
	if err := json.Unmarshal(output, &payload); err != nil {
		return Info{}, fmt.Errorf("ffprobe parse: %w", err)
	}

	info := Info{FormatName: payload.Format.FormatName}
	for _, stream := range payload.Streams {
		switch {
		case strings.EqualFold(stream.CodecType, "audio"):
			info.HasAudio = true
		case strings.EqualFold(stream.CodecType, "video"):
			info.HasVideo = true
		}
		if info.DurationSeconds == 0 {
			info.DurationSeconds = parseSeconds(stream.Duration)
		}
	}
	if formatDuration := parseSeconds(payload.Format.Duration); formatDuration > 0 {
		info.DurationSeconds = formatDuration
	}
	return info, nil
}

func parseSeconds(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil && parsed > 0 {
		return parsed
	}
	return 0
}
