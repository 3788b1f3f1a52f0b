package extract

import (
	"context"

	"likeness/internal/media"
	"likeness/internal/vad"
)

// VoiceSample is one speaker embedding extracted from a speech segment.
type VoiceSample struct {
	Vector []float32
	Start  float64
	End    float64
}

// FaceSample is one face embedding extracted from a sampled frame.
// Emotion is a lowercase label ("happy", "neutral", ...) and may be empty
// when emotion analysis was not requested or no expression was recognized.
type FaceSample struct {
	Vector    []float32
	Timestamp float64
	Emotion   string
	Score     float64
}

// SyncAnalysis holds audio-visual synchronization scores for a clip: one
// aggregate score in [0, 1] plus the per-frame scores it was derived from.
type SyncAnalysis struct {
	Score       float64
	FrameScores []float64
}

// Voice extracts speaker embeddings from the speech regions of an audio
// signal. Implementations return one sample per interval that contained a
// usable voice; intervals without one are skipped, not errors.
type Voice interface {
	ExtractSegments(ctx context.Context, samples []float32, sampleRate int, intervals []vad.Interval) ([]VoiceSample, error)
}

// Face extracts face embeddings from sampled video frames, optionally
// annotating each with the dominant facial expression.
type Face interface {
	ExtractFrames(ctx context.Context, frames []media.Frame, withEmotion bool) ([]FaceSample, error)
}

// Sync scores how well lip movement tracks the audio. Both streams are
// required; callers gate on the clip's stream flags before invoking.
type Sync interface {
	Analyze(ctx context.Context, frames []media.Frame, samples []float32, sampleRate int) (SyncAnalysis, error)
}

// Extractor bundles all three modalities behind one dependency.
type Extractor interface {
	Voice
	Face
	Sync
}
