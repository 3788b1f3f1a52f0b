package verify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"likeness/internal/config"
	"likeness/internal/extract"
	"likeness/internal/logging"
	"likeness/internal/media"
	"likeness/internal/services"
	"likeness/internal/store"
	"likeness/internal/vad"
)

// SpeechDetector finds speech intervals in decoded audio.
type SpeechDetector interface {
	DetectSpeech(samples []float32) []vad.Interval
}

// Engine verifies submitted content against enrolled profiles.
type Engine struct {
	cfg       *config.Config
	store     *store.Store
	decoder   media.Decoder
	detector  SpeechDetector
	extractor extract.Extractor
	logger    *slog.Logger
}

// NewEngine wires a verification engine from its dependencies.
func NewEngine(cfg *config.Config, st *store.Store, decoder media.Decoder, detector SpeechDetector, extractor extract.Extractor, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		store:     st,
		decoder:   decoder,
		detector:  detector,
		extractor: extractor,
		logger:    logging.NewComponentLogger(logger, "verify"),
	}
}

// Details carries supporting numbers for a verdict.
type Details struct {
	VoiceSamplesCompared int
	FaceSamplesCompared  int
	ProfileStrength      float64
	TestDuration         float64
}

// Result is the full outcome of one verification.
type Result struct {
	VerificationID string
	Authentic      bool
	Confidence     float64
	Breakdown      map[string]float64
	Anomalies      []string
	Details        Details
	VerifiedAt     time.Time
}

// testFeatures holds everything extracted from the submitted clip.
type testFeatures struct {
	voiceVectors   [][]float32
	voiceMean      []float32
	faceVectors    [][]float32
	faceMean       []float32
	emotions       []string
	syncScore      *float64
	syncScores     []float64
	speechDuration float64
	duration       float64
}

// comparison holds the per-modality scores, each already in [0, 1].
type comparison struct {
	voice  float64
	face   float64
	sync   float64
	speech float64
}

// Verify scores content against the user's profile. The whole call either
// produces a verdict or fails; there are no partial results. A user with
// no enrolled voice or face data yields a not-found error.
func (e *Engine) Verify(ctx context.Context, userID string, content []byte, filename string) (*Result, error) {
	if len(content) == 0 {
		return nil, services.Wrap(services.ErrValidation, "verify", "verify", "empty content payload", nil)
	}

	digest := sha256.Sum256(content)
	contentHash := hex.EncodeToString(digest[:])

	ctx = services.WithUserID(ctx, userID)
	logger := logging.WithContext(ctx, e.logger)

	profile, err := e.loadProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, services.Wrap(services.ErrNotFound, "verify", "verify", fmt.Sprintf("no enrolled profile for user %s", userID), nil)
	}

	features, err := e.extractFeatures(ctx, content, filename)
	if err != nil {
		return nil, err
	}

	comp := e.compare(features, profile)
	vcfg := e.cfg.Verification

	confidence := extract.Clip01(
		comp.voice*vcfg.VoiceWeight +
			comp.face*vcfg.FaceWeight +
			comp.sync*vcfg.SyncWeight +
			comp.speech*vcfg.SpeechWeight)

	anomalies := detectAnomalies(features, profile, comp, vcfg)
	authentic := confidence >= vcfg.ConfidenceThreshold && len(anomalies) < vcfg.AnomalyLimit

	record := &store.Verification{
		UserID:      userID,
		ContentHash: contentHash,
		Authentic:   authentic,
		Confidence:  confidence,
		Breakdown: map[string]float64{
			"voice_match":     comp.voice,
			"face_match":      comp.face,
			"lip_sync":        comp.sync,
			"speech_patterns": comp.speech,
		},
		Anomalies:  anomalies,
		VerifiedAt: time.Now().UTC(),
	}
	id, err := e.store.InsertVerification(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("persist verification: %w", err)
	}

	logger.Info("verification completed",
		logging.Bool("authentic", authentic),
		logging.Float64("confidence", confidence),
		logging.Int("anomalies", len(anomalies)),
		logging.String(logging.FieldEventType, "verification_completed"),
	)
	if len(anomalies) > 0 {
		logger.Warn("verification anomalies detected",
			logging.Alert(strings.Join(anomalies, "; ")),
			logging.String(logging.FieldEventType, "verification_anomalies"),
		)
	}

	return &Result{
		VerificationID: id,
		Authentic:      authentic,
		Confidence:     confidence,
		Breakdown:      record.Breakdown,
		Anomalies:      anomalies,
		Details: Details{
			VoiceSamplesCompared: len(features.voiceVectors),
			FaceSamplesCompared:  len(features.faceVectors),
			ProfileStrength:      profile.Strength,
			TestDuration:         features.duration,
		},
		VerifiedAt: record.VerifiedAt,
	}, nil
}

// extractFeatures runs the enrollment extraction pipeline over the whole
// submitted clip.
func (e *Engine) extractFeatures(ctx context.Context, content []byte, filename string) (*testFeatures, error) {
	path, cleanup, err := e.stageContent(content, filename)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	clip, err := e.decoder.Decode(ctx, path)
	if err != nil {
		return nil, err
	}

	intervals := e.detector.DetectSpeech(clip.PCM)
	features := &testFeatures{duration: clip.Duration}
	for _, interval := range intervals {
		features.speechDuration += interval.Duration()
	}

	voiceSamples, err := e.extractor.ExtractSegments(ctx, clip.PCM, clip.SampleRate, intervals)
	if err != nil {
		return nil, err
	}
	for _, sample := range voiceSamples {
		features.voiceVectors = append(features.voiceVectors, sample.Vector)
	}
	if len(features.voiceVectors) > 0 {
		mean, _, err := extract.AggregateVectors(features.voiceVectors)
		if err != nil {
			return nil, fmt.Errorf("aggregate test voice vectors: %w", err)
		}
		features.voiceMean = mean
	}

	faceSamples, err := e.extractor.ExtractFrames(ctx, clip.Frames, true)
	if err != nil {
		return nil, err
	}
	for _, sample := range faceSamples {
		features.faceVectors = append(features.faceVectors, sample.Vector)
		if sample.Emotion != "" {
			features.emotions = append(features.emotions, sample.Emotion)
		}
	}
	if len(features.faceVectors) > 0 {
		mean, _, err := extract.AggregateVectors(features.faceVectors)
		if err != nil {
			return nil, fmt.Errorf("aggregate test face vectors: %w", err)
		}
		features.faceMean = mean
	}

	if clip.HasVideo() && clip.HasAudio() {
		analysis, err := e.extractor.Analyze(ctx, clip.Frames, clip.PCM, clip.SampleRate)
		if err != nil {
			return nil, err
		}
		features.syncScore = &analysis.Score
		features.syncScores = analysis.FrameScores
	}

	return features, nil
}

func (e *Engine) stageContent(content []byte, filename string) (string, func(), error) {
	if err := os.MkdirAll(e.cfg.Paths.StagingDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create staging directory: %w", err)
	}
	dir, err := os.MkdirTemp(e.cfg.Paths.StagingDir, "verify-")
	if err != nil {
		return "", nil, fmt.Errorf("create staging directory: %w", err)
	}

	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".webm"
	}
	path := filepath.Join(dir, "content"+ext)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		os.RemoveAll(dir)
		return "", nil, fmt.Errorf("stage content: %w", err)
	}
	return path, func() { os.RemoveAll(dir) }, nil
}

// compare scores each modality against the profile. A modality missing on
// either side scores a neutral 0.5.
func (e *Engine) compare(test *testFeatures, profile *Profile) comparison {
	vcfg := e.cfg.Verification
	comp := comparison{voice: 0.5, face: 0.5, sync: 0.5, speech: vcfg.SpeechAbsentScore}

	if test.voiceMean != nil && profile.VoiceMean != nil {
		comp.voice = extract.ProfileSimilarity(test.voiceMean, profile.VoiceVectors, profile.VoiceMean).Mean
	}

	if test.faceMean != nil && profile.FaceMean != nil {
		comp.face = extract.ProfileSimilarity(test.faceMean, profile.FaceVectors, profile.FaceMean).Mean
	}

	if test.syncScore != nil {
		diff := math.Abs(*test.syncScore - profile.SyncMean)
		comp.sync = math.Max(0, 1-diff/vcfg.SyncTolerance)
	}

	if test.speechDuration > 0 {
		comp.speech = vcfg.SpeechPresentScore
	}
	return comp
}

// Summary is one verification history entry.
type Summary struct {
	ID         string
	VerifiedAt time.Time
	Authentic  bool
	Confidence float64
}

// History returns the user's most recent verifications, newest first. A
// non-positive limit applies the configured default.
func (e *Engine) History(ctx context.Context, userID string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = e.cfg.Verification.HistoryLimit
	}
	rows, err := e.store.ListVerifications(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	summaries := make([]Summary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, Summary{
			ID:         row.ID,
			VerifiedAt: row.VerifiedAt,
			Authentic:  row.Authentic,
			Confidence: row.Confidence,
		})
	}
	return summaries, nil
}
