package enroll

import (
	"context"
	"fmt"
	"time"

	"likeness/internal/config"
	"likeness/internal/extract"
	"likeness/internal/store"
)

// Cross-session strength weights. Only the targets are configurable; these
// stay fixed.
const (
	historyVoiceWeight   = 0.4
	historyFaceWeight    = 0.4
	historySessionWeight = 0.2
)

// sessionStrength scores one session against the enrollment targets. The
// configured weights sum to 1.0; the sync consistency term contributes only
// when the session produced sync scores.
func sessionStrength(cfg config.Enrollment, voiceCount, faceCount, distinctEmotions int, durationSeconds float64, syncScores []float64) float64 {
	strength := fractionOf(voiceCount, cfg.VoiceTarget) * cfg.VoiceWeight
	strength += fractionOf(faceCount, cfg.FaceTarget) * cfg.FaceWeight
	strength += fractionOf(distinctEmotions, cfg.EmotionTarget) * cfg.EmotionWeight

	durationScore := 1.0
	if cfg.DurationTargetSeconds > 0 {
		durationScore = extract.Clip01(durationSeconds / cfg.DurationTargetSeconds)
	}
	strength += durationScore * cfg.DurationWeight

	if len(syncScores) > 0 {
		_, std := extract.BaselineStats(syncScores)
		strength += extract.Clip01(1-std) * cfg.SyncConsistencyWeight
	}
	return strength
}

// historyStrength scores a user's whole enrollment history from total
// embedding counts and completed sessions.
func historyStrength(cfg config.Enrollment, voiceCount, faceCount, completedSessions int) float64 {
	return fractionOf(voiceCount, cfg.TotalVoiceTarget)*historyVoiceWeight +
		fractionOf(faceCount, cfg.TotalFaceTarget)*historyFaceWeight +
		fractionOf(completedSessions, cfg.CompletedSessionTarget)*historySessionWeight
}

// fractionOf reports progress toward a target, capped at 1. A non-positive
// target counts as already met.
func fractionOf(count, target int) float64 {
	if target <= 0 {
		return 1
	}
	return extract.Clip01(float64(count) / float64(target))
}

// StrengthReport summarizes how strong a user's enrolled profile is across
// all completed sessions.
type StrengthReport struct {
	StrengthScore     float64
	SessionsCount     int
	FeatureCoverage   map[string]float64
	TotalVoiceSamples int
	TotalFaceSamples  int
	LastUpdated       *time.Time
}

// ProfileStrength reports enrollment progress over the user's whole
// history. Embedding counts include aggregate rows alongside raw samples.
// A user with no completed sessions gets a zero report.
func (c *Coordinator) ProfileStrength(ctx context.Context, userID string) (*StrengthReport, error) {
	completed, err := c.store.ListSessions(ctx, userID, store.SessionCompleted)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if len(completed) == 0 {
		return &StrengthReport{FeatureCoverage: map[string]float64{}}, nil
	}

	counts, err := c.store.CountEmbeddingsByType(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count embeddings: %w", err)
	}
	voiceCount := counts[store.EmbeddingVoice]
	faceCount := counts[store.EmbeddingFace]

	// ListSessions orders by start time, so the last element is the most
	// recently started completed session.
	lastUpdated := completed[len(completed)-1].CompletedAt

	ecfg := c.cfg.Enrollment
	return &StrengthReport{
		StrengthScore: historyStrength(ecfg, voiceCount, faceCount, len(completed)),
		SessionsCount: len(completed),
		FeatureCoverage: map[string]float64{
			"voice":    fractionOf(voiceCount, ecfg.TotalVoiceTarget),
			"face":     fractionOf(faceCount, ecfg.TotalFaceTarget),
			"sessions": fractionOf(len(completed), ecfg.CompletedSessionTarget),
		},
		TotalVoiceSamples: voiceCount,
		TotalFaceSamples:  faceCount,
		LastUpdated:       lastUpdated,
	}, nil
}
