package verify

import (
	"context"
	"fmt"

	"likeness/internal/extract"
	"likeness/internal/store"
)

// Baseline assumed when a profile has no persisted sync baseline row.
const (
	defaultSyncMean = 0.5
	defaultSyncStd  = 0.1
)

// Profile is a user's enrolled representation reconstructed from stored
// embedding rows: mean vector per modality, the raw sample vectors, the
// sync baseline, and the expression history.
type Profile struct {
	VoiceMean    []float32
	VoiceVectors [][]float32
	FaceMean     []float32
	FaceVectors  [][]float32
	Emotions     []string
	SyncMean     float64
	SyncStd      float64
	Strength     float64
}

// loadProfile rebuilds the profile from the embeddings table. It returns
// (nil, nil) when the user has neither voice nor face data. A missing mean
// aggregate is recomputed from the raw vectors.
func (e *Engine) loadProfile(ctx context.Context, userID string) (*Profile, error) {
	voiceRows, err := e.store.ListEmbeddings(ctx, userID, store.EmbeddingVoice)
	if err != nil {
		return nil, fmt.Errorf("load voice embeddings: %w", err)
	}
	faceRows, err := e.store.ListEmbeddings(ctx, userID, store.EmbeddingFace)
	if err != nil {
		return nil, fmt.Errorf("load face embeddings: %w", err)
	}
	syncRows, err := e.store.ListEmbeddings(ctx, userID, store.EmbeddingSync)
	if err != nil {
		return nil, fmt.Errorf("load sync embeddings: %w", err)
	}
	if len(voiceRows) == 0 && len(faceRows) == 0 {
		return nil, nil
	}

	profile := &Profile{SyncMean: defaultSyncMean, SyncStd: defaultSyncStd}

	for _, row := range voiceRows {
		if row.Metadata != nil && row.Metadata.Type == store.MetadataMean {
			profile.VoiceMean = row.Vector
			continue
		}
		profile.VoiceVectors = append(profile.VoiceVectors, row.Vector)
	}
	if profile.VoiceMean == nil && len(profile.VoiceVectors) > 0 {
		mean, _, err := extract.AggregateVectors(profile.VoiceVectors)
		if err != nil {
			return nil, fmt.Errorf("recompute voice mean: %w", err)
		}
		profile.VoiceMean = mean
	}

	for _, row := range faceRows {
		if row.Metadata != nil && row.Metadata.Type == store.MetadataMean {
			profile.FaceMean = row.Vector
			continue
		}
		profile.FaceVectors = append(profile.FaceVectors, row.Vector)
		if row.Metadata != nil && row.Metadata.Emotion != "" {
			profile.Emotions = append(profile.Emotions, row.Metadata.Emotion)
		}
	}
	if profile.FaceMean == nil && len(profile.FaceVectors) > 0 {
		mean, _, err := extract.AggregateVectors(profile.FaceVectors)
		if err != nil {
			return nil, fmt.Errorf("recompute face mean: %w", err)
		}
		profile.FaceMean = mean
	}

	// Rows arrive oldest first, so the newest session's baseline wins.
	for _, row := range syncRows {
		if row.Metadata != nil && row.Metadata.Type == store.MetadataBaseline && len(row.Vector) >= 2 {
			profile.SyncMean = float64(row.Vector[0])
			profile.SyncStd = float64(row.Vector[1])
		}
	}

	// Strength here is a quick estimate over raw samples only, used to
	// qualify the verdict. The enrollment report uses its own formula.
	ecfg := e.cfg.Enrollment
	var voiceFrac, faceFrac float64
	if ecfg.VoiceTarget > 0 {
		voiceFrac = float64(len(profile.VoiceVectors)) / float64(ecfg.VoiceTarget)
	}
	if ecfg.FaceTarget > 0 {
		faceFrac = float64(len(profile.FaceVectors)) / float64(ecfg.FaceTarget)
	}
	profile.Strength = extract.Clip01((voiceFrac + faceFrac) / 2)

	return profile, nil
}
