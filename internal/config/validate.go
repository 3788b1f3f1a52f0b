package config

import (
	"errors"
	"fmt"
	"math"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateVAD(); err != nil {
		return err
	}
	if err := c.validateEnrollment(); err != nil {
		return err
	}
	if err := c.validateVerification(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMedia() error {
	if c.Media.SampleRate <= 0 {
		return errors.New("media.sample_rate must be positive")
	}
	if c.Media.FrameRate <= 0 {
		return errors.New("media.frame_rate must be positive")
	}
	return nil
}

func (c *Config) validateVAD() error {
	if c.VAD.FrameMs <= 0 {
		return errors.New("vad.frame_ms must be positive")
	}
	if c.VAD.Aggressiveness < 0 || c.VAD.Aggressiveness > 3 {
		return errors.New("vad.aggressiveness must be between 0 and 3")
	}
	if c.VAD.EnergyThreshold <= 0 || c.VAD.EnergyThreshold >= 1 {
		return errors.New("vad.energy_threshold must be between 0 and 1")
	}
	if c.VAD.MinSpeechMs < c.VAD.FrameMs {
		return errors.New("vad.min_speech_ms must be at least one frame long")
	}
	return nil
}

func (c *Config) validateEnrollment() error {
	cfg := c.Enrollment
	if err := ensurePositiveMap(map[string]int{
		"enrollment.voice_target":             cfg.VoiceTarget,
		"enrollment.face_target":              cfg.FaceTarget,
		"enrollment.emotion_target":           cfg.EmotionTarget,
		"enrollment.total_voice_target":       cfg.TotalVoiceTarget,
		"enrollment.total_face_target":        cfg.TotalFaceTarget,
		"enrollment.completed_session_target": cfg.CompletedSessionTarget,
	}); err != nil {
		return err
	}
	if cfg.DurationTargetSeconds <= 0 {
		return errors.New("enrollment.duration_target_seconds must be positive")
	}
	sum := cfg.VoiceWeight + cfg.FaceWeight + cfg.EmotionWeight + cfg.DurationWeight + cfg.SyncConsistencyWeight
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("enrollment weights must sum to 1.0, got %.4f", sum)
	}
	return nil
}

func (c *Config) validateVerification() error {
	cfg := c.Verification
	sum := cfg.VoiceWeight + cfg.FaceWeight + cfg.SyncWeight + cfg.SpeechWeight
	if math.Abs(sum-1.0) > 1e-6 {
		return fmt.Errorf("verification weights must sum to 1.0, got %.4f", sum)
	}
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return errors.New("verification.confidence_threshold must be between 0 and 1")
	}
	if cfg.AnomalyLimit < 1 {
		return errors.New("verification.anomaly_limit must be >= 1")
	}
	if cfg.DivergenceThreshold <= 0 || cfg.DivergenceThreshold >= 1 {
		return errors.New("verification.divergence_threshold must be between 0 and 1")
	}
	if cfg.SyncDeviationStdDevs <= 0 {
		return errors.New("verification.sync_deviation_std_devs must be positive")
	}
	if cfg.LowSimilarityThreshold < 0 || cfg.LowSimilarityThreshold > 1 {
		return errors.New("verification.low_similarity_threshold must be between 0 and 1")
	}
	if cfg.PerfectSyncThreshold <= 0 || cfg.PerfectSyncThreshold > 1 {
		return errors.New("verification.perfect_sync_threshold must be between 0 and 1")
	}
	if cfg.SyncTolerance <= 0 {
		return errors.New("verification.sync_tolerance must be positive")
	}
	for name, score := range map[string]float64{
		"verification.speech_present_score": cfg.SpeechPresentScore,
		"verification.speech_absent_score":  cfg.SpeechAbsentScore,
	} {
		if score < 0 || score > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if cfg.HistoryLimit < 1 {
		return errors.New("verification.history_limit must be >= 1")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
