package enroll

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
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

// Coordinator runs enrollment sessions end to end: it resolves users,
// registers live sessions, processes chunks, and finalizes profiles.
type Coordinator struct {
	cfg       *config.Config
	store     *store.Store
	decoder   media.Decoder
	detector  SpeechDetector
	extractor extract.Extractor
	registry  *Registry
	logger    *slog.Logger
}

// NewCoordinator wires an enrollment coordinator from its dependencies.
func NewCoordinator(cfg *config.Config, st *store.Store, decoder media.Decoder, detector SpeechDetector, extractor extract.Extractor, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		store:     st,
		decoder:   decoder,
		detector:  detector,
		extractor: extractor,
		registry:  NewRegistry(),
		logger:    logging.NewComponentLogger(logger, "enroll"),
	}
}

// ActiveSessions reports the number of live enrollment sessions.
func (c *Coordinator) ActiveSessions() int {
	return c.registry.Len()
}

// StartRequest identifies who is enrolling. UserID takes precedence; with
// only an email the user is looked up or, when Name is also set, created.
type StartRequest struct {
	UserID string
	Email  string
	Name   string
}

// StartResult carries the identifiers a client needs to stream chunks.
type StartResult struct {
	SessionID string
	UserID    string
}

// Start resolves the enrolling user, persists a session row, and registers
// the live session.
func (c *Coordinator) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	user, err := c.resolveUser(ctx, req)
	if err != nil {
		return nil, err
	}

	row, err := c.store.CreateSession(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	c.registry.Add(newSession(row.ID, user.ID, row.StartedAt))

	logger := logging.WithContext(ctx, c.logger)
	logger.Info("enrollment session started",
		logging.String(logging.FieldSessionID, row.ID),
		logging.String(logging.FieldUserID, user.ID),
		logging.String(logging.FieldEventType, "enrollment_started"),
	)
	return &StartResult{SessionID: row.ID, UserID: user.ID}, nil
}

func (c *Coordinator) resolveUser(ctx context.Context, req StartRequest) (*store.User, error) {
	if req.UserID != "" {
		user, err := c.store.GetUser(ctx, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("look up user: %w", err)
		}
		if user == nil {
			return nil, services.Wrap(services.ErrNotFound, "enroll", "start", fmt.Sprintf("unknown user %s", req.UserID), nil)
		}
		return user, nil
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		return nil, services.Wrap(services.ErrValidation, "enroll", "start", "user_id or email is required", nil)
	}
	user, err := c.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("look up user by email: %w", err)
	}
	if user != nil {
		return user, nil
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "enroll", "start", "name is required to enroll a new user", nil)
	}
	user, err = c.store.CreateUser(ctx, name, email)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// ChunkResult reports what one chunk contributed to the session. A failed
// chunk sets Success false and Error while the session itself stays live.
// SyncScore is set only when this chunk carried both streams.
type ChunkResult struct {
	Success         bool
	Error           string
	VoiceEmbeddings int
	FaceEmbeddings  int
	SpeechDuration  float64
	SyncScore       *float64
}

// ProcessChunk decodes one recorded chunk and folds its embeddings into the
// session. Extraction failures are soft: the result carries the error and
// the caller may keep streaming. Only an unknown session is a hard error.
func (c *Coordinator) ProcessChunk(ctx context.Context, sessionID string, chunk []byte) (ChunkResult, error) {
	session, ok := c.registry.Get(sessionID)
	if !ok {
		return ChunkResult{}, services.Wrap(services.ErrNotFound, "enroll", "process chunk", fmt.Sprintf("no active session %s", sessionID), nil)
	}

	ctx = services.WithSessionID(ctx, session.ID)
	ctx = services.WithUserID(ctx, session.UserID)
	logger := logging.WithContext(ctx, c.logger)

	session.mu.Lock()
	defer session.mu.Unlock()

	// The session may have been completed while we waited for the lock.
	if _, live := c.registry.Get(sessionID); !live {
		return ChunkResult{}, services.Wrap(services.ErrNotFound, "enroll", "process chunk", fmt.Sprintf("no active session %s", sessionID), nil)
	}

	result, err := c.processChunkLocked(ctx, logger, session, chunk)
	if err != nil {
		logger.Warn("chunk processing failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "enrollment_chunk_failed"),
			logging.String(logging.FieldErrorHint, "check that ffmpeg can decode the submitted clip format"),
		)
		return ChunkResult{Error: err.Error()}, nil
	}
	return result, nil
}

func (c *Coordinator) processChunkLocked(ctx context.Context, logger *slog.Logger, session *Session, chunk []byte) (ChunkResult, error) {
	if len(chunk) == 0 {
		return ChunkResult{}, fmt.Errorf("empty chunk payload")
	}

	clip, err := c.decodeChunk(ctx, chunk)
	if err != nil {
		return ChunkResult{}, err
	}

	intervals := c.detector.DetectSpeech(clip.PCM)
	var speech float64
	for _, interval := range intervals {
		speech += interval.Duration()
	}

	voiceSamples, err := c.extractor.ExtractSegments(ctx, clip.PCM, clip.SampleRate, intervals)
	if err != nil {
		return ChunkResult{}, err
	}
	for _, sample := range voiceSamples {
		record := &store.Embedding{
			UserID:    session.UserID,
			SessionID: session.ID,
			Type:      store.EmbeddingVoice,
			Vector:    sample.Vector,
			Metadata:  &store.Metadata{Timestamp: sample.Start},
		}
		if _, err := c.store.InsertEmbedding(ctx, record); err != nil {
			return ChunkResult{}, fmt.Errorf("persist voice embedding: %w", err)
		}
		session.voiceVectors = append(session.voiceVectors, sample.Vector)
	}

	faceSamples, err := c.extractor.ExtractFrames(ctx, clip.Frames, true)
	if err != nil {
		return ChunkResult{}, err
	}
	for _, sample := range faceSamples {
		record := &store.Embedding{
			UserID:    session.UserID,
			SessionID: session.ID,
			Type:      store.EmbeddingFace,
			Vector:    sample.Vector,
			Metadata:  &store.Metadata{Timestamp: sample.Timestamp, Emotion: sample.Emotion},
		}
		if _, err := c.store.InsertEmbedding(ctx, record); err != nil {
			return ChunkResult{}, fmt.Errorf("persist face embedding: %w", err)
		}
		session.faceSamples = append(session.faceSamples, sample)
		if sample.Emotion != "" {
			session.emotions = append(session.emotions, sample.Emotion)
		}
	}

	var syncScore *float64
	if clip.HasVideo() && clip.HasAudio() {
		analysis, err := c.extractor.Analyze(ctx, clip.Frames, clip.PCM, clip.SampleRate)
		if err != nil {
			return ChunkResult{}, err
		}
		score := analysis.Score
		record := &store.Embedding{
			UserID:    session.UserID,
			SessionID: session.ID,
			Type:      store.EmbeddingSync,
			Vector:    []float32{float32(score)},
			Metadata:  &store.Metadata{Score: score},
		}
		if _, err := c.store.InsertEmbedding(ctx, record); err != nil {
			return ChunkResult{}, fmt.Errorf("persist sync score: %w", err)
		}
		session.syncScores = append(session.syncScores, score)
		syncScore = &score
	}

	session.chunks++
	session.speechDuration += speech
	session.framesSeen += len(clip.Frames)

	if err := c.store.UpdateSession(ctx, &store.Session{
		ID:             session.ID,
		Status:         store.SessionActive,
		ChunksReceived: session.chunks,
	}); err != nil {
		return ChunkResult{}, fmt.Errorf("update session row: %w", err)
	}

	logger.Info("chunk processed",
		logging.Int("chunk", session.chunks),
		logging.Int("voice_embeddings", len(voiceSamples)),
		logging.Int("face_embeddings", len(faceSamples)),
		logging.String(logging.FieldEventType, "enrollment_chunk_processed"),
	)

	return ChunkResult{
		Success:         true,
		VoiceEmbeddings: len(voiceSamples),
		FaceEmbeddings:  len(faceSamples),
		SpeechDuration:  speech,
		SyncScore:       syncScore,
	}, nil
}

// decodeChunk stages the raw payload on disk and decodes it. The staging
// directory is removed once the clip is in memory.
func (c *Coordinator) decodeChunk(ctx context.Context, chunk []byte) (*media.Clip, error) {
	if err := os.MkdirAll(c.cfg.Paths.StagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	dir, err := os.MkdirTemp(c.cfg.Paths.StagingDir, "chunk-")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "chunk.webm")
	if err := os.WriteFile(path, chunk, 0o644); err != nil {
		return nil, fmt.Errorf("stage chunk: %w", err)
	}
	return c.decoder.Decode(ctx, path)
}

// Collected counts the embeddings a session produced per modality.
type Collected struct {
	Voice int
	Face  int
	Sync  int
}

// CompletionSummary reports the final state of a completed session.
type CompletionSummary struct {
	SessionID       string
	UserID          string
	ProfileStrength float64
	DurationSeconds float64
	Embeddings      Collected
	EmotionCoverage map[string]int
	SpeechDuration  float64
}

// Complete finalizes a session: aggregates are persisted, the session row
// is marked complete, and the in-memory session is evicted. Modalities with
// no samples simply skip their aggregate.
func (c *Coordinator) Complete(ctx context.Context, sessionID string) (*CompletionSummary, error) {
	session, ok := c.registry.Get(sessionID)
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "enroll", "complete", fmt.Sprintf("no active session %s", sessionID), nil)
	}

	ctx = services.WithSessionID(ctx, session.ID)
	ctx = services.WithUserID(ctx, session.UserID)
	logger := logging.WithContext(ctx, c.logger)

	session.mu.Lock()
	defer session.mu.Unlock()

	// Lost a completion race: another caller finalized this session first.
	if _, live := c.registry.Get(sessionID); !live {
		return nil, services.Wrap(services.ErrNotFound, "enroll", "complete", fmt.Sprintf("no active session %s", sessionID), nil)
	}

	duration := time.Since(session.StartedAt).Seconds()
	coverage := extract.ExpressionCoverage(session.emotions)
	strength := sessionStrength(c.cfg.Enrollment, len(session.voiceVectors), len(session.faceSamples), len(coverage), duration, session.syncScores)

	if len(session.voiceVectors) > 0 {
		mean, _, err := extract.AggregateVectors(session.voiceVectors)
		if err != nil {
			return nil, fmt.Errorf("aggregate voice embeddings: %w", err)
		}
		if err := c.insertAggregate(ctx, session, store.EmbeddingVoice, mean, len(session.voiceVectors)); err != nil {
			return nil, err
		}
	}

	if len(session.faceSamples) > 0 {
		vectors := make([][]float32, 0, len(session.faceSamples))
		for _, sample := range session.faceSamples {
			vectors = append(vectors, sample.Vector)
		}
		mean, _, err := extract.AggregateVectors(vectors)
		if err != nil {
			return nil, fmt.Errorf("aggregate face embeddings: %w", err)
		}
		if err := c.insertAggregate(ctx, session, store.EmbeddingFace, mean, len(vectors)); err != nil {
			return nil, err
		}
	}

	if len(session.syncScores) > 0 {
		mean, std := extract.BaselineStats(session.syncScores)
		record := &store.Embedding{
			UserID:    session.UserID,
			SessionID: session.ID,
			Type:      store.EmbeddingSync,
			Vector:    []float32{float32(mean), float32(std)},
			Metadata:  &store.Metadata{Type: store.MetadataBaseline, Mean: mean, Std: std},
		}
		if _, err := c.store.InsertEmbedding(ctx, record); err != nil {
			return nil, fmt.Errorf("persist sync baseline: %w", err)
		}
	}

	labels := make([]string, 0, len(coverage))
	for label := range coverage {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	now := time.Now().UTC()
	if err := c.store.UpdateSession(ctx, &store.Session{
		ID:              session.ID,
		Status:          store.SessionCompleted,
		CompletedAt:     &now,
		ChunksReceived:  session.chunks,
		DurationSeconds: duration,
		Emotions:        labels,
	}); err != nil {
		return nil, fmt.Errorf("complete session row: %w", err)
	}

	c.registry.Remove(session.ID)

	logger.Info("enrollment session completed",
		logging.Float64("profile_strength", strength),
		logging.Int("voice_embeddings", len(session.voiceVectors)),
		logging.Int("face_embeddings", len(session.faceSamples)),
		logging.Int("frames_processed", session.framesSeen),
		logging.String(logging.FieldEventType, "enrollment_completed"),
	)

	return &CompletionSummary{
		SessionID:       session.ID,
		UserID:          session.UserID,
		ProfileStrength: strength,
		DurationSeconds: duration,
		Embeddings: Collected{
			Voice: len(session.voiceVectors),
			Face:  len(session.faceSamples),
			Sync:  len(session.syncScores),
		},
		EmotionCoverage: coverage,
		SpeechDuration:  session.speechDuration,
	}, nil
}

func (c *Coordinator) insertAggregate(ctx context.Context, session *Session, embType store.EmbeddingType, mean []float32, sampleCount int) error {
	record := &store.Embedding{
		UserID:    session.UserID,
		SessionID: session.ID,
		Type:      embType,
		Vector:    mean,
		Metadata:  &store.Metadata{Type: store.MetadataMean, SampleCount: sampleCount},
	}
	if _, err := c.store.InsertEmbedding(ctx, record); err != nil {
		return fmt.Errorf("persist %s aggregate: %w", embType, err)
	}
	return nil
}
