package verify_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"likeness/internal/extract"
	"likeness/internal/logging"
	"likeness/internal/media"
	"likeness/internal/services"
	"likeness/internal/store"
	"likeness/internal/testsupport"
	"likeness/internal/vad"
	"likeness/internal/verify"
)

type stubDecoder struct {
	clip *media.Clip
	err  error
}

func (d *stubDecoder) Decode(_ context.Context, _ string) (*media.Clip, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.clip, nil
}

type stubDetector struct{}

func (stubDetector) DetectSpeech(samples []float32) []vad.Interval {
	if len(samples) == 0 {
		return nil
	}
	return []vad.Interval{{Start: 0, End: 1}}
}

type fixedExtractor struct {
	voice []extract.VoiceSample
	faces []extract.FaceSample
	sync  extract.SyncAnalysis
}

func (e *fixedExtractor) ExtractSegments(_ context.Context, _ []float32, _ int, _ []vad.Interval) ([]extract.VoiceSample, error) {
	return e.voice, nil
}

func (e *fixedExtractor) ExtractFrames(_ context.Context, _ []media.Frame, _ bool) ([]extract.FaceSample, error) {
	return e.faces, nil
}

func (e *fixedExtractor) Analyze(_ context.Context, _ []media.Frame, _ []float32, _ int) (extract.SyncAnalysis, error) {
	return e.sync, nil
}

func testClip(withVideo bool) *media.Clip {
	clip := &media.Clip{
		PCM:        testsupport.Sine(440, 0.5, 1.0, 16000),
		SampleRate: 16000,
		Duration:   1.0,
	}
	if withVideo {
		clip.Frames = []media.Frame{
			{JPEG: []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}, Timestamp: 0},
			{JPEG: []byte{0xFF, 0xD8, 0x02, 0xFF, 0xD9}, Timestamp: 0.5},
		}
	}
	return clip
}

var (
	voiceVector = []float32{0.6, 0.8}
	faceVector  = []float32{1, 0}
)

// seedProfile stores two raw voice vectors, two raw face vectors tagged
// "happy", and a sync baseline of (0.6, 0.05). No mean aggregates are
// stored, so profile loading recomputes them from the raw rows.
func seedProfile(t *testing.T, st *store.Store, userID, sessionID string) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := st.InsertEmbedding(ctx, &store.Embedding{
			UserID:    userID,
			SessionID: sessionID,
			Type:      store.EmbeddingVoice,
			Vector:    voiceVector,
			Metadata:  &store.Metadata{Timestamp: float64(i)},
		}); err != nil {
			t.Fatalf("seed voice embedding: %v", err)
		}
		if _, err := st.InsertEmbedding(ctx, &store.Embedding{
			UserID:    userID,
			SessionID: sessionID,
			Type:      store.EmbeddingFace,
			Vector:    faceVector,
			Metadata:  &store.Metadata{Timestamp: float64(i), Emotion: "happy"},
		}); err != nil {
			t.Fatalf("seed face embedding: %v", err)
		}
	}
	if _, err := st.InsertEmbedding(ctx, &store.Embedding{
		UserID:    userID,
		SessionID: sessionID,
		Type:      store.EmbeddingSync,
		Vector:    []float32{0.6, 0.05},
		Metadata:  &store.Metadata{Type: store.MetadataBaseline, Mean: 0.6, Std: 0.05},
	}); err != nil {
		t.Fatalf("seed sync baseline: %v", err)
	}
}

func matchingExtractor() *fixedExtractor {
	return &fixedExtractor{
		voice: []extract.VoiceSample{{Vector: voiceVector, Start: 0, End: 1}},
		faces: []extract.FaceSample{{Vector: faceVector, Timestamp: 0, Emotion: "happy", Score: 0.9}},
		sync:  extract.SyncAnalysis{Score: 0.6, FrameScores: []float64{0.6, 0.6}},
	}
}

func newEngine(t *testing.T, decoder media.Decoder, extractor extract.Extractor) (*verify.Engine, *store.Store, *store.User, *store.Session) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	user := testsupport.NewUser(t, st, "Ada", "ada@example.com")
	session := testsupport.NewSession(t, st, user.ID)
	engine := verify.NewEngine(cfg, st, decoder, stubDetector{}, extractor, logging.NewNop())
	return engine, st, user, session
}

func TestVerifyAuthenticMatch(t *testing.T) {
	engine, st, user, session := newEngine(t, &stubDecoder{clip: testClip(true)}, matchingExtractor())
	seedProfile(t, st, user.ID, session.ID)
	ctx := context.Background()

	content := []byte("recorded-clip-bytes")
	result, err := engine.Verify(ctx, user.ID, content, "clip.webm")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if !result.Authentic {
		t.Fatalf("expected authentic verdict: %+v", result)
	}
	if len(result.Anomalies) != 0 {
		t.Fatalf("expected no anomalies, got %v", result.Anomalies)
	}
	// 0.30*1 + 0.25*1 + 0.25*1 + 0.20*0.7
	if math.Abs(result.Confidence-0.94) > 1e-9 {
		t.Fatalf("confidence = %v, want 0.94", result.Confidence)
	}
	for key, want := range map[string]float64{
		"voice_match":     1,
		"face_match":      1,
		"lip_sync":        1,
		"speech_patterns": 0.7,
	} {
		if got := result.Breakdown[key]; math.Abs(got-want) > 1e-9 {
			t.Fatalf("breakdown[%s] = %v, want %v", key, got, want)
		}
	}
	// The extractor produced one sample per modality from the test clip.
	if result.Details.VoiceSamplesCompared != 1 || result.Details.FaceSamplesCompared != 1 {
		t.Fatalf("unexpected details %+v", result.Details)
	}
	if result.Details.TestDuration != 1.0 {
		t.Fatalf("test duration = %v, want 1.0", result.Details.TestDuration)
	}

	rows, err := st.ListVerifications(ctx, user.ID, 0)
	if err != nil || len(rows) != 1 {
		t.Fatalf("expected 1 stored verification, got (%d, %v)", len(rows), err)
	}
	digest := sha256.Sum256(content)
	if rows[0].ContentHash != hex.EncodeToString(digest[:]) {
		t.Fatalf("content hash = %s, want sha256 of payload", rows[0].ContentHash)
	}
	if rows[0].ID != result.VerificationID {
		t.Fatalf("result ID %s does not match stored row %s", result.VerificationID, rows[0].ID)
	}
}

func TestVerifyRequiresEnrolledProfile(t *testing.T) {
	engine, _, user, _ := newEngine(t, &stubDecoder{clip: testClip(true)}, matchingExtractor())

	_, err := engine.Verify(context.Background(), user.ID, []byte("clip"), "clip.webm")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found without profile, got %v", err)
	}
}

func TestVerifyRejectsEmptyContent(t *testing.T) {
	engine, _, user, _ := newEngine(t, &stubDecoder{clip: testClip(true)}, matchingExtractor())

	_, err := engine.Verify(context.Background(), user.ID, nil, "clip.webm")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVerifyFlagsDivergentFace(t *testing.T) {
	extractor := matchingExtractor()
	// Face embeddings orthogonal to the enrolled ones: voice still matches.
	extractor.faces = []extract.FaceSample{{Vector: []float32{0, 1}, Timestamp: 0, Emotion: "happy", Score: 0.9}}
	engine, st, user, session := newEngine(t, &stubDecoder{clip: testClip(true)}, extractor)
	seedProfile(t, st, user.ID, session.ID)

	result, err := engine.Verify(context.Background(), user.ID, []byte("clip"), "clip.webm")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if result.Authentic {
		t.Fatalf("expected inauthentic verdict: %+v", result)
	}
	if len(result.Anomalies) < 2 {
		t.Fatalf("expected divergence and low-similarity anomalies, got %v", result.Anomalies)
	}
	if result.Anomalies[0] != "Voice matches profile (100%) but face diverges (0%)" {
		t.Fatalf("unexpected first anomaly %q", result.Anomalies[0])
	}
	if result.Breakdown["face_match"] != 0 {
		t.Fatalf("face_match = %v, want 0", result.Breakdown["face_match"])
	}
}

func TestVerifyAudioOnlyScoresNeutral(t *testing.T) {
	extractor := matchingExtractor()
	extractor.faces = nil
	engine, st, user, session := newEngine(t, &stubDecoder{clip: testClip(false)}, extractor)
	seedProfile(t, st, user.ID, session.ID)

	result, err := engine.Verify(context.Background(), user.ID, []byte("clip"), "clip.webm")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	// voice 1.0, face and sync neutral 0.5, speech present:
	// 0.30 + 0.125 + 0.125 + 0.14 = 0.69, just under the threshold.
	if math.Abs(result.Confidence-0.69) > 1e-9 {
		t.Fatalf("confidence = %v, want 0.69", result.Confidence)
	}
	if result.Authentic {
		t.Fatalf("expected inauthentic verdict at 0.69 confidence")
	}
	if len(result.Anomalies) != 1 || !strings.Contains(result.Anomalies[0], "face diverges (50%)") {
		t.Fatalf("unexpected anomalies %v", result.Anomalies)
	}
}

func TestVerifyPrefersStoredMeanAggregate(t *testing.T) {
	extractor := matchingExtractor()
	extractor.voice = []extract.VoiceSample{{Vector: []float32{0, 1}, Start: 0, End: 1}}
	engine, st, user, session := newEngine(t, &stubDecoder{clip: testClip(true)}, extractor)
	seedProfile(t, st, user.ID, session.ID)

	// The raw rows all sit at (0.6, 0.8); the stored aggregate points
	// elsewhere. A recomputed mean would score the clip at 0.8.
	if _, err := st.InsertEmbedding(context.Background(), &store.Embedding{
		UserID:    user.ID,
		SessionID: session.ID,
		Type:      store.EmbeddingVoice,
		Vector:    []float32{0, 1},
		Metadata:  &store.Metadata{Type: store.MetadataMean},
	}); err != nil {
		t.Fatalf("seed mean aggregate: %v", err)
	}

	result, err := engine.Verify(context.Background(), user.ID, []byte("clip"), "clip.webm")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got := result.Breakdown["voice_match"]; math.Abs(got-1) > 1e-9 {
		t.Fatalf("voice_match = %v, want 1.0 against the stored aggregate", got)
	}
}

func TestHistoryNewestFirstWithDefaultLimit(t *testing.T) {
	engine, st, user, _ := newEngine(t, &stubDecoder{clip: testClip(true)}, matchingExtractor())
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := st.InsertVerification(ctx, &store.Verification{
			UserID:      user.ID,
			ContentHash: "hash",
			Authentic:   i%2 == 0,
			Confidence:  0.5 + float64(i)/10,
			VerifiedAt:  base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("insert verification: %v", err)
		}
	}

	history, err := engine.History(ctx, user.ID, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(history))
	}
	if !history[0].VerifiedAt.After(history[1].VerifiedAt) {
		t.Fatalf("history not newest first: %v", history)
	}
	if math.Abs(history[0].Confidence-0.7) > 1e-9 {
		t.Fatalf("newest confidence = %v, want 0.7", history[0].Confidence)
	}
}
