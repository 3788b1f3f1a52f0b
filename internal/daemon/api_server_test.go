package daemon

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"likeness/internal/api"
	"likeness/internal/config"
	"likeness/internal/enroll"
	"likeness/internal/extract"
	"likeness/internal/logging"
	"likeness/internal/media"
	"likeness/internal/notifications"
	"likeness/internal/store"
	"likeness/internal/testsupport"
	"likeness/internal/vad"
	"likeness/internal/verify"
)

type stubDecoder struct {
	clip *media.Clip
}

func (d *stubDecoder) Decode(context.Context, string) (*media.Clip, error) {
	return d.clip, nil
}

type stubDetector struct{}

func (stubDetector) DetectSpeech(samples []float32) []vad.Interval {
	if len(samples) == 0 {
		return nil
	}
	return []vad.Interval{{Start: 0, End: 1}}
}

type stubExtractor struct{}

func (stubExtractor) ExtractSegments(context.Context, []float32, int, []vad.Interval) ([]extract.VoiceSample, error) {
	return []extract.VoiceSample{{Vector: []float32{0.6, 0.8}, Start: 0, End: 1}}, nil
}

func (stubExtractor) ExtractFrames(_ context.Context, frames []media.Frame, _ bool) ([]extract.FaceSample, error) {
	samples := make([]extract.FaceSample, 0, len(frames))
	for _, frame := range frames {
		samples = append(samples, extract.FaceSample{Vector: []float32{1, 0}, Timestamp: frame.Timestamp, Emotion: "neutral", Score: 0.9})
	}
	return samples, nil
}

func (stubExtractor) Analyze(context.Context, []media.Frame, []float32, int) (extract.SyncAnalysis, error) {
	return extract.SyncAnalysis{Score: 0.6, FrameScores: []float64{0.6}}, nil
}

func testClip() *media.Clip {
	return &media.Clip{
		PCM:        testsupport.Sine(440, 0.5, 1.0, 16000),
		SampleRate: 16000,
		Frames: []media.Frame{
			{JPEG: []byte{0xff, 0xd8, 0xff, 0xd9}, Timestamp: 0.0},
			{JPEG: []byte{0xff, 0xd8, 0xff, 0xd9}, Timestamp: 0.5},
		},
		Duration: 1.0,
	}
}

func newTestServer(t *testing.T, token string) (*apiServer, *store.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(token))
	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	decoder := &stubDecoder{clip: testClip()}
	coordinator := enroll.NewCoordinator(cfg, st, decoder, stubDetector{}, stubExtractor{}, logger)
	engine := verify.NewEngine(cfg, st, decoder, stubDetector{}, stubExtractor{}, logger)
	d, err := New(cfg, st, coordinator, engine, notifications.NewService(cfg), logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		t.Fatalf("newAPIServer: %v", err)
	}
	if srv == nil {
		t.Fatal("expected api server")
	}
	return srv, st, cfg
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestAPIServerHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Service != "likeness" {
		t.Fatalf("unexpected health payload: %+v", resp)
	}
}

func TestAPIServerAuthRejectsMissingToken(t *testing.T) {
	srv, _, _ := newTestServer(t, "secret")

	handler := srv.authorized(srv.handleStatus)
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	var resp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error != "unauthorized" {
		t.Fatalf("unexpected error message: %q", resp.Error)
	}
}

func TestAPIServerAuthAcceptsBearerToken(t *testing.T) {
	srv, _, _ := newTestServer(t, "secret")

	handler := srv.authorized(srv.handleStatus)
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	handler(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp api.DaemonStatus
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Running {
		t.Fatal("daemon should not report running before Start")
	}
	if len(resp.Dependencies) == 0 {
		t.Fatal("expected dependency statuses")
	}
}

func TestAPIServerDatabaseHealth(t *testing.T) {
	srv, st, _ := newTestServer(t, "")

	user := testsupport.NewUser(t, st, "Ada", "ada@example.com")
	session := testsupport.NewSession(t, st, user.ID)
	if _, err := st.InsertEmbedding(context.Background(), &store.Embedding{
		UserID:    user.ID,
		SessionID: session.ID,
		Type:      store.EmbeddingVoice,
		Vector:    []float32{0.6, 0.8},
		Metadata:  &store.Metadata{Timestamp: 0},
	}); err != nil {
		t.Fatalf("insert embedding: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/db/health", nil)
	w := httptest.NewRecorder()
	srv.handleDatabaseHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.DatabaseHealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if !resp.DatabaseExists || !resp.DatabaseReadable || !resp.IntegrityCheck {
		t.Fatalf("unexpected database health: %+v", resp)
	}
	if len(resp.TablesPresent) != 4 || len(resp.MissingTables) != 0 {
		t.Fatalf("unexpected table report: %+v", resp)
	}
	if resp.UserCount != 1 || resp.EmbeddingCount != 1 {
		t.Fatalf("unexpected row counts: %+v", resp)
	}
	if resp.DBPath == "" {
		t.Fatal("expected a database path")
	}
}

func TestAPIServerEnrollmentFlow(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	start := postJSON(t, srv.handleEnrollStart, "/api/enroll/start", api.EnrollStartRequest{
		Email: "ada@example.com",
		Name:  "Ada",
	})
	if start.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", start.Code, start.Body.String())
	}
	var started api.EnrollStartResponse
	if err := json.Unmarshal(start.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	if started.SessionID == "" || started.UserID == "" {
		t.Fatalf("start response missing identifiers: %+v", started)
	}

	chunk := postJSON(t, srv.handleEnrollChunk, "/api/enroll/chunk", api.EnrollChunkRequest{
		SessionID: started.SessionID,
		Data:      base64.StdEncoding.EncodeToString([]byte("webm-bytes")),
	})
	if chunk.Code != http.StatusOK {
		t.Fatalf("chunk: expected 200, got %d: %s", chunk.Code, chunk.Body.String())
	}
	var chunkResp api.ChunkResponse
	if err := json.Unmarshal(chunk.Body.Bytes(), &chunkResp); err != nil {
		t.Fatalf("decode chunk response: %v", err)
	}
	if !chunkResp.Success {
		t.Fatalf("chunk not successful: %+v", chunkResp)
	}
	if chunkResp.VoiceEmbeddings != 1 || chunkResp.FaceEmbeddings != 2 {
		t.Fatalf("unexpected embedding counts: %+v", chunkResp)
	}

	complete := postJSON(t, srv.handleEnrollComplete, "/api/enroll/complete", api.EnrollCompleteRequest{
		SessionID: started.SessionID,
	})
	if complete.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d: %s", complete.Code, complete.Body.String())
	}
	var completed api.CompletionResponse
	if err := json.Unmarshal(complete.Body.Bytes(), &completed); err != nil {
		t.Fatalf("decode completion response: %v", err)
	}
	if completed.SessionID != started.SessionID {
		t.Fatalf("completion session mismatch: %q", completed.SessionID)
	}
	if completed.ProfileStrength <= 0 {
		t.Fatalf("expected positive profile strength, got %v", completed.ProfileStrength)
	}

	strengthReq := httptest.NewRequest(http.MethodGet, "/api/profile/strength?user_id="+started.UserID, nil)
	strength := httptest.NewRecorder()
	srv.handleStrength(strength, strengthReq)
	if strength.Code != http.StatusOK {
		t.Fatalf("strength: expected 200, got %d: %s", strength.Code, strength.Body.String())
	}
	var report api.StrengthResponse
	if err := json.Unmarshal(strength.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode strength response: %v", err)
	}
	if report.SessionsCount != 1 {
		t.Fatalf("expected 1 completed session, got %d", report.SessionsCount)
	}
	if report.StrengthScore <= 0 {
		t.Fatalf("expected positive strength score, got %v", report.StrengthScore)
	}
}

func TestAPIServerChunkRejectsInvalidBase64(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	w := postJSON(t, srv.handleEnrollChunk, "/api/enroll/chunk", api.EnrollChunkRequest{
		SessionID: "whatever",
		Data:      "not base64!!!",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "base64") {
		t.Fatalf("unexpected error body: %s", w.Body.String())
	}
}

func TestAPIServerStrengthRequiresUserID(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/profile/strength", nil)
	w := httptest.NewRecorder()
	srv.handleStrength(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAPIServerVerifyUnknownUserReturnsNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("user_id", "missing-user"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	part, err := writer.CreateFormFile("file", "clip.webm")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("webm-bytes")); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/verify", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	srv.handleVerify(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAPIServerVerifyAfterEnrollment(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	start := postJSON(t, srv.handleEnrollStart, "/api/enroll/start", api.EnrollStartRequest{
		Email: "ada@example.com",
		Name:  "Ada",
	})
	var started api.EnrollStartResponse
	if err := json.Unmarshal(start.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode start response: %v", err)
	}
	chunk := postJSON(t, srv.handleEnrollChunk, "/api/enroll/chunk", api.EnrollChunkRequest{
		SessionID: started.SessionID,
		Data:      base64.StdEncoding.EncodeToString([]byte("webm-bytes")),
	})
	if chunk.Code != http.StatusOK {
		t.Fatalf("chunk: expected 200, got %d", chunk.Code)
	}
	complete := postJSON(t, srv.handleEnrollComplete, "/api/enroll/complete", api.EnrollCompleteRequest{
		SessionID: started.SessionID,
	})
	if complete.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d", complete.Code)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("user_id", started.UserID); err != nil {
		t.Fatalf("write field: %v", err)
	}
	part, err := writer.CreateFormFile("file", "clip.webm")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("webm-bytes")); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/verify", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	srv.handleVerify(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.VerifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if resp.VerificationID == "" {
		t.Fatal("expected verification id")
	}
	if !resp.Authentic {
		t.Fatalf("expected authentic result, got %+v", resp)
	}
	if resp.Anomalies == nil {
		t.Fatal("anomalies should serialize as an array")
	}

	histReq := httptest.NewRequest(http.MethodGet, "/api/verify/history?user_id="+started.UserID, nil)
	hist := httptest.NewRecorder()
	srv.handleHistory(hist, histReq)
	if hist.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", hist.Code)
	}
	var history api.HistoryResponse
	if err := json.Unmarshal(hist.Body.Bytes(), &history); err != nil {
		t.Fatalf("decode history response: %v", err)
	}
	if len(history.Verifications) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(history.Verifications))
	}
	if history.Verifications[0].ID != resp.VerificationID {
		t.Fatalf("history id mismatch: %q vs %q", history.Verifications[0].ID, resp.VerificationID)
	}
}

func TestAPIServerMethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/enroll/start", nil)
	w := httptest.NewRecorder()
	srv.handleEnrollStart(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestAPIServerLogsTailAndResume(t *testing.T) {
	srv, _, cfg := newTestServer(t, "")

	logPath := logging.FilePath(cfg)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	content := "alpha\nbeta\ngamma\n"
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/logs?offset=-1&limit=2", nil)
	w := httptest.NewRecorder()
	srv.handleLogs(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.LogTailResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode logs response: %v", err)
	}
	if len(resp.Lines) != 2 || resp.Lines[0] != "beta" || resp.Lines[1] != "gamma" {
		t.Fatalf("unexpected tail lines: %v", resp.Lines)
	}
	if resp.Offset != int64(len(content)) {
		t.Fatalf("expected offset %d, got %d", len(content), resp.Offset)
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log for append: %v", err)
	}
	if _, err := f.WriteString("delta\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close log: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/logs?offset=%d", resp.Offset), nil)
	w = httptest.NewRecorder()
	srv.handleLogs(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("resume: expected 200, got %d", w.Code)
	}
	var next api.LogTailResponse
	if err := json.Unmarshal(w.Body.Bytes(), &next); err != nil {
		t.Fatalf("decode resume response: %v", err)
	}
	if len(next.Lines) != 1 || next.Lines[0] != "delta" {
		t.Fatalf("expected only the appended line, got %v", next.Lines)
	}
}

func TestAPIServerLogsEmptyFileReturnsArray(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	w := httptest.NewRecorder()
	srv.handleLogs(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"lines":[]`) {
		t.Fatalf("lines should serialize as an empty array: %s", w.Body.String())
	}
}

func TestAPIServerLogsRejectsBadParams(t *testing.T) {
	srv, _, _ := newTestServer(t, "")

	for _, query := range []string{"offset=abc", "limit=-1", "wait_ms=soon"} {
		req := httptest.NewRequest(http.MethodGet, "/api/logs?"+query, nil)
		w := httptest.NewRecorder()
		srv.handleLogs(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, w.Code)
		}
	}
}
