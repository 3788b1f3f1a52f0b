package daemon

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"likeness/internal/api"
	"likeness/internal/config"
	"likeness/internal/enroll"
	"likeness/internal/logging"
	"likeness/internal/logs"
	"likeness/internal/services"
)

// maxUploadBytes caps enrollment chunks and verification uploads.
const maxUploadBytes = 64 << 20

// defaultLogLines bounds a log tail request that carries no limit.
const defaultLogLines = 200

// maxLogWaitMillis caps the /api/logs long poll so requests finish well
// inside the server write timeout.
const maxLogWaitMillis = 30000

type apiServer struct {
	bind    string
	token   string
	logPath string
	logger  *slog.Logger
	daemon  *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:    bind,
		token:   strings.TrimSpace(cfg.Paths.APIToken),
		logPath: logging.FilePath(cfg),
		logger:  logger,
		daemon:  d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.HandleFunc("/api/status", srv.authorized(srv.handleStatus))
	mux.HandleFunc("/api/db/health", srv.authorized(srv.handleDatabaseHealth))
	mux.HandleFunc("/api/enroll/start", srv.authorized(srv.handleEnrollStart))
	mux.HandleFunc("/api/enroll/chunk", srv.authorized(srv.handleEnrollChunk))
	mux.HandleFunc("/api/enroll/complete", srv.authorized(srv.handleEnrollComplete))
	mux.HandleFunc("/api/profile/strength", srv.authorized(srv.handleStrength))
	mux.HandleFunc("/api/verify", srv.authorized(srv.handleVerify))
	mux.HandleFunc("/api/verify/history", srv.authorized(srv.handleHistory))
	mux.HandleFunc("/api/logs", srv.authorized(srv.handleLogs))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		// Chunk processing and verification run model inference inline, so
		// write timeouts stay generous.
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return srv, nil
}

// requestContext tags the request with a correlation identifier so log
// lines emitted while processing it can be traced back to one API call.
func requestContext(r *http.Request) context.Context {
	return services.WithRequestID(r.Context(), uuid.NewString())
}

// authorized validates bearer tokens when one is configured. The health
// endpoint stays open so liveness probes work without credentials.
func (s *apiServer) authorized(next http.HandlerFunc) http.HandlerFunc {
	if s.token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.token {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, api.HealthResponse{
		Status:    "ok",
		Service:   "likeness",
		Timestamp: api.FormatTime(time.Now()),
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status()
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:        status.Running,
		PID:            status.PID,
		UptimeSeconds:  status.UptimeSeconds,
		DatabasePath:   status.DatabasePath,
		LockFilePath:   status.LockFilePath,
		ActiveSessions: status.ActiveSessions,
		Dependencies:   api.FromDependencyStatuses(status.Dependencies),
	})
}

func (s *apiServer) handleDatabaseHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	health, err := s.daemon.DatabaseHealth(r.Context())
	// Partial diagnostics still go out so the operator sees what failed.
	if err != nil && health.Error == "" {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromDatabaseHealth(health))
}

func (s *apiServer) handleEnrollStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.EnrollStartRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.daemon.coordinator.Start(requestContext(r), enroll.StartRequest{
		UserID: req.UserID,
		Email:  req.Email,
		Name:   req.Name,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.EnrollStartResponse{
		SessionID: result.SessionID,
		UserID:    result.UserID,
	})
}

func (s *apiServer) handleEnrollChunk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.EnrollChunkRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	chunk, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "chunk data is not valid base64")
		return
	}

	result, err := s.daemon.coordinator.ProcessChunk(requestContext(r), req.SessionID, chunk)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromChunkResult(result))
}

func (s *apiServer) handleEnrollComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.EnrollCompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := requestContext(r)
	summary, err := s.daemon.coordinator.Complete(ctx, req.SessionID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.notifyEnrollment(ctx, summary)
	s.writeJSON(w, http.StatusOK, api.FromCompletionSummary(summary))
}

func (s *apiServer) handleStrength(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	report, err := s.daemon.coordinator.ProfileStrength(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromStrengthReport(report))
}

func (s *apiServer) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}
	userID := strings.TrimSpace(r.FormValue("user_id"))
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "file upload is required")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read upload")
		return
	}

	ctx := requestContext(r)
	result, err := s.daemon.engine.Verify(ctx, userID, content, header.Filename)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.notifyVerification(ctx, userID, result.Authentic, result.Confidence)
	s.writeJSON(w, http.StatusOK, api.FromVerifyResult(result))
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	userID := strings.TrimSpace(query.Get("user_id"))
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	limit := 0
	if value := strings.TrimSpace(query.Get("limit")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	history, err := s.daemon.engine.History(r.Context(), userID, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromVerifySummaries(history))
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.logPath == "" {
		s.writeError(w, http.StatusNotFound, "no log directory configured")
		return
	}

	query := r.URL.Query()
	opts := logs.TailOptions{Offset: -1, Limit: defaultLogLines}
	if value := strings.TrimSpace(query.Get("offset")); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "offset must be an integer")
			return
		}
		opts.Offset = parsed
	}
	if value := strings.TrimSpace(query.Get("limit")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		opts.Limit = parsed
	}
	if value := strings.TrimSpace(query.Get("wait_ms")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "wait_ms must be a non-negative integer")
			return
		}
		if parsed > maxLogWaitMillis {
			parsed = maxLogWaitMillis
		}
		opts.Wait = time.Duration(parsed) * time.Millisecond
	}

	result, err := logs.Tail(r.Context(), s.logPath, opts)
	if err != nil {
		// The client went away mid-poll; nothing to write.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	lines := result.Lines
	if lines == nil {
		lines = []string{}
	}
	s.writeJSON(w, http.StatusOK, api.LogTailResponse{Lines: lines, Offset: result.Offset})
}

func (s *apiServer) notifyEnrollment(ctx context.Context, summary *enroll.CompletionSummary) {
	if summary == nil {
		return
	}
	name := summary.UserID
	if user, err := s.daemon.store.GetUser(ctx, summary.UserID); err == nil && user != nil && user.Name != "" {
		name = user.Name
	}
	if err := s.daemon.notifier.NotifyEnrollmentCompleted(ctx, name, summary.ProfileStrength); err != nil {
		s.log().Warn("enrollment notification failed", logging.Error(err))
	}
}

func (s *apiServer) notifyVerification(ctx context.Context, userID string, authentic bool, confidence float64) {
	name := userID
	if user, err := s.daemon.store.GetUser(ctx, userID); err == nil && user != nil && user.Name != "" {
		name = user.Name
	}
	if err := s.daemon.notifier.NotifyVerificationCompleted(ctx, name, authentic, confidence); err != nil {
		s.log().Warn("verification notification failed", logging.Error(err))
	}
}

func decodeJSON(r *http.Request, out any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes))
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	s.writeError(w, services.HTTPStatus(err), err.Error())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
