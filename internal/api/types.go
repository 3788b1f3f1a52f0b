package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ErrorResponse is the uniform error payload for non-2xx responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse answers liveness probes.
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool               `json:"running"`
	PID            int                `json:"pid"`
	UptimeSeconds  float64            `json:"uptime_seconds"`
	DatabasePath   string             `json:"database_path"`
	LockFilePath   string             `json:"lock_file_path"`
	ActiveSessions int                `json:"active_sessions"`
	Dependencies   []DependencyStatus `json:"dependencies"`
}

// DatabaseHealthResponse reports profile database diagnostics.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	TablesPresent    []string `json:"tables_present"`
	MissingTables    []string `json:"missing_tables"`
	IntegrityCheck   bool     `json:"integrity_check"`
	UserCount        int      `json:"user_count"`
	EmbeddingCount   int      `json:"embedding_count"`
	Error            string   `json:"error,omitempty"`
}

// EnrollStartRequest identifies or creates the enrolling user. Either an
// existing user_id or an email is required; name is only needed when the
// email is new.
type EnrollStartRequest struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

// EnrollStartResponse carries the identifiers needed to stream chunks.
type EnrollStartResponse struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// EnrollChunkRequest submits one recorded chunk, base64-encoded.
type EnrollChunkRequest struct {
	SessionID string `json:"session_id"`
	Data      string `json:"data"`
}

// ChunkResponse reports what one chunk contributed to the session. A soft
// extraction failure sets success=false and error while the session stays
// open for further chunks.
type ChunkResponse struct {
	Success         bool     `json:"success"`
	Error           string   `json:"error,omitempty"`
	VoiceEmbeddings int      `json:"voice_embeddings"`
	FaceEmbeddings  int      `json:"face_embeddings"`
	SpeechDuration  float64  `json:"speech_duration"`
	SyncScore       *float64 `json:"sync_score,omitempty"`
}

// EnrollCompleteRequest finalizes a session.
type EnrollCompleteRequest struct {
	SessionID string `json:"session_id"`
}

// EmbeddingCounts breaks down collected embeddings by modality.
type EmbeddingCounts struct {
	Voice int `json:"voice"`
	Face  int `json:"face"`
	Sync  int `json:"sync"`
}

// CompletionResponse summarizes a finalized enrollment session.
type CompletionResponse struct {
	SessionID       string          `json:"session_id"`
	UserID          string          `json:"user_id"`
	ProfileStrength float64         `json:"profile_strength"`
	DurationSeconds float64         `json:"duration_seconds"`
	Embeddings      EmbeddingCounts `json:"embeddings_collected"`
	EmotionCoverage map[string]int  `json:"emotion_coverage"`
	SpeechDuration  float64         `json:"speech_duration"`
}

// StrengthResponse reports profile strength across all completed sessions.
type StrengthResponse struct {
	StrengthScore     float64            `json:"strength_score"`
	SessionsCount     int                `json:"sessions_count"`
	FeatureCoverage   map[string]float64 `json:"feature_coverage"`
	TotalVoiceSamples int                `json:"total_voice_samples,omitempty"`
	TotalFaceSamples  int                `json:"total_face_samples,omitempty"`
	LastUpdated       string             `json:"last_updated,omitempty"`
}

// AnalysisDetails describes the evidence behind a verification verdict.
type AnalysisDetails struct {
	VoiceSamplesCompared int     `json:"voice_samples_compared"`
	FaceSamplesCompared  int     `json:"face_samples_compared"`
	ProfileStrength      float64 `json:"profile_strength"`
	TestDuration         float64 `json:"test_duration"`
}

// VerifyResponse is the full verification verdict.
type VerifyResponse struct {
	VerificationID  string             `json:"verification_id"`
	Authentic       bool               `json:"authentic"`
	Confidence      float64            `json:"confidence"`
	Breakdown       map[string]float64 `json:"breakdown"`
	Anomalies       []string           `json:"anomalies"`
	AnalysisDetails AnalysisDetails    `json:"analysis_details"`
	VerifiedAt      string             `json:"verified_at"`
}

// LogTailResponse carries daemon log lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// HistoryItem is one past verification in a user's history.
type HistoryItem struct {
	ID         string  `json:"id"`
	VerifiedAt string  `json:"verified_at"`
	Authentic  bool    `json:"authentic"`
	Confidence float64 `json:"confidence"`
}

// HistoryResponse wraps a user's verification history, newest first.
type HistoryResponse struct {
	Verifications []HistoryItem `json:"verifications"`
}
