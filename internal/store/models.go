package store

import "time"

// SessionStatus represents the lifecycle of an enrollment session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

var sessionStatusSet = map[SessionStatus]struct{}{
	SessionActive:    {},
	SessionCompleted: {},
	SessionFailed:    {},
}

// EmbeddingType identifies which modality an embedding row belongs to.
type EmbeddingType string

const (
	EmbeddingVoice EmbeddingType = "voice"
	EmbeddingFace  EmbeddingType = "face"
	EmbeddingSync  EmbeddingType = "sync"
)

// Metadata rides alongside an embedding vector as a JSON column. Aggregate
// rows carry Type "mean" or "baseline"; per-frame face rows carry the
// detected emotion and its score.
type Metadata struct {
	Type        string  `json:"type,omitempty"`
	Timestamp   float64 `json:"timestamp,omitempty"`
	Emotion     string  `json:"emotion,omitempty"`
	Score       float64 `json:"score,omitempty"`
	SampleCount int     `json:"sample_count,omitempty"`
	Mean        float64 `json:"mean,omitempty"`
	Std         float64 `json:"std,omitempty"`
}

// MetadataMean marks an aggregate row holding the mean vector for a modality.
const MetadataMean = "mean"

// MetadataBaseline marks the sync baseline row holding [mean, std].
const MetadataBaseline = "baseline"

// User is an enrolled or enrolling person.
type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// Session represents an enrollment session persisted in SQLite. Emotions
// holds the distinct expression labels covered by the session once completed.
type Session struct {
	ID              string
	UserID          string
	Status          SessionStatus
	StartedAt       time.Time
	CompletedAt     *time.Time
	ChunksReceived  int
	DurationSeconds float64
	Emotions        []string
}

// Embedding is one stored vector with its provenance.
type Embedding struct {
	ID        int64
	UserID    string
	SessionID string
	Type      EmbeddingType
	Vector    []float32
	Metadata  *Metadata
	CreatedAt time.Time
}

// Verification is the persisted outcome of one verification attempt.
type Verification struct {
	ID          string
	UserID      string
	ContentHash string
	Authentic   bool
	Confidence  float64
	Breakdown   map[string]float64
	Anomalies   []string
	VerifiedAt  time.Time
}

// DatabaseHealth captures diagnostic information about the profile database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TablesPresent    []string
	MissingTables    []string
	IntegrityCheck   bool
	UserCount        int
	EmbeddingCount   int
	Error            string
}
