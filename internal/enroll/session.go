package enroll

import (
	"sync"
	"time"

	"likeness/internal/extract"
)

// Session tracks the in-memory state of one active enrollment. All mutable
// fields are guarded by mu; ProcessChunk and Complete hold it for their full
// duration so accumulation is sequential per session.
type Session struct {
	ID        string
	UserID    string
	StartedAt time.Time

	mu             sync.Mutex
	chunks         int
	voiceVectors   [][]float32
	faceSamples    []extract.FaceSample
	syncScores     []float64
	emotions       []string
	speechDuration float64
	framesSeen     int
}

func newSession(id, userID string, startedAt time.Time) *Session {
	return &Session{ID: id, UserID: userID, StartedAt: startedAt}
}

// Registry holds the live sessions keyed by session ID.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session, replacing any previous entry with the same ID.
func (r *Registry) Add(session *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
}

// Get returns the session with the given ID, if it is live.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	return session, ok
}

// Remove evicts a session from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len reports how many sessions are currently live.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
