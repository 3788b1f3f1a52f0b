package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateSession opens a new enrollment session for a user.
func (s *Store) CreateSession(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}

	id := uuid.NewString()
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO enrollment_sessions (id, user_id, status, started_at, chunks_received, duration_seconds)
         VALUES (?, ?, ?, ?, 0, 0)`,
		id,
		userID,
		SessionActive,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return s.GetSession(ctx, id)
}

// GetSession fetches a session by identifier. Returns nil when no session matches.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM enrollment_sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// UpdateSession persists changes to an existing session.
func (s *Store) UpdateSession(ctx context.Context, session *Session) error {
	if session == nil {
		return errors.New("session is nil")
	}
	if _, ok := sessionStatusSet[session.Status]; !ok {
		return fmt.Errorf("unknown session status %q", session.Status)
	}

	var emotionsJSON any
	if len(session.Emotions) > 0 {
		encoded, err := json.Marshal(session.Emotions)
		if err != nil {
			return fmt.Errorf("marshal emotions: %w", err)
		}
		emotionsJSON = string(encoded)
	}

	_, err := s.db.ExecContext(
		ctx,
		`UPDATE enrollment_sessions
         SET status = ?, completed_at = ?, chunks_received = ?, duration_seconds = ?, emotions = ?
         WHERE id = ?`,
		session.Status,
		nullableTime(session.CompletedAt),
		session.ChunksReceived,
		session.DurationSeconds,
		emotionsJSON,
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// ListSessions returns a user's sessions ordered by start time, optionally
// filtered by status.
func (s *Store) ListSessions(ctx context.Context, userID string, statuses ...SessionStatus) ([]*Session, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + sessionColumns + ` FROM enrollment_sessions WHERE user_id = ?`
	orderClause := ` ORDER BY started_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause, userID)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, 0, len(statuses)+1)
		args = append(args, userID)
		for _, status := range statuses {
			args = append(args, status)
		}
		query := baseQuery + ` AND status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

const sessionColumns = "id, user_id, status, started_at, completed_at, chunks_received, duration_seconds, emotions"

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id           string
		userID       string
		statusStr    string
		startedRaw   string
		completedRaw sql.NullString
		chunks       int
		duration     float64
		emotionsRaw  sql.NullString
	)
	if err := scanner.Scan(&id, &userID, &statusStr, &startedRaw, &completedRaw, &chunks, &duration, &emotionsRaw); err != nil {
		return nil, err
	}

	session := &Session{
		ID:              id,
		UserID:          userID,
		Status:          SessionStatus(statusStr),
		ChunksReceived:  chunks,
		DurationSeconds: duration,
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		session.StartedAt = started
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			session.CompletedAt = &completed
		}
	}
	if emotionsRaw.Valid && emotionsRaw.String != "" {
		if err := json.Unmarshal([]byte(emotionsRaw.String), &session.Emotions); err != nil {
			return nil, fmt.Errorf("decode emotions for session %s: %w", id, err)
		}
	}
	return session, nil
}
