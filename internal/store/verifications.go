package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertVerification stores the outcome of a verification attempt and
// returns the assigned identifier.
func (s *Store) InsertVerification(ctx context.Context, v *Verification) (string, error) {
	if v == nil {
		return "", errors.New("verification is nil")
	}
	if v.UserID == "" {
		return "", errors.New("verification user id is required")
	}

	breakdown := v.Breakdown
	if breakdown == nil {
		breakdown = map[string]float64{}
	}
	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return "", fmt.Errorf("marshal breakdown: %w", err)
	}
	anomalies := v.Anomalies
	if anomalies == nil {
		anomalies = []string{}
	}
	anomaliesJSON, err := json.Marshal(anomalies)
	if err != nil {
		return "", fmt.Errorf("marshal anomalies: %w", err)
	}

	id := uuid.NewString()
	verifiedAt := v.VerifiedAt
	if verifiedAt.IsZero() {
		verifiedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO verifications (id, user_id, content_hash, authentic, confidence, breakdown, anomalies, verified_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		v.UserID,
		v.ContentHash,
		boolToInt(v.Authentic),
		v.Confidence,
		string(breakdownJSON),
		string(anomaliesJSON),
		verifiedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert verification: %w", err)
	}
	return id, nil
}

// ListVerifications returns a user's verification history, newest first,
// capped at limit. A limit <= 0 returns the full history.
func (s *Store) ListVerifications(ctx context.Context, userID string, limit int) ([]*Verification, error) {
	query := `SELECT ` + verificationColumns + ` FROM verifications WHERE user_id = ? ORDER BY verified_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	defer rows.Close()

	var verifications []*Verification
	for rows.Next() {
		var (
			id           string
			uid          string
			contentHash  string
			authentic    int
			confidence   float64
			breakdownRaw string
			anomaliesRaw string
			verifiedRaw  string
		)
		if err := rows.Scan(&id, &uid, &contentHash, &authentic, &confidence, &breakdownRaw, &anomaliesRaw, &verifiedRaw); err != nil {
			return nil, err
		}

		v := &Verification{
			ID:          id,
			UserID:      uid,
			ContentHash: contentHash,
			Authentic:   authentic != 0,
			Confidence:  confidence,
		}
		if err := json.Unmarshal([]byte(breakdownRaw), &v.Breakdown); err != nil {
			return nil, fmt.Errorf("decode breakdown for verification %s: %w", id, err)
		}
		if err := json.Unmarshal([]byte(anomaliesRaw), &v.Anomalies); err != nil {
			return nil, fmt.Errorf("decode anomalies for verification %s: %w", id, err)
		}
		if verified, err := parseTimeString(verifiedRaw); err == nil {
			v.VerifiedAt = verified
		}
		verifications = append(verifications, v)
	}
	return verifications, rows.Err()
}
