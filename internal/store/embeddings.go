package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// InsertEmbedding stores one vector with its metadata and returns the row id.
func (s *Store) InsertEmbedding(ctx context.Context, emb *Embedding) (int64, error) {
	if emb == nil {
		return 0, errors.New("embedding is nil")
	}
	if len(emb.Vector) == 0 {
		return 0, errors.New("embedding vector is empty")
	}

	var metadataJSON any
	if emb.Metadata != nil {
		encoded, err := json.Marshal(emb.Metadata)
		if err != nil {
			return 0, fmt.Errorf("marshal metadata: %w", err)
		}
		metadataJSON = string(encoded)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO embeddings (user_id, session_id, embedding_type, vector, metadata, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		emb.UserID,
		emb.SessionID,
		emb.Type,
		EncodeVector(emb.Vector),
		metadataJSON,
		timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("insert embedding: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// ListEmbeddings returns a user's embeddings of one type ordered by insertion.
func (s *Store) ListEmbeddings(ctx context.Context, userID string, embType EmbeddingType) ([]*Embedding, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+embeddingColumns+` FROM embeddings WHERE user_id = ? AND embedding_type = ? ORDER BY id`,
		userID,
		embType,
	)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings []*Embedding
	for rows.Next() {
		emb, err := scanEmbedding(rows)
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, emb)
	}
	return embeddings, rows.Err()
}

// CountEmbeddingsByType returns per-modality row counts for a user. Counts
// include aggregate rows.
func (s *Store) CountEmbeddingsByType(ctx context.Context, userID string) (map[EmbeddingType]int, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT embedding_type, COUNT(1) FROM embeddings WHERE user_id = ? GROUP BY embedding_type`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("count embeddings: %w", err)
	}
	defer rows.Close()

	counts := make(map[EmbeddingType]int)
	for rows.Next() {
		var embType EmbeddingType
		var count int
		if err := rows.Scan(&embType, &count); err != nil {
			return nil, err
		}
		counts[embType] = count
	}
	return counts, rows.Err()
}

const embeddingColumns = "id, user_id, session_id, embedding_type, vector, metadata, created_at"

func scanEmbedding(scanner interface{ Scan(dest ...any) error }) (*Embedding, error) {
	var (
		id          int64
		userID      string
		sessionID   string
		typeStr     string
		vectorBytes []byte
		metadataRaw sql.NullString
		createdRaw  string
	)
	if err := scanner.Scan(&id, &userID, &sessionID, &typeStr, &vectorBytes, &metadataRaw, &createdRaw); err != nil {
		return nil, err
	}

	vector, err := DecodeVector(vectorBytes)
	if err != nil {
		return nil, fmt.Errorf("decode vector for embedding %d: %w", id, err)
	}

	emb := &Embedding{
		ID:        id,
		UserID:    userID,
		SessionID: sessionID,
		Type:      EmbeddingType(typeStr),
		Vector:    vector,
	}
	if metadataRaw.Valid && metadataRaw.String != "" {
		meta := &Metadata{}
		if err := json.Unmarshal([]byte(metadataRaw.String), meta); err != nil {
			return nil, fmt.Errorf("decode metadata for embedding %d: %w", id, err)
		}
		emb.Metadata = meta
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		emb.CreatedAt = created
	}
	return emb, nil
}
