package retrieval

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
)

// Chunk is a tenant-scoped knowledge fragment returned by search.
type Chunk struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenant_id"`
	SourceURL   string         `json:"source_url"`
	SourceTitle string         `json:"source_title"`
	Text        string         `json:"text"`
	Index       int            `json:"index"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Similarity  float64        `json:"similarity"`
}

// Store runs tenant-scoped chunk queries against Postgres.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// VectorSearch returns the limit nearest chunks by cosine distance, each
// annotated with its similarity score. Threshold filtering happens in the
// engine so the top-N fallback can reuse the same rows.
func (s *Store) VectorSearch(ctx context.Context, tenantID string, embedding []float32, limit int) ([]Chunk, error) {
	if tenantID == "" {
		return nil, errors.New("tenant id is required")
	}
	if len(embedding) == 0 {
		return nil, errors.New("embedding is required")
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id,
			tenant_id,
			source_url,
			source_title,
			chunk_text,
			chunk_index,
			metadata,
			1 - (embedding <=> $2) AS similarity
		FROM omniops.knowledge_chunks
		WHERE tenant_id = $1
		ORDER BY embedding <=> $2
		LIMIT $3
	`, tenantID, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// KeywordSearch runs Postgres full-text search over the tenant's chunks,
// ranked by ts_rank. Similarity carries the rank so callers see one score
// field for both paths.
func (s *Store) KeywordSearch(ctx context.Context, tenantID, query string, limit int) ([]Chunk, error) {
	if tenantID == "" {
		return nil, errors.New("tenant id is required")
	}
	if query == "" {
		return nil, errors.New("query is required")
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id,
			tenant_id,
			source_url,
			source_title,
			chunk_text,
			chunk_index,
			metadata,
			ts_rank(to_tsvector('english', chunk_text), plainto_tsquery('english', $2)) AS similarity
		FROM omniops.knowledge_chunks
		WHERE tenant_id = $1
		  AND to_tsvector('english', chunk_text) @@ plainto_tsquery('english', $2)
		ORDER BY similarity DESC
		LIMIT $3
	`, tenantID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]Chunk, error) {
	var chunks []Chunk
	for rows.Next() {
		var chunk Chunk
		var metadataBytes []byte
		if err := rows.Scan(
			&chunk.ID,
			&chunk.TenantID,
			&chunk.SourceURL,
			&chunk.SourceTitle,
			&chunk.Text,
			&chunk.Index,
			&metadataBytes,
			&chunk.Similarity,
		); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if len(metadataBytes) > 0 {
			if err := json.Unmarshal(metadataBytes, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("decode chunk metadata: %w", err)
			}
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, nil
}
