package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/qrengage/docpipe/internal/model"
	appErr "github.com/qrengage/docpipe/internal/pkg/errors"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// Upsert inserts or replaces a chunk keyed by (document_id, content_hash).
// The write is a single statement, so a chunk is never half-written; racing
// writers converge on the last write.
func (r *ChunkRepo) Upsert(ctx context.Context, chunk *model.Chunk) error {
	metaJSON, err := json.Marshal(chunk.Metadata)
	if err != nil {
		return err
	}
	var embedding interface{}
	if chunk.Embedding != nil {
		embedding = pgvector.NewVector(chunk.Embedding)
	}
	const query = `
		INSERT INTO chunks (id, document_id, tenant_id, content, content_hash, embedding, token_count, metadata_json, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (document_id, content_hash) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			token_count = EXCLUDED.token_count,
			metadata_json = EXCLUDED.metadata_json
	`
	_, err = r.db.ExecContext(ctx, query,
		chunk.ID,
		chunk.DocumentID,
		chunk.TenantID,
		chunk.Content,
		chunk.ContentHash,
		embedding,
		chunk.TokenCount,
		string(metaJSON),
		chunk.Ctime,
	)
	return err
}

func (r *ChunkRepo) Get(ctx context.Context, docID, contentHash string) (*model.Chunk, error) {
	const query = `
		SELECT id, document_id, tenant_id, content, content_hash, embedding, token_count, metadata_json, ctime
		FROM chunks
		WHERE document_id = $1 AND content_hash = $2
	`
	row := r.db.QueryRowContext(ctx, query, docID, contentHash)
	chunk, err := scanChunk(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return chunk, nil
}

// SetEmbedding writes the vector back for a repaired chunk.
func (r *ChunkRepo) SetEmbedding(ctx context.Context, chunkID string, embedding []float32) error {
	const query = `UPDATE chunks SET embedding = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, pgvector.NewVector(embedding), chunkID)
	return err
}

// ListIncomplete returns chunks still missing a vector, oldest first, for
// the repair sweep.
func (r *ChunkRepo) ListIncomplete(ctx context.Context, limit int) ([]model.Chunk, error) {
	const query = `
		SELECT id, document_id, tenant_id, content, content_hash, embedding, token_count, metadata_json, ctime
		FROM chunks
		WHERE embedding IS NULL
		ORDER BY ctime ASC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chunks []model.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}
	return chunks, rows.Err()
}

func (r *ChunkRepo) CountByDocument(ctx context.Context, docID string) (int, error) {
	const query = `SELECT COUNT(*) FROM chunks WHERE document_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, docID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// NearestNeighbors ranks stored chunks by cosine similarity against the
// query vector. documentID narrows the search to one document when set.
// Ties on similarity break by content_hash so repeated queries return a
// stable order.
func (r *ChunkRepo) NearestNeighbors(ctx context.Context, tenantID string, queryVec []float32, documentID string, threshold float32, count int) ([]model.ChunkMatch, error) {
	vec := pgvector.NewVector(queryVec)
	query := `
		SELECT id, document_id, content, metadata_json, 1 - (embedding <=> $1) AS similarity
		FROM chunks
		WHERE tenant_id = $2 AND embedding IS NOT NULL
		  AND 1 - (embedding <=> $1) >= $3
	`
	args := []interface{}{vec, tenantID, threshold}
	if documentID != "" {
		query += ` AND document_id = $4`
		args = append(args, documentID)
	}
	query += fmt.Sprintf(` ORDER BY similarity DESC, content_hash ASC LIMIT $%d`, len(args)+1)
	args = append(args, count)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var matches []model.ChunkMatch
	for rows.Next() {
		var m model.ChunkMatch
		var metaJSON string
		if err := rows.Scan(&m.ChunkID, &m.DocumentID, &m.Content, &metaJSON, &m.Similarity); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(metaJSON), &m.Metadata)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func scanChunk(scan func(dest ...interface{}) error) (*model.Chunk, error) {
	var chunk model.Chunk
	var embedding *pgvector.Vector
	var metaJSON string
	if err := scan(&chunk.ID, &chunk.DocumentID, &chunk.TenantID, &chunk.Content,
		&chunk.ContentHash, &embedding, &chunk.TokenCount, &metaJSON, &chunk.Ctime); err != nil {
		return nil, err
	}
	if embedding != nil {
		chunk.Embedding = embedding.Slice()
	}
	_ = json.Unmarshal([]byte(metaJSON), &chunk.Metadata)
	return &chunk, nil
}

