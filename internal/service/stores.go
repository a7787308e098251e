package service

import (
	"context"

	"github.com/qrengage/docpipe/internal/model"
)

// Store interfaces consumed by the services; the repo package implements
// them over postgres.

type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	Get(ctx context.Context, tenantID, docID string) (*model.Document, error)
	List(ctx context.Context, tenantID string, limit int) ([]model.Document, error)
	UpdateStatus(ctx context.Context, tenantID, docID, status, errMsg string, mtime int64) error
	Delete(ctx context.Context, tenantID, docID string) error
}

type ChunkStore interface {
	Upsert(ctx context.Context, chunk *model.Chunk) error
	Get(ctx context.Context, docID, contentHash string) (*model.Chunk, error)
	SetEmbedding(ctx context.Context, chunkID string, embedding []float32) error
	ListIncomplete(ctx context.Context, limit int) ([]model.Chunk, error)
	CountByDocument(ctx context.Context, docID string) (int, error)
	NearestNeighbors(ctx context.Context, tenantID string, queryVec []float32, documentID string, threshold float32, count int) ([]model.ChunkMatch, error)
}

type JobStore interface {
	Create(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, jobID string) (*model.Job, error)
	GetActiveByDocument(ctx context.Context, docID string) (*model.Job, error)
	GetLatestByDocument(ctx context.Context, docID string) (*model.Job, error)
	MarkStarted(ctx context.Context, jobID string, now int64) (bool, error)
	UpdateStage(ctx context.Context, jobID, stage string, mtime int64) error
	UpdateProgress(ctx context.Context, jobID string, processed, total int, mtime int64) error
	MarkTerminal(ctx context.Context, jobID, status, stage, errMsg string, now int64) (bool, error)
	RequeueStale(ctx context.Context, cutoff int64, now int64) ([]model.Job, error)
}
