package service

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/qrengage/docpipe/internal/ai"
)

// RepairService backfills embeddings for chunks whose generation failed
// during ingestion.
type RepairService struct {
	chunks    ChunkStore
	embedder  ai.IEmbedder
	batchSize int
}

func NewRepairService(chunks ChunkStore, embedder ai.IEmbedder, batchSize int) *RepairService {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &RepairService{chunks: chunks, embedder: embedder, batchSize: batchSize}
}

// Repair embeds up to one batch of vectorless chunks and reports how many
// it fixed. Per-chunk failures are logged and skipped so one bad chunk
// cannot stall the sweep; it simply stays eligible for the next run.
func (s *RepairService) Repair(ctx context.Context) (int, error) {
	logger := logutil.GetLogger(ctx)
	chunks, err := s.chunks.ListIncomplete(ctx, s.batchSize)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}
	repaired := 0
	for _, chunk := range chunks {
		vec, err := s.embedder.Embed(ctx, chunk.Content, ai.TaskRetrievalDocument)
		if err != nil {
			logger.Warn("repair embedding failed",
				zap.String("chunk_id", chunk.ID),
				zap.String("doc_id", chunk.DocumentID),
				zap.Error(err),
			)
			continue
		}
		if err := s.chunks.SetEmbedding(ctx, chunk.ID, vec); err != nil {
			logger.Error("failed to store repaired embedding",
				zap.String("chunk_id", chunk.ID), zap.Error(err))
			continue
		}
		repaired++
	}
	logger.Info("repair sweep finished",
		zap.Int("scanned", len(chunks)),
		zap.Int("repaired", repaired),
	)
	return repaired, nil
}
