package job

import (
	"context"

	"github.com/qrengage/docpipe/internal/service"
)

// ChunkRepairJob periodically backfills embeddings for chunks left
// vectorless by transient provider failures during ingestion.
type ChunkRepairJob struct {
	repair *service.RepairService
}

func NewChunkRepairJob(repair *service.RepairService) *ChunkRepairJob {
	return &ChunkRepairJob{repair: repair}
}

func (j *ChunkRepairJob) Name() string {
	return "chunk_repair"
}

func (j *ChunkRepairJob) Run(ctx context.Context) error {
	if j.repair == nil {
		return nil
	}
	_, err := j.repair.Repair(ctx)
	return err
}
