package job

import (
	"context"
	"time"

	"github.com/qrengage/docpipe/internal/service"
)

// StaleJobSweepJob requeues ingest jobs stuck in processing, typically
// left behind by a crashed worker.
type StaleJobSweepJob struct {
	ingest *service.IngestService
	maxAge time.Duration
}

func NewStaleJobSweepJob(ingest *service.IngestService, maxAge time.Duration) *StaleJobSweepJob {
	if maxAge <= 0 {
		maxAge = 30 * time.Minute
	}
	return &StaleJobSweepJob{ingest: ingest, maxAge: maxAge}
}

func (j *StaleJobSweepJob) Name() string {
	return "stale_job_sweep"
}

func (j *StaleJobSweepJob) Run(ctx context.Context) error {
	if j.ingest == nil {
		return nil
	}
	_, err := j.ingest.RequeueStale(ctx, j.maxAge)
	return err
}
