package repo

import (
	"context"
	"database/sql"

	"github.com/qrengage/docpipe/internal/model"
	"github.com/qrengage/docpipe/internal/pkg/dbutil"
	appErr "github.com/qrengage/docpipe/internal/pkg/errors"
)

type JobRepo struct {
	db *sql.DB
}

func NewJobRepo(db *sql.DB) *JobRepo {
	return &JobRepo{db: db}
}

const jobFields = `id, document_id, tenant_id, source_ref, status, stage, processed, total, error_msg, ctime, started_at, completed_at, mtime`

func (r *JobRepo) Create(ctx context.Context, job *model.Job) error {
	const query = `
		INSERT INTO ingest_jobs (` + jobFields + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	if _, err := r.db.ExecContext(ctx, query,
		job.ID, job.DocumentID, job.TenantID, job.SourceRef,
		job.Status, job.Stage, job.Processed, job.Total, job.ErrorMsg,
		job.Ctime, job.StartedAt, job.CompletedAt, job.Mtime,
	); err != nil {
		if dbutil.IsUniqueViolation(err) {
			// The partial unique index on document_id admits one active job.
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *JobRepo) Get(ctx context.Context, jobID string) (*model.Job, error) {
	const query = `SELECT ` + jobFields + ` FROM ingest_jobs WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, jobID))
}

// GetActiveByDocument returns the single non-terminal job for a document,
// if one exists.
func (r *JobRepo) GetActiveByDocument(ctx context.Context, docID string) (*model.Job, error) {
	const query = `
		SELECT ` + jobFields + `
		FROM ingest_jobs
		WHERE document_id = $1 AND status IN ('queued', 'processing')
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, docID))
}

// GetLatestByDocument returns the most recent job regardless of state; it
// backs the document status poll.
func (r *JobRepo) GetLatestByDocument(ctx context.Context, docID string) (*model.Job, error) {
	const query = `
		SELECT ` + jobFields + `
		FROM ingest_jobs
		WHERE document_id = $1
		ORDER BY ctime DESC
		LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, docID))
}

// MarkStarted claims a queued job for a worker. The status guard makes the
// claim a compare-and-swap: exactly one worker wins.
func (r *JobRepo) MarkStarted(ctx context.Context, jobID string, now int64) (bool, error) {
	const query = `
		UPDATE ingest_jobs
		SET status = $1, stage = $2, started_at = $3, mtime = $3
		WHERE id = $4 AND status = $5
	`
	res, err := r.db.ExecContext(ctx, query, model.JobStatusProcessing, model.JobStageStarting, now, jobID, model.JobStatusQueued)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *JobRepo) UpdateStage(ctx context.Context, jobID, stage string, mtime int64) error {
	const query = `
		UPDATE ingest_jobs
		SET stage = $1, mtime = $2
		WHERE id = $3 AND status = $4
	`
	_, err := r.db.ExecContext(ctx, query, stage, mtime, jobID, model.JobStatusProcessing)
	return err
}

// UpdateProgress bumps the chunk counters. GREATEST keeps processed and
// total monotone even if a slow writer lands out of order.
func (r *JobRepo) UpdateProgress(ctx context.Context, jobID string, processed, total int, mtime int64) error {
	const query = `
		UPDATE ingest_jobs
		SET processed = GREATEST(processed, $1),
			total = GREATEST(total, $2),
			mtime = $3
		WHERE id = $4 AND status = $5
	`
	_, err := r.db.ExecContext(ctx, query, processed, total, mtime, jobID, model.JobStatusProcessing)
	return err
}

// MarkTerminal moves a processing job to one of the terminal states.
func (r *JobRepo) MarkTerminal(ctx context.Context, jobID, status, stage, errMsg string, now int64) (bool, error) {
	const query = `
		UPDATE ingest_jobs
		SET status = $1, stage = $2, error_msg = $3, completed_at = $4, mtime = $4
		WHERE id = $5 AND status IN ('queued', 'processing')
	`
	res, err := r.db.ExecContext(ctx, query, status, stage, errMsg, now, jobID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// RequeueStale pushes processing jobs with no writes since the cutoff back
// to queued so a worker can pick them up again. The worker bumps mtime on
// every stage and progress write, so a live job never looks stale.
func (r *JobRepo) RequeueStale(ctx context.Context, cutoff int64, now int64) ([]model.Job, error) {
	const query = `
		UPDATE ingest_jobs
		SET status = $1, stage = $1, mtime = $2
		WHERE status = $3 AND mtime < $4
		RETURNING ` + jobFields + `
	`
	rows, err := r.db.QueryContext(ctx, query, model.JobStatusQueued, now, model.JobStatusProcessing, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []model.Job
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (r *JobRepo) scanOne(row *sql.Row) (*model.Job, error) {
	job, err := scanJob(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

func scanJob(scan func(dest ...interface{}) error) (*model.Job, error) {
	var job model.Job
	if err := scan(&job.ID, &job.DocumentID, &job.TenantID, &job.SourceRef,
		&job.Status, &job.Stage, &job.Processed, &job.Total, &job.ErrorMsg,
		&job.Ctime, &job.StartedAt, &job.CompletedAt, &job.Mtime); err != nil {
		return nil, err
	}
	return &job, nil
}
