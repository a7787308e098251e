package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/qrengage/docpipe/internal/ai"
	"github.com/qrengage/docpipe/internal/chunker"
	"github.com/qrengage/docpipe/internal/extract"
	"github.com/qrengage/docpipe/internal/filestore"
	"github.com/qrengage/docpipe/internal/model"
	appErr "github.com/qrengage/docpipe/internal/pkg/errors"
)

type IngestOptions struct {
	ChunkSize    int
	ChunkOverlap int
	EmbedBatch   int
	BatchDelay   time.Duration
}

// StatusView is the poll response shape. Polling always gets one of these,
// never a raw error from the pipeline.
type StatusView struct {
	Status          string `json:"status"`
	Stage           string `json:"stage"`
	ProgressPercent int    `json:"progress_percent"`
	ChunkCount      int    `json:"chunk_count"`
	ErrorMsg        string `json:"error_msg,omitempty"`
}

// IngestService owns document submission and the background pipeline that
// extracts, chunks, embeds and persists each document.
type IngestService struct {
	docs      DocumentStore
	chunks    ChunkStore
	jobs      JobStore
	files     filestore.Store
	extractor *extract.Extractor
	embedder  ai.IEmbedder
	opts      IngestOptions

	statusCache *expirable.LRU[string, *StatusView]
}

func NewIngestService(
	docs DocumentStore,
	chunks ChunkStore,
	jobs JobStore,
	files filestore.Store,
	extractor *extract.Extractor,
	embedder ai.IEmbedder,
	opts IngestOptions,
) *IngestService {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.ChunkOverlap <= 0 {
		opts.ChunkOverlap = 200
	}
	if opts.EmbedBatch <= 0 {
		opts.EmbedBatch = 5
	}
	return &IngestService{
		docs:      docs,
		chunks:    chunks,
		jobs:      jobs,
		files:     files,
		extractor: extractor,
		embedder:  embedder,
		opts:      opts,
		// Absorbs tight polling loops; entries outlive their usefulness
		// quickly so the TTL stays short.
		statusCache: expirable.NewLRU[string, *StatusView](4096, nil, 2*time.Second),
	}
}

// Submit validates the upload, records the document and its job, and kicks
// off the background worker. Validation failures are the only synchronous
// errors; everything after this call surfaces through the job.
func (s *IngestService) Submit(ctx context.Context, tenantID, fileName string, data []byte, chunkSize, overlap int) (*model.Job, error) {
	if tenantID == "" || strings.TrimSpace(fileName) == "" {
		return nil, appErr.ErrInvalid
	}
	if len(data) == 0 {
		return nil, appErr.ErrInvalid
	}
	if err := s.extractor.CheckSize(int64(len(data))); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	doc := &model.Document{
		ID:       newID(),
		TenantID: tenantID,
		FileName: fileName,
		Status:   model.DocumentStatusPending,
		Ctime:    now,
		Mtime:    now,
	}
	doc.SourceRef = doc.ID
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, err
	}
	job, err := s.enqueue(ctx, doc)
	if err != nil {
		return nil, err
	}
	go s.runIngest(context.Background(), job, doc, fileName, data, chunkSize, overlap)
	return job, nil
}

// Resubmit re-runs ingestion for an existing document from its stored
// source bytes. Chunk identity is the content hash, so a re-run converges
// on the same rows instead of duplicating them.
func (s *IngestService) Resubmit(ctx context.Context, tenantID, docID string) (*model.Job, error) {
	doc, err := s.docs.Get(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}
	data, err := s.files.Open(ctx, doc.SourceRef)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	job, err := s.enqueue(ctx, doc)
	if err != nil {
		return nil, err
	}
	go s.runIngest(context.Background(), job, doc, doc.FileName, data, 0, 0)
	return job, nil
}

// RequeueStale returns processing jobs that outlived maxAge to the queue
// and restarts them from stored source bytes. Such jobs belong to workers
// that died mid-pipeline; content-hash dedup makes the re-run safe.
func (s *IngestService) RequeueStale(ctx context.Context, maxAge time.Duration) (int, error) {
	logger := logutil.GetLogger(ctx)
	now := time.Now()
	stale, err := s.jobs.RequeueStale(ctx, now.Add(-maxAge).Unix(), now.Unix())
	if err != nil {
		return 0, err
	}
	restarted := 0
	for i := range stale {
		job := &stale[i]
		doc, err := s.docs.Get(ctx, job.TenantID, job.DocumentID)
		if err != nil {
			logger.Warn("stale job has no document, skipping",
				zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		data, err := s.files.Open(ctx, job.SourceRef)
		if err != nil {
			logger.Error("cannot reload source for stale job",
				zap.String("job_id", job.ID), zap.Error(err))
			s.finish(ctx, job, doc, model.JobStatusError, fmt.Sprintf("reload source: %v", err))
			continue
		}
		logger.Info("restarting stale job",
			zap.String("job_id", job.ID),
			zap.String("doc_id", job.DocumentID),
		)
		go s.runIngest(context.Background(), job, doc, doc.FileName, data, 0, 0)
		restarted++
	}
	return restarted, nil
}

// enqueue reuses the active job for the document when one exists, so two
// submissions cannot spawn competing workers.
func (s *IngestService) enqueue(ctx context.Context, doc *model.Document) (*model.Job, error) {
	if active, err := s.jobs.GetActiveByDocument(ctx, doc.ID); err == nil {
		return active, nil
	} else if !appErr.IsNotFound(err) {
		return nil, err
	}
	now := time.Now().Unix()
	job := &model.Job{
		ID:         newID(),
		DocumentID: doc.ID,
		TenantID:   doc.TenantID,
		SourceRef:  doc.SourceRef,
		Status:     model.JobStatusQueued,
		Stage:      model.JobStageQueued,
		Ctime:      now,
		Mtime:      now,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		if appErr.IsConflict(err) {
			// Lost the race to another submission; reuse its job.
			return s.jobs.GetActiveByDocument(ctx, doc.ID)
		}
		return nil, err
	}
	return job, nil
}

// Status reports document progress for polling, served from a short-lived
// cache.
func (s *IngestService) Status(ctx context.Context, tenantID, docID string) (*StatusView, error) {
	cacheKey := tenantID + ":" + docID
	if view, ok := s.statusCache.Get(cacheKey); ok {
		return view, nil
	}
	doc, err := s.docs.Get(ctx, tenantID, docID)
	if err != nil {
		return nil, err
	}
	view := &StatusView{
		Status:   doc.Status,
		ErrorMsg: doc.ErrorMsg,
	}
	if job, err := s.jobs.GetLatestByDocument(ctx, docID); err == nil {
		view.Stage = job.Stage
		view.ProgressPercent = job.ProgressPercent()
	} else if !appErr.IsNotFound(err) {
		return nil, err
	}
	if count, err := s.chunks.CountByDocument(ctx, docID); err == nil {
		view.ChunkCount = count
	}
	s.statusCache.Add(cacheKey, view)
	return view, nil
}

// runIngest drives one job through the pipeline. It owns every state
// transition after queued; unexpected failures land in the error state
// instead of escaping the goroutine.
func (s *IngestService) runIngest(ctx context.Context, job *model.Job, doc *model.Document, fileName string, data []byte, chunkSize, overlap int) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("job_id", job.ID),
		zap.String("doc_id", doc.ID),
		zap.String("file_name", fileName),
	)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("ingest worker panicked", zap.Any("panic", r))
			s.finish(ctx, job, doc, model.JobStatusError, fmt.Sprintf("panic: %v", r))
		}
	}()

	started, err := s.jobs.MarkStarted(ctx, job.ID, time.Now().Unix())
	if err != nil {
		logger.Error("failed to start job", zap.Error(err))
		return
	}
	if !started {
		logger.Info("job already taken by another worker")
		return
	}
	_ = s.docs.UpdateStatus(ctx, doc.TenantID, doc.ID, model.DocumentStatusProcessing, "", time.Now().Unix())

	s.setStage(ctx, job, model.JobStageUploading)
	if err := s.files.Save(ctx, doc.SourceRef, data); err != nil {
		logger.Error("failed to store source", zap.Error(err))
		s.finish(ctx, job, doc, model.JobStatusError, fmt.Sprintf("store source: %v", err))
		return
	}

	s.setStage(ctx, job, model.JobStageExtracting)
	pages, err := s.extractor.Extract(ctx, data, fileName)
	if err != nil {
		logger.Error("extraction failed", zap.Error(err))
		s.finish(ctx, job, doc, model.JobStatusFailed, fmt.Sprintf("extraction failed: %v", err))
		return
	}
	logger.Info("extraction completed", zap.Int("pages", len(pages)))

	s.setStage(ctx, job, model.JobStageChunking)
	chunks := s.buildChunks(doc, fileName, pages, chunkSize, overlap)
	if len(chunks) == 0 {
		s.finish(ctx, job, doc, model.JobStatusFailed, "no extractable text")
		return
	}
	logger.Info("chunking completed", zap.Int("chunks", len(chunks)))

	s.setStage(ctx, job, model.JobStageEmbedding)
	embedded, err := s.embedChunks(ctx, job, chunks)
	if err != nil {
		logger.Error("embedding stage failed", zap.Error(err))
		s.finish(ctx, job, doc, model.JobStatusError, fmt.Sprintf("embedding stage: %v", err))
		return
	}
	if embedded == 0 {
		s.finish(ctx, job, doc, model.JobStatusFailed,
			fmt.Sprintf("embedding failed for all %d chunks", len(chunks)))
		return
	}
	logger.Info("ingest completed",
		zap.Int("chunks", len(chunks)),
		zap.Int("embedded", embedded),
	)
	s.finish(ctx, job, doc, model.JobStatusCompleted, "")
}

func (s *IngestService) setStage(ctx context.Context, job *model.Job, stage string) {
	job.Stage = stage
	_ = s.jobs.UpdateStage(ctx, job.ID, stage, time.Now().Unix())
}

// buildChunks splits pages into hashed chunk rows. The per-submission size
// and overlap override the configured defaults when positive.
func (s *IngestService) buildChunks(doc *model.Document, fileName string, pages []extract.Page, chunkSize, overlap int) []*model.Chunk {
	if chunkSize <= 0 {
		chunkSize = s.opts.ChunkSize
	}
	if overlap <= 0 {
		overlap = s.opts.ChunkOverlap
	}
	split := chunker.NewTokenAware(chunkSize, overlap)
	now := time.Now().Unix()
	var chunks []*model.Chunk
	for _, page := range pages {
		for _, content := range split.Split(page.Text) {
			chunks = append(chunks, &model.Chunk{
				ID:          newID(),
				DocumentID:  doc.ID,
				TenantID:    doc.TenantID,
				Content:     content,
				ContentHash: contentHash(content),
				TokenCount:  ai.CountTokens(content),
				Metadata: model.ChunkMetadata{
					PageNumber: page.PageNumber,
					Section:    page.Section,
					Source:     fileName,
				},
				Ctime: now,
			})
		}
	}
	return chunks
}

// embedChunks processes chunks in small sequential batches with a short
// pause between them, bounding memory and provider pressure. A chunk whose
// embedding fails is still stored, vectorless, for the repair sweep; only
// storage errors abort the stage. Returns how many chunks hold a vector.
func (s *IngestService) embedChunks(ctx context.Context, job *model.Job, chunks []*model.Chunk) (int, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("job_id", job.ID))
	total := len(chunks)
	processed := 0
	embedded := 0
	for batchStart := 0; batchStart < total; batchStart += s.opts.EmbedBatch {
		batchEnd := batchStart + s.opts.EmbedBatch
		if batchEnd > total {
			batchEnd = total
		}
		for _, chunk := range chunks[batchStart:batchEnd] {
			if existing, err := s.chunks.Get(ctx, chunk.DocumentID, chunk.ContentHash); err == nil && existing.Embedding != nil {
				// Same content already embedded; re-runs cost nothing.
				processed++
				embedded++
				continue
			}
			vec, err := s.embedder.Embed(ctx, chunk.Content, ai.TaskRetrievalDocument)
			if err != nil {
				logger.Warn("chunk embedding failed, storing without vector",
					zap.String("content_hash", chunk.ContentHash),
					zap.Error(err),
				)
			} else {
				chunk.Embedding = vec
				embedded++
			}
			if err := s.chunks.Upsert(ctx, chunk); err != nil {
				return embedded, fmt.Errorf("upsert chunk: %w", err)
			}
			processed++
		}
		if err := s.jobs.UpdateProgress(ctx, job.ID, processed, total, time.Now().Unix()); err != nil {
			logger.Warn("failed to update progress", zap.Error(err))
		}
		if batchEnd < total && s.opts.BatchDelay > 0 {
			time.Sleep(s.opts.BatchDelay)
		}
	}
	return embedded, nil
}

// finish moves the job to a terminal state and mirrors it onto the
// document.
func (s *IngestService) finish(ctx context.Context, job *model.Job, doc *model.Document, status, reason string) {
	now := time.Now().Unix()
	stage := model.JobStageCompleted
	docStatus := model.DocumentStatusReady
	switch status {
	case model.JobStatusFailed:
		stage = model.JobStageFailed
		docStatus = model.DocumentStatusFailed
	case model.JobStatusError:
		stage = model.JobStageFailed
		docStatus = model.DocumentStatusError
	}
	moved, err := s.jobs.MarkTerminal(ctx, job.ID, status, stage, reason, now)
	if err != nil {
		logutil.GetLogger(ctx).Error("failed to finalize job", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	if !moved {
		// Already terminal; never regress.
		return
	}
	_ = s.docs.UpdateStatus(ctx, doc.TenantID, doc.ID, docStatus, reason, now)
}

func contentHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
