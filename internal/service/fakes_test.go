package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/qrengage/docpipe/internal/model"
	appErr "github.com/qrengage/docpipe/internal/pkg/errors"
)

type fakeDocumentStore struct {
	mu   sync.Mutex
	docs map[string]*model.Document
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: map[string]*model.Document{}}
}

func (f *fakeDocumentStore) Create(ctx context.Context, doc *model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cloned := *doc
	f.docs[doc.ID] = &cloned
	return nil
}

func (f *fakeDocumentStore) Get(ctx context.Context, tenantID, docID string) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[docID]
	if !ok || doc.TenantID != tenantID {
		return nil, appErr.ErrNotFound
	}
	cloned := *doc
	return &cloned, nil
}

func (f *fakeDocumentStore) List(ctx context.Context, tenantID string, limit int) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Document
	for _, doc := range f.docs {
		if doc.TenantID == tenantID {
			out = append(out, *doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ctime > out[j].Ctime })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDocumentStore) UpdateStatus(ctx context.Context, tenantID, docID, status, errMsg string, mtime int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[docID]
	if !ok {
		return appErr.ErrNotFound
	}
	doc.Status = status
	doc.ErrorMsg = errMsg
	doc.Mtime = mtime
	return nil
}

func (f *fakeDocumentStore) Delete(ctx context.Context, tenantID, docID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[docID]; !ok {
		return appErr.ErrNotFound
	}
	delete(f.docs, docID)
	return nil
}

type fakeChunkStore struct {
	mu     sync.Mutex
	chunks map[string]*model.Chunk // keyed by documentID|contentHash
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{chunks: map[string]*model.Chunk{}}
}

func chunkKey(docID, hash string) string {
	return docID + "|" + hash
}

func (f *fakeChunkStore) Upsert(ctx context.Context, chunk *model.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := chunkKey(chunk.DocumentID, chunk.ContentHash)
	if existing, ok := f.chunks[key]; ok {
		chunk.ID = existing.ID
	}
	cloned := *chunk
	f.chunks[key] = &cloned
	return nil
}

func (f *fakeChunkStore) Get(ctx context.Context, docID, contentHash string) (*model.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chunk, ok := f.chunks[chunkKey(docID, contentHash)]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	cloned := *chunk
	return &cloned, nil
}

func (f *fakeChunkStore) SetEmbedding(ctx context.Context, chunkID string, embedding []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, chunk := range f.chunks {
		if chunk.ID == chunkID {
			chunk.Embedding = append([]float32(nil), embedding...)
			return nil
		}
	}
	return appErr.ErrNotFound
}

func (f *fakeChunkStore) ListIncomplete(ctx context.Context, limit int) ([]model.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Chunk
	for _, chunk := range f.chunks {
		if chunk.Embedding == nil {
			out = append(out, *chunk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContentHash < out[j].ContentHash })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeChunkStore) CountByDocument(ctx context.Context, docID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, chunk := range f.chunks {
		if chunk.DocumentID == docID {
			count++
		}
	}
	return count, nil
}

func (f *fakeChunkStore) NearestNeighbors(ctx context.Context, tenantID string, queryVec []float32, documentID string, threshold float32, count int) ([]model.ChunkMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matches []model.ChunkMatch
	for _, chunk := range f.chunks {
		if chunk.TenantID != tenantID || chunk.Embedding == nil {
			continue
		}
		if documentID != "" && chunk.DocumentID != documentID {
			continue
		}
		sim := cosineSimilarity(queryVec, chunk.Embedding)
		if sim < threshold {
			continue
		}
		matches = append(matches, model.ChunkMatch{
			ChunkID:    chunk.ID,
			DocumentID: chunk.DocumentID,
			Content:    chunk.Content,
			Similarity: sim,
			Metadata:   chunk.Metadata,
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Content < matches[j].Content
	})
	if count > 0 && len(matches) > count {
		matches = matches[:count]
	}
	return matches, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: map[string]*model.Job{}}
}

func (f *fakeJobStore) Create(ctx context.Context, job *model.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.jobs {
		if existing.DocumentID == job.DocumentID && !existing.Terminal() {
			return appErr.ErrConflict
		}
	}
	cloned := *job
	f.jobs[job.ID] = &cloned
	return nil
}

func (f *fakeJobStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	cloned := *job
	return &cloned, nil
}

func (f *fakeJobStore) GetActiveByDocument(ctx context.Context, docID string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if job.DocumentID == docID && !job.Terminal() {
			cloned := *job
			return &cloned, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (f *fakeJobStore) GetLatestByDocument(ctx context.Context, docID string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *model.Job
	for _, job := range f.jobs {
		if job.DocumentID != docID {
			continue
		}
		if latest == nil || job.Ctime > latest.Ctime {
			latest = job
		}
	}
	if latest == nil {
		return nil, appErr.ErrNotFound
	}
	cloned := *latest
	return &cloned, nil
}

func (f *fakeJobStore) MarkStarted(ctx context.Context, jobID string, now int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return false, appErr.ErrNotFound
	}
	if job.Status != model.JobStatusQueued {
		return false, nil
	}
	job.Status = model.JobStatusProcessing
	job.Stage = model.JobStageStarting
	job.StartedAt = now
	job.Mtime = now
	return true, nil
}

func (f *fakeJobStore) UpdateStage(ctx context.Context, jobID, stage string, mtime int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return appErr.ErrNotFound
	}
	job.Stage = stage
	job.Mtime = mtime
	return nil
}

func (f *fakeJobStore) UpdateProgress(ctx context.Context, jobID string, processed, total int, mtime int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return appErr.ErrNotFound
	}
	// Progress never regresses.
	if processed > job.Processed {
		job.Processed = processed
	}
	job.Total = total
	job.Mtime = mtime
	return nil
}

func (f *fakeJobStore) MarkTerminal(ctx context.Context, jobID, status, stage, errMsg string, now int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return false, appErr.ErrNotFound
	}
	if job.Terminal() {
		return false, nil
	}
	job.Status = status
	job.Stage = stage
	job.ErrorMsg = errMsg
	job.CompletedAt = now
	job.Mtime = now
	return true, nil
}

func (f *fakeJobStore) RequeueStale(ctx context.Context, cutoff int64, now int64) ([]model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Job
	for _, job := range f.jobs {
		if job.Status == model.JobStatusProcessing && job.Mtime < cutoff {
			job.Status = model.JobStatusQueued
			job.Stage = model.JobStageQueued
			job.Mtime = now
			out = append(out, *job)
		}
	}
	return out, nil
}

// fakeEmbedder returns a deterministic vector per text; failHashes lists
// content it refuses to embed, failFirst makes the first N calls fail.
type fakeEmbedder struct {
	mu        sync.Mutex
	vectors   map[string][]float32
	failWhen  func(text string) bool
	failFirst int
	calls     int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failFirst > 0 {
		f.failFirst--
		return nil, errors.New("embedding backend unavailable")
	}
	if f.failWhen != nil && f.failWhen(text) {
		return nil, errors.New("embedding backend unavailable")
	}
	if f.vectors != nil {
		if vec, ok := f.vectors[text]; ok {
			return append([]float32(nil), vec...), nil
		}
	}
	return textVector(text), nil
}

func (f *fakeEmbedder) ModelName() string {
	return "fake-embed"
}

// textVector produces a crude but deterministic embedding so similarity
// ordering in tests follows shared vocabulary.
func textVector(text string) []float32 {
	vec := make([]float32, 8)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		var sum int
		for _, r := range word {
			sum += int(r)
		}
		vec[sum%len(vec)]++
	}
	return vec
}

type fakeFileStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{blobs: map[string][]byte{}}
}

func (f *fakeFileStore) Save(ctx context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeFileStore) Open(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[key]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeFileStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.blobs, key)
	return nil
}
