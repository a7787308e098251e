package model

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusError      = "error"
)

const (
	JobStageQueued     = "queued"
	JobStageStarting   = "starting"
	JobStageUploading  = "uploading"
	JobStageExtracting = "extracting"
	JobStageChunking   = "chunking"
	JobStageEmbedding  = "embedding"
	JobStageCompleted  = "completed"
	JobStageFailed     = "failed"
)

// stagePercent maps coarse stages to percent-complete values, used when
// fine-grained chunk counts are not yet available.
var stagePercent = map[string]int{
	JobStageQueued:     5,
	JobStageStarting:   10,
	JobStageUploading:  25,
	JobStageExtracting: 40,
	JobStageChunking:   60,
	JobStageEmbedding:  80,
	JobStageCompleted:  100,
	JobStageFailed:     0,
}

type Job struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	TenantID    string `json:"tenant_id"`
	SourceRef   string `json:"source_ref"`
	Status      string `json:"status"`
	Stage       string `json:"stage"`
	Processed   int    `json:"processed"`
	Total       int    `json:"total"`
	ErrorMsg    string `json:"error_msg"`
	Ctime       int64  `json:"ctime"`
	StartedAt   int64  `json:"started_at"`
	CompletedAt int64  `json:"completed_at"`
	Mtime       int64  `json:"mtime"`
}

func (j *Job) Terminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusError:
		return true
	}
	return false
}

// ProgressPercent reports completion from chunk counts when the job is
// embedding, falling back to the coarse stage mapping otherwise.
func (j *Job) ProgressPercent() int {
	if j.Status == JobStatusCompleted {
		return 100
	}
	if j.Stage == JobStageEmbedding && j.Total > 0 {
		return int(float64(j.Processed)/float64(j.Total)*100 + 0.5)
	}
	if p, ok := stagePercent[j.Stage]; ok {
		return p
	}
	return 0
}
