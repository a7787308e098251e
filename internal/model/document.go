package model

const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusFailed     = "failed"
	DocumentStatusError      = "error"
)

type Document struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id"`
	FileName  string `json:"file_name"`
	SourceRef string `json:"source_ref"`
	Status    string `json:"status"`
	ErrorMsg  string `json:"error_msg"`
	Ctime     int64  `json:"ctime"`
	Mtime     int64  `json:"mtime"`
}
