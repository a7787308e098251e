package model

type ChunkMetadata struct {
	PageNumber int    `json:"page_number,omitempty"`
	Section    string `json:"section,omitempty"`
	Source     string `json:"source,omitempty"`
}

type Chunk struct {
	ID          string        `json:"id"`
	DocumentID  string        `json:"document_id"`
	TenantID    string        `json:"tenant_id"`
	Content     string        `json:"content"`
	ContentHash string        `json:"content_hash"`
	Embedding   []float32     `json:"-"`
	TokenCount  int           `json:"token_count"`
	Metadata    ChunkMetadata `json:"metadata"`
	Ctime       int64         `json:"ctime"`
}

// ChunkMatch is one ranked result from a similarity query.
type ChunkMatch struct {
	ChunkID    string        `json:"chunk_id"`
	DocumentID string        `json:"document_id"`
	Content    string        `json:"content"`
	Similarity float32       `json:"similarity"`
	Metadata   ChunkMetadata `json:"metadata"`
}
