package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/qrengage/docpipe/internal/ai"
	"github.com/qrengage/docpipe/internal/model"
	appErr "github.com/qrengage/docpipe/internal/pkg/errors"
)

const noMatchMessage = "No relevant information found in the knowledge base."

type QueryOptions struct {
	Threshold float32
	Count     int
}

// QueryService answers similarity searches over embedded chunks.
type QueryService struct {
	chunks   ChunkStore
	embedder ai.IEmbedder
	opts     QueryOptions
}

func NewQueryService(chunks ChunkStore, embedder ai.IEmbedder, opts QueryOptions) *QueryService {
	if opts.Threshold <= 0 {
		opts.Threshold = 0.5
	}
	if opts.Count <= 0 {
		opts.Count = 5
	}
	return &QueryService{chunks: chunks, embedder: embedder, opts: opts}
}

// Query embeds the question and returns chunks above the similarity
// threshold, best first. documentID narrows the search to one document
// when non-empty; threshold/count fall back to configured defaults when
// zero.
func (s *QueryService) Query(ctx context.Context, tenantID, text, documentID string, threshold float32, count int) ([]model.ChunkMatch, error) {
	if tenantID == "" || strings.TrimSpace(text) == "" {
		return nil, appErr.ErrInvalid
	}
	if threshold <= 0 {
		threshold = s.opts.Threshold
	}
	if count <= 0 {
		count = s.opts.Count
	}
	vec, err := s.embedder.Embed(ctx, text, ai.TaskRetrievalQuery)
	if err != nil {
		logutil.GetLogger(ctx).Error("failed to embed query",
			zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := s.chunks.NearestNeighbors(ctx, tenantID, vec, documentID, threshold, count)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return matches, nil
}

// FormatForPrompt renders matches as a context block for an LLM prompt.
// An empty match set yields a fixed no-answer sentence so the caller can
// prompt the model to say it does not know.
func FormatForPrompt(matches []model.ChunkMatch) string {
	if len(matches) == 0 {
		return noMatchMessage
	}
	var sb strings.Builder
	for i, m := range matches {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[Document %d] (Relevance: %.0f%%)", i+1, m.Similarity*100)
		if src := formatSource(m.Metadata); src != "" {
			sb.WriteString(" ")
			sb.WriteString(src)
		}
		sb.WriteString("\n")
		sb.WriteString(m.Content)
	}
	return sb.String()
}

func formatSource(meta model.ChunkMetadata) string {
	var parts []string
	if meta.Source != "" {
		parts = append(parts, meta.Source)
	}
	if meta.Section != "" {
		parts = append(parts, meta.Section)
	}
	if meta.PageNumber > 0 {
		parts = append(parts, fmt.Sprintf("page %d", meta.PageNumber))
	}
	if len(parts) == 0 {
		return ""
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
