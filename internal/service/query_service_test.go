package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qrengage/docpipe/internal/model"
	appErr "github.com/qrengage/docpipe/internal/pkg/errors"
)

func seedChunk(t *testing.T, store *fakeChunkStore, docID, tenantID, content string, embedding []float32) {
	t.Helper()
	require.NoError(t, store.Upsert(context.Background(), &model.Chunk{
		ID:          newID(),
		DocumentID:  docID,
		TenantID:    tenantID,
		Content:     content,
		ContentHash: content,
		Embedding:   embedding,
		Metadata:    model.ChunkMetadata{Source: "kb.txt", PageNumber: 1},
	}))
}

func TestQueryReturnsMatchesAboveThreshold(t *testing.T) {
	chunks := newFakeChunkStore()
	embed := newFakeEmbedder()
	embed.vectors = map[string][]float32{
		"opening hours": {1, 0, 0, 0, 0, 0, 0, 0},
	}
	seedChunk(t, chunks, "doc-1", "tenant-a", "close match", []float32{1, 0.1, 0, 0, 0, 0, 0, 0})
	seedChunk(t, chunks, "doc-1", "tenant-a", "weak match", []float32{0.4, 1, 1, 0, 0, 0, 0, 0})
	seedChunk(t, chunks, "doc-1", "tenant-a", "orthogonal", []float32{0, 0, 0, 0, 0, 0, 0, 1})

	svc := NewQueryService(chunks, embed, QueryOptions{Threshold: 0.5, Count: 5})
	matches, err := svc.Query(context.Background(), "tenant-a", "opening hours", "", 0, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "close match", matches[0].Content)
	require.Greater(t, matches[0].Similarity, float32(0.9))
}

func TestQueryOrdersBySimilarity(t *testing.T) {
	chunks := newFakeChunkStore()
	embed := newFakeEmbedder()
	embed.vectors = map[string][]float32{
		"question": {1, 0, 0, 0, 0, 0, 0, 0},
	}
	seedChunk(t, chunks, "doc-1", "tenant-a", "best", []float32{1, 0, 0, 0, 0, 0, 0, 0})
	seedChunk(t, chunks, "doc-1", "tenant-a", "good", []float32{1, 0.5, 0, 0, 0, 0, 0, 0})
	seedChunk(t, chunks, "doc-1", "tenant-a", "okay", []float32{1, 1, 0, 0, 0, 0, 0, 0})

	svc := NewQueryService(chunks, embed, QueryOptions{})
	matches, err := svc.Query(context.Background(), "tenant-a", "question", "", 0.1, 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	require.Equal(t, "best", matches[0].Content)
	require.Equal(t, "good", matches[1].Content)
	require.Equal(t, "okay", matches[2].Content)
}

func TestQueryHonorsCountLimit(t *testing.T) {
	chunks := newFakeChunkStore()
	embed := newFakeEmbedder()
	embed.vectors = map[string][]float32{"q": {1, 0, 0, 0, 0, 0, 0, 0}}
	for _, content := range []string{"a", "b", "c", "d"} {
		seedChunk(t, chunks, "doc-1", "tenant-a", content, []float32{1, 0, 0, 0, 0, 0, 0, 0})
	}
	svc := NewQueryService(chunks, embed, QueryOptions{})
	matches, err := svc.Query(context.Background(), "tenant-a", "q", "", 0.5, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
}

func TestQueryScopedToDocument(t *testing.T) {
	chunks := newFakeChunkStore()
	embed := newFakeEmbedder()
	embed.vectors = map[string][]float32{"q": {1, 0, 0, 0, 0, 0, 0, 0}}
	seedChunk(t, chunks, "doc-1", "tenant-a", "in scope", []float32{1, 0, 0, 0, 0, 0, 0, 0})
	seedChunk(t, chunks, "doc-2", "tenant-a", "out of scope", []float32{1, 0, 0, 0, 0, 0, 0, 0})

	svc := NewQueryService(chunks, embed, QueryOptions{})
	matches, err := svc.Query(context.Background(), "tenant-a", "q", "doc-1", 0.5, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "in scope", matches[0].Content)
}

func TestQueryIsolatedByTenant(t *testing.T) {
	chunks := newFakeChunkStore()
	embed := newFakeEmbedder()
	embed.vectors = map[string][]float32{"q": {1, 0, 0, 0, 0, 0, 0, 0}}
	seedChunk(t, chunks, "doc-1", "tenant-a", "mine", []float32{1, 0, 0, 0, 0, 0, 0, 0})
	seedChunk(t, chunks, "doc-2", "tenant-b", "theirs", []float32{1, 0, 0, 0, 0, 0, 0, 0})

	svc := NewQueryService(chunks, embed, QueryOptions{})
	matches, err := svc.Query(context.Background(), "tenant-a", "q", "", 0.5, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "mine", matches[0].Content)
}

func TestQuerySkipsVectorlessChunks(t *testing.T) {
	chunks := newFakeChunkStore()
	embed := newFakeEmbedder()
	embed.vectors = map[string][]float32{"q": {1, 0, 0, 0, 0, 0, 0, 0}}
	seedChunk(t, chunks, "doc-1", "tenant-a", "embedded", []float32{1, 0, 0, 0, 0, 0, 0, 0})
	seedChunk(t, chunks, "doc-1", "tenant-a", "pending repair", nil)

	svc := NewQueryService(chunks, embed, QueryOptions{})
	matches, err := svc.Query(context.Background(), "tenant-a", "q", "", 0.5, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "embedded", matches[0].Content)
}

func TestQueryValidatesInput(t *testing.T) {
	svc := NewQueryService(newFakeChunkStore(), newFakeEmbedder(), QueryOptions{})
	_, err := svc.Query(context.Background(), "", "q", "", 0, 0)
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = svc.Query(context.Background(), "tenant-a", "  ", "", 0, 0)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestQueryPropagatesEmbedFailure(t *testing.T) {
	embed := newFakeEmbedder()
	embed.failWhen = func(string) bool { return true }
	svc := NewQueryService(newFakeChunkStore(), embed, QueryOptions{})
	_, err := svc.Query(context.Background(), "tenant-a", "q", "", 0, 0)
	require.Error(t, err)
}

func TestFormatForPromptEmpty(t *testing.T) {
	require.Equal(t, "No relevant information found in the knowledge base.", FormatForPrompt(nil))
}

func TestFormatForPromptRendersMatches(t *testing.T) {
	out := FormatForPrompt([]model.ChunkMatch{
		{Content: "first answer", Similarity: 0.91, Metadata: model.ChunkMetadata{Source: "kb.txt", PageNumber: 2}},
		{Content: "second answer", Similarity: 0.64, Metadata: model.ChunkMetadata{Section: "FAQ"}},
	})
	require.Contains(t, out, "[Document 1] (Relevance: 91%) [kb.txt, page 2]")
	require.Contains(t, out, "first answer")
	require.Contains(t, out, "[Document 2] (Relevance: 64%) [FAQ]")
	require.Contains(t, out, "second answer")
}
