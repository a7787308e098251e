package service

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/qrengage/docpipe/internal/filestore"
	"github.com/qrengage/docpipe/internal/model"
)

// DocumentService serves document metadata reads and deletion.
type DocumentService struct {
	docs  DocumentStore
	files filestore.Store
}

func NewDocumentService(docs DocumentStore, files filestore.Store) *DocumentService {
	return &DocumentService{docs: docs, files: files}
}

func (s *DocumentService) Get(ctx context.Context, tenantID, docID string) (*model.Document, error) {
	return s.docs.Get(ctx, tenantID, docID)
}

func (s *DocumentService) List(ctx context.Context, tenantID string, limit int) ([]model.Document, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.docs.List(ctx, tenantID, limit)
}

// Delete removes the document row, its chunks and jobs via cascade, and
// the stored source bytes. A missing source object is not an error; the
// row is the source of truth.
func (s *DocumentService) Delete(ctx context.Context, tenantID, docID string) error {
	doc, err := s.docs.Get(ctx, tenantID, docID)
	if err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, tenantID, docID); err != nil {
		return err
	}
	if err := s.files.Delete(ctx, doc.SourceRef); err != nil {
		logutil.GetLogger(ctx).Warn("failed to delete source object",
			zap.String("doc_id", docID), zap.Error(err))
	}
	return nil
}
