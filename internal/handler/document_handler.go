package handler

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qrengage/docpipe/internal/pkg/errcode"
	"github.com/qrengage/docpipe/internal/pkg/response"
	"github.com/qrengage/docpipe/internal/service"
)

type DocumentHandler struct {
	documents *service.DocumentService
	ingest    *service.IngestService
}

func NewDocumentHandler(documents *service.DocumentService, ingest *service.IngestService) *DocumentHandler {
	return &DocumentHandler{documents: documents, ingest: ingest}
}

// Upload accepts a multipart document and enqueues it for ingestion.
// chunk_size and chunk_overlap form fields override the configured
// defaults for this document only.
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()
	data, err := io.ReadAll(opened)
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "failed to read file")
		return
	}
	chunkSize, _ := strconv.Atoi(c.PostForm("chunk_size"))
	overlap, _ := strconv.Atoi(c.PostForm("chunk_overlap"))
	job, err := h.ingest.Submit(c.Request.Context(), getTenantID(c), file.Filename, data, chunkSize, overlap)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"job_id":      job.ID,
		"document_id": job.DocumentID,
		"status":      job.Status,
	})
}

func (h *DocumentHandler) Status(c *gin.Context) {
	docID := c.Param("id")
	if docID == "" {
		response.Error(c, errcode.ErrInvalid, "document id required")
		return
	}
	view, err := h.ingest.Status(c.Request.Context(), getTenantID(c), docID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, view)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	docID := c.Param("id")
	if docID == "" {
		response.Error(c, errcode.ErrInvalid, "document id required")
		return
	}
	doc, err := h.documents.Get(c.Request.Context(), getTenantID(c), docID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	docs, err := h.documents.List(c.Request.Context(), getTenantID(c), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"documents": docs})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	docID := c.Param("id")
	if docID == "" {
		response.Error(c, errcode.ErrInvalid, "document id required")
		return
	}
	if err := h.documents.Delete(c.Request.Context(), getTenantID(c), docID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// Reingest re-runs the pipeline for a document from its stored source.
func (h *DocumentHandler) Reingest(c *gin.Context) {
	docID := c.Param("id")
	if docID == "" {
		response.Error(c, errcode.ErrInvalid, "document id required")
		return
	}
	job, err := h.ingest.Resubmit(c.Request.Context(), getTenantID(c), docID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"job_id": job.ID, "status": job.Status})
}
