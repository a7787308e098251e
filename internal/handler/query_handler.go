package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qrengage/docpipe/internal/pkg/errcode"
	"github.com/qrengage/docpipe/internal/pkg/response"
	"github.com/qrengage/docpipe/internal/service"
)

type QueryHandler struct {
	queries *service.QueryService
}

func NewQueryHandler(queries *service.QueryService) *QueryHandler {
	return &QueryHandler{queries: queries}
}

type queryRequest struct {
	Text       string  `json:"text"`
	DocumentID string  `json:"document_id"`
	Threshold  float32 `json:"threshold"`
	Count      int     `json:"count"`
	Format     bool    `json:"format"`
}

// Query runs a similarity search. With format=true the matches are also
// rendered as a ready-to-use prompt context block.
func (h *QueryHandler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request body")
		return
	}
	matches, err := h.queries.Query(c.Request.Context(), getTenantID(c), req.Text, req.DocumentID, req.Threshold, req.Count)
	if err != nil {
		handleError(c, err)
		return
	}
	resp := gin.H{"matches": matches}
	if req.Format {
		resp["context"] = service.FormatForPrompt(matches)
	}
	response.Success(c, resp)
}
