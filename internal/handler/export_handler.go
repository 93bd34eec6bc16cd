package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/notebook-tracker-api/internal/dto"
	"github.com/noah-isme/notebook-tracker-api/internal/models"
	"github.com/noah-isme/notebook-tracker-api/pkg/response"
)

type exportService interface {
	ExportDefaulters(ctx context.Context, query models.DefaulterQuery, format string) (*dto.ExportResult, error)
}

// ExportHandler streams rendered reports.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Defaulters godoc
// @Summary Download the defaulter report of a class
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Class ID"
// @Param subject_id query string false "Subject ID"
// @Param threshold query int false "Minimum missing count to be scored"
// @Param filter query string false "all or high"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /classes/{id}/defaulters/export [get]
func (h *ExportHandler) Defaulters(c *gin.Context) {
	query, err := defaulterQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.service.ExportDefaulters(c.Request.Context(), query, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, res.Filename, res.ContentType, res.Body)
}
