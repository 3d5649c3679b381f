package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook-api/internal/models"
	"github.com/noah-isme/gradebook-api/internal/service"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
	"github.com/noah-isme/gradebook-api/pkg/response"
)

type reportExporter interface {
	ClassReport(ctx context.Context, classID int64, query models.CohortQuery, rawFormat string) (*service.ExportFile, error)
}

// ReportHandler serves downloadable cohort reports.
type ReportHandler struct {
	exports reportExporter
}

// NewReportHandler constructs handler.
func NewReportHandler(exports reportExporter) *ReportHandler {
	return &ReportHandler{exports: exports}
}

// ClassExport godoc
// @Summary Download a class pass-rate report
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path int true "Class ID"
// @Param format query string false "csv, pdf or xlsx"
// @Param threshold query number false "Pass threshold"
// @Param comparison query string false "strict or inclusive"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /grades/stats/{id}/export [get]
func (h *ReportHandler) ClassExport(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	classID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	query, err := parseCohortQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exports.ClassReport(c.Request.Context(), classID, query, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Payload)
}
