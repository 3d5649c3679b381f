package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook-api/internal/dto"
	"github.com/noah-isme/gradebook-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
	"github.com/noah-isme/gradebook-api/pkg/response"
)

type gradeService interface {
	Create(ctx context.Context, payload []byte) (*models.GradeRecord, []string, error)
	Get(ctx context.Context, id string) (*models.GradeRecord, error)
	AddScore(ctx context.Context, id string, req dto.ScoreRequest) (*models.GradeRecord, error)
	RemoveScore(ctx context.Context, id string, req dto.ScoreRequest) (*dto.ScoreRemovalResult, error)
	Delete(ctx context.Context, id string) error
	ListByLearner(ctx context.Context, learnerID int64, classID *int64) ([]models.GradeRecord, error)
	ListByClass(ctx context.Context, classID int64, learnerID *int64) ([]models.GradeRecord, error)
	DeleteByLearner(ctx context.Context, learnerID int64) (int64, error)
	DeleteByClass(ctx context.Context, classID int64) (int64, error)
	ReassignClass(ctx context.Context, from int64, req dto.ReassignClassRequest) (int64, error)
}

// maxRecordBytes caps POST /grades bodies.
const maxRecordBytes = 1 << 20

// GradeHandler exposes grade record endpoints.
type GradeHandler struct {
	grades gradeService
}

// NewGradeHandler constructs handler.
func NewGradeHandler(grades gradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// Create godoc
// @Summary Create grade record
// @Description Stores one learner's scores for one class. student_id is accepted in place of learner_id.
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.CreateGradeRequest true "Grade record"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Create(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRecordBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.Clone(appErrors.ErrPayloadTooLarge, "grade record exceeds 1 MiB"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, warnings, err := h.grades.Create(c.Request.Context(), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.GradeCreateResponse{Record: record, Warnings: warnings})
}

// Get godoc
// @Summary Get grade record
// @Tags Grades
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grades/{id} [get]
func (h *GradeHandler) Get(c *gin.Context) {
	record, err := h.grades.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// AddScore godoc
// @Summary Append a score entry
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body dto.ScoreRequest true "Score entry"
// @Success 200 {object} response.Envelope
// @Router /grades/{id}/add [patch]
func (h *GradeHandler) AddScore(c *gin.Context) {
	var req dto.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	record, err := h.grades.AddScore(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// RemoveScore godoc
// @Summary Remove matching score entries
// @Description Removes every entry whose type and score equal the payload.
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body dto.ScoreRequest true "Score entry"
// @Success 200 {object} response.Envelope
// @Router /grades/{id}/remove [patch]
func (h *GradeHandler) RemoveScore(c *gin.Context) {
	var req dto.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.grades.RemoveScore(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Delete godoc
// @Summary Delete grade record
// @Tags Grades
// @Param id path string true "Record ID"
// @Success 204
// @Router /grades/{id} [delete]
func (h *GradeHandler) Delete(c *gin.Context) {
	if err := h.grades.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// StudentRedirect keeps the legacy /grades/student/:id path alive.
// @Summary Legacy learner records path
// @Tags Grades
// @Param id path int true "Learner ID"
// @Success 301
// @Router /grades/student/{id} [get]
func (h *GradeHandler) StudentRedirect(c *gin.Context) {
	target := strings.Replace(c.Request.URL.Path, "/grades/student/", "/grades/learner/", 1)
	if raw := c.Request.URL.RawQuery; raw != "" {
		target += "?" + raw
	}
	c.Redirect(http.StatusMovedPermanently, target)
}

// ListByLearner godoc
// @Summary List a learner's records
// @Tags Grades
// @Produce json
// @Param id path int true "Learner ID"
// @Param class query int false "Narrow to one class"
// @Success 200 {object} response.Envelope
// @Router /grades/learner/{id} [get]
func (h *GradeHandler) ListByLearner(c *gin.Context) {
	learnerID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	classID, err := optionalQueryID(c, "class")
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.grades.ListByLearner(c.Request.Context(), learnerID, classID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records)
}

// DeleteByLearner godoc
// @Summary Delete every record of a learner
// @Tags Grades
// @Produce json
// @Param id path int true "Learner ID"
// @Success 200 {object} response.Envelope
// @Router /grades/learner/{id} [delete]
func (h *GradeHandler) DeleteByLearner(c *gin.Context) {
	learnerID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	n, err := h.grades.DeleteByLearner(c.Request.Context(), learnerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.BulkResult{Affected: n})
}

// ListByClass godoc
// @Summary List a class's records
// @Tags Grades
// @Produce json
// @Param id path int true "Class ID"
// @Param learner query int false "Narrow to one learner"
// @Success 200 {object} response.Envelope
// @Router /grades/class/{id} [get]
func (h *GradeHandler) ListByClass(c *gin.Context) {
	classID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	learnerID, err := optionalQueryID(c, "learner")
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.grades.ListByClass(c.Request.Context(), classID, learnerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records)
}

// ReassignClass godoc
// @Summary Move every record of a class to another class
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path int true "Class ID"
// @Param payload body dto.ReassignClassRequest true "Target class"
// @Success 200 {object} response.Envelope
// @Router /grades/class/{id} [patch]
func (h *GradeHandler) ReassignClass(c *gin.Context) {
	classID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ReassignClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	n, err := h.grades.ReassignClass(c.Request.Context(), classID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.BulkResult{Affected: n})
}

// DeleteByClass godoc
// @Summary Delete every record of a class
// @Tags Grades
// @Produce json
// @Param id path int true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /grades/class/{id} [delete]
func (h *GradeHandler) DeleteByClass(c *gin.Context) {
	classID, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	n, err := h.grades.DeleteByClass(c.Request.Context(), classID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.BulkResult{Affected: n})
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, name+" must be an integer")
	}
	return id, nil
}

func optionalQueryID(c *gin.Context, name string) (*int64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, name+" must be an integer")
	}
	return &id, nil
}
