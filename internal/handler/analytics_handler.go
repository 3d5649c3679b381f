package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradebook-api/internal/middleware"
	"github.com/noah-isme/gradebook-api/internal/models"
	appErrors "github.com/noah-isme/gradebook-api/pkg/errors"
	"github.com/noah-isme/gradebook-api/pkg/response"
)

type analyticsService interface {
	LearnerAverages(ctx context.Context) ([]models.AggregateResult, bool, error)
	ClassAverages(ctx context.Context) ([]models.AggregateResult, bool, error)
	LearnerAcrossClasses(ctx context.Context, learnerID int64) ([]models.AggregateResult, bool, error)
	ClassAcrossLearners(ctx context.Context, classID int64) ([]models.AggregateResult, bool, error)
	OverallPassRate(ctx context.Context, query models.CohortQuery) (*models.CohortReport, bool, error)
	ClassPassRate(ctx context.Context, classID int64, query models.CohortQuery) (*models.CohortReport, bool, error)
	SystemMetrics() models.SystemMetrics
}

// AnalyticsHandler exposes weighted average and pass-rate endpoints.
type AnalyticsHandler struct {
	analytics analyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// OverallStats godoc
// @Summary Overall pass rate
// @Description Share of distinct learners whose average across every class clears the threshold.
// @Tags Analytics
// @Produce json
// @Param threshold query number false "Pass threshold"
// @Param comparison query string false "strict or inclusive"
// @Param detail query bool false "Include per-learner rows"
// @Success 200 {object} response.Envelope
// @Router /grades/stats [get]
func (h *AnalyticsHandler) OverallStats(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	query, err := parseCohortQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	report, cacheHit, err := h.analytics.OverallPassRate(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, report, middleware.ResponseMeta(c))
}

// ClassStats godoc
// @Summary Pass rate for one class
// @Tags Analytics
// @Produce json
// @Param id path int true "Class ID"
// @Param threshold query number false "Pass threshold"
// @Param comparison query string false "strict or inclusive"
// @Param detail query bool false "Include per-learner rows"
// @Success 200 {object} response.Envelope
// @Router /grades/stats/{id} [get]
func (h *AnalyticsHandler) ClassStats(c *gin.Context) {
	if h.analytics == nil {
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
	report, cacheHit, err := h.analytics.ClassPassRate(c.Request.Context(), classID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, report, middleware.ResponseMeta(c))
}

// LearnerAcrossClasses godoc
// @Summary A learner's average per class
// @Tags Analytics
// @Produce json
// @Param id path int true "Learner ID"
// @Success 200 {object} response.Envelope
// @Router /grades/learner/{id}/avg-class [get]
func (h *AnalyticsHandler) LearnerAcrossClasses(c *gin.Context) {
	h.scoped(c, analyticsService.LearnerAcrossClasses)
}

// ClassAcrossLearners godoc
// @Summary A class's average per learner
// @Tags Analytics
// @Produce json
// @Param id path int true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /grades/class/{id}/avg-learner [get]
func (h *AnalyticsHandler) ClassAcrossLearners(c *gin.Context) {
	h.scoped(c, analyticsService.ClassAcrossLearners)
}

// LearnerAverages godoc
// @Summary Weighted average per learner
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grades/averages/learners [get]
func (h *AnalyticsHandler) LearnerAverages(c *gin.Context) {
	h.global(c, analyticsService.LearnerAverages)
}

// ClassAverages godoc
// @Summary Weighted average per class
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grades/averages/classes [get]
func (h *AnalyticsHandler) ClassAverages(c *gin.Context) {
	h.global(c, analyticsService.ClassAverages)
}

// System godoc
// @Summary Instrumentation snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grades/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	metrics := h.analytics.SystemMetrics()
	middleware.SetCacheHit(c, false)
	response.JSON(c, http.StatusOK, metrics, middleware.ResponseMeta(c))
}

func (h *AnalyticsHandler) global(c *gin.Context, view func(analyticsService, context.Context) ([]models.AggregateResult, bool, error)) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	results, cacheHit, err := view(h.analytics, c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, results, middleware.ResponseMeta(c))
}

func (h *AnalyticsHandler) scoped(c *gin.Context, view func(analyticsService, context.Context, int64) ([]models.AggregateResult, bool, error)) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	results, cacheHit, err := view(h.analytics, c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, results, middleware.ResponseMeta(c))
}

func parseCohortQuery(c *gin.Context) (models.CohortQuery, error) {
	var query models.CohortQuery
	if raw := strings.TrimSpace(c.Query("threshold")); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return query, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "threshold must be a number")
		}
		query.Threshold = &threshold
	}
	query.Comparison = strings.TrimSpace(c.Query("comparison"))
	if raw := strings.TrimSpace(c.Query("detail")); raw != "" {
		detail, err := strconv.ParseBool(raw)
		if err != nil {
			return query, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "detail must be a boolean")
		}
		query.Detail = detail
	}
	return query, nil
}
