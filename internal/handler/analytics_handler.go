package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/notebook-tracker-api/internal/dto"
	"github.com/noah-isme/notebook-tracker-api/internal/middleware"
	"github.com/noah-isme/notebook-tracker-api/internal/models"
	appErrors "github.com/noah-isme/notebook-tracker-api/pkg/errors"
	"github.com/noah-isme/notebook-tracker-api/pkg/response"
)

type analyticsService interface {
	History(ctx context.Context, studentID, subjectID string) (*dto.StudentHistoryResponse, error)
	Risk(ctx context.Context, studentID, subjectID string, threshold int) (*dto.StudentRiskResponse, error)
	Defaulters(ctx context.Context, query models.DefaulterQuery) (*models.DefaulterReport, bool, error)
	SystemMetrics() models.AnalyticsSystemMetrics
}

// AnalyticsHandler exposes submission history and defaulter risk endpoints.
type AnalyticsHandler struct {
	analytics analyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// History godoc
// @Summary Student submission history
// @Tags Analytics
// @Produce json
// @Param id path string true "Student ID"
// @Param subject_id query string false "Restrict to one subject"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/history [get]
func (h *AnalyticsHandler) History(c *gin.Context) {
	res, err := h.analytics.History(c.Request.Context(), c.Param("id"), c.Query("subject_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Risk godoc
// @Summary Student defaulter risk
// @Tags Analytics
// @Produce json
// @Param id path string true "Student ID"
// @Param subject_id query string false "Subject whose active cycle decides the current status"
// @Param threshold query int false "Minimum missing count to be scored"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students/{id}/risk [get]
func (h *AnalyticsHandler) Risk(c *gin.Context) {
	threshold, err := thresholdQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.analytics.Risk(c.Request.Context(), c.Param("id"), c.Query("subject_id"), threshold)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Defaulters godoc
// @Summary Ranked defaulters of a class
// @Tags Analytics
// @Produce json
// @Param id path string true "Class ID"
// @Param subject_id query string false "Subject ID"
// @Param threshold query int false "Minimum missing count to be scored"
// @Param filter query string false "all or high"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /classes/{id}/defaulters [get]
func (h *AnalyticsHandler) Defaulters(c *gin.Context) {
	query, err := defaulterQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	start := time.Now()
	report, cacheHit, err := h.analytics.Defaulters(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = make(map[string]interface{})
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, report, nil, meta)
}

// System godoc
// @Summary Instrumentation snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	middleware.SetCacheHit(c, false)
	response.JSON(c, http.StatusOK, h.analytics.SystemMetrics(), nil, middleware.ExtractMeta(c))
}

func defaulterQuery(c *gin.Context) (models.DefaulterQuery, error) {
	threshold, err := thresholdQuery(c)
	if err != nil {
		return models.DefaulterQuery{}, err
	}
	return models.DefaulterQuery{
		ClassID:   c.Param("id"),
		SubjectID: c.Query("subject_id"),
		Threshold: threshold,
		Filter:    models.RiskFilter(c.Query("filter")),
	}, nil
}
