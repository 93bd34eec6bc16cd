package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/notebook-tracker-api/internal/dto"
	"github.com/noah-isme/notebook-tracker-api/internal/models"
	appErrors "github.com/noah-isme/notebook-tracker-api/pkg/errors"
	"github.com/noah-isme/notebook-tracker-api/pkg/response"
)

type submissionService interface {
	StartCycle(ctx context.Context, req dto.StartCycleRequest, actorID string) (*dto.StartCycleResponse, error)
	ActiveCycle(ctx context.Context, classID, subjectID string) (*models.CycleDetail, error)
	StatusBoard(ctx context.Context, classID, subjectID string) (*dto.StatusBoard, error)
	UpdateStatus(ctx context.Context, cycleID, studentID string, req dto.UpdateStatusRequest, actorID string) (*models.Submission, error)
}

// CycleHandler exposes collection cycles and submission status changes.
type CycleHandler struct {
	service submissionService
}

// NewCycleHandler constructs the handler.
func NewCycleHandler(service submissionService) *CycleHandler {
	return &CycleHandler{service: service}
}

// Start godoc
// @Summary Start a collection cycle
// @Description Ends the active cycle for the class and subject and opens a new one
// @Tags Cycles
// @Accept json
// @Produce json
// @Param payload body dto.StartCycleRequest true "Cycle payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cycles [post]
func (h *CycleHandler) Start(c *gin.Context) {
	var req dto.StartCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cycle payload"))
		return
	}
	res, err := h.service.StartCycle(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Active godoc
// @Summary Active cycle
// @Tags Cycles
// @Produce json
// @Param class_id query string true "Class ID"
// @Param subject_id query string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cycles/active [get]
func (h *CycleHandler) Active(c *gin.Context) {
	cycle, err := h.service.ActiveCycle(c.Request.Context(), c.Query("class_id"), c.Query("subject_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cycle, nil)
}

// StatusBoard godoc
// @Summary Current submission status of a class
// @Description Students without a submission row in the active cycle are reported as missing
// @Tags Cycles
// @Produce json
// @Param id path string true "Class ID"
// @Param subjectId path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id}/subjects/{subjectId}/status [get]
func (h *CycleHandler) StatusBoard(c *gin.Context) {
	board, err := h.service.StatusBoard(c.Request.Context(), c.Param("id"), c.Param("subjectId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, board, nil)
}

// UpdateStatus godoc
// @Summary Advance a student's submission status
// @Description Applies missing to submitted or submitted to returned when the stored status equals expectedStatus
// @Tags Cycles
// @Accept json
// @Produce json
// @Param id path string true "Cycle ID"
// @Param studentId path string true "Student ID"
// @Param payload body dto.UpdateStatusRequest true "Status change"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /cycles/{id}/students/{studentId}/status [patch]
func (h *CycleHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	sub, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), c.Param("studentId"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}
