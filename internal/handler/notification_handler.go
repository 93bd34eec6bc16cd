package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/notebook-tracker-api/internal/dto"
	"github.com/noah-isme/notebook-tracker-api/internal/models"
	appErrors "github.com/noah-isme/notebook-tracker-api/pkg/errors"
	"github.com/noah-isme/notebook-tracker-api/pkg/response"
)

type notificationService interface {
	Preview(req dto.PreviewNotificationRequest) dto.PreviewNotificationResponse
	Send(ctx context.Context, submissionID string, opts dto.SendNotificationRequest, actorID string) (*models.NotificationOutcome, error)
	SendBatch(ctx context.Context, classID, subjectID string, opts dto.SendNotificationRequest, actorID string) (*models.NotificationBatchResult, error)
	EnqueueBatch(ctx context.Context, classID, subjectID string, opts dto.SendNotificationRequest, actorID string) (*dto.BatchNotificationAccepted, error)
}

// NotificationHandler exposes guardian notification endpoints.
type NotificationHandler struct {
	service notificationService
}

// NewNotificationHandler constructs the handler.
func NewNotificationHandler(service notificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// Preview godoc
// @Summary Render a notification template
// @Tags Notifications
// @Accept json
// @Produce json
// @Param payload body dto.PreviewNotificationRequest true "Template and fields"
// @Success 200 {object} response.Envelope
// @Router /notifications/preview [post]
func (h *NotificationHandler) Preview(c *gin.Context) {
	var req dto.PreviewNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid preview payload"))
		return
	}
	response.JSON(c, http.StatusOK, h.service.Preview(req), nil)
}

// Send godoc
// @Summary Notify the guardian of a missing notebook
// @Tags Notifications
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.SendNotificationRequest false "Overrides"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /submissions/{id}/notify [post]
func (h *NotificationHandler) Send(c *gin.Context) {
	opts, err := bindSendOptions(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	outcome, err := h.service.Send(c.Request.Context(), c.Param("id"), opts, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// SendBatch godoc
// @Summary Notify guardians of every missing notebook in a class
// @Description With async=true the run is queued and 202 is returned
// @Tags Notifications
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param subjectId path string true "Subject ID"
// @Param async query bool false "Queue the run"
// @Param payload body dto.SendNotificationRequest false "Overrides"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /classes/{id}/subjects/{subjectId}/notify [post]
func (h *NotificationHandler) SendBatch(c *gin.Context) {
	opts, err := bindSendOptions(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	async, _ := strconv.ParseBool(c.DefaultQuery("async", "false"))
	classID, subjectID := c.Param("id"), c.Param("subjectId")

	if async {
		accepted, err := h.service.EnqueueBatch(c.Request.Context(), classID, subjectID, opts, actorID(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, accepted)
		return
	}

	result, err := h.service.SendBatch(c.Request.Context(), classID, subjectID, opts, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// bindSendOptions accepts an empty body as no overrides.
func bindSendOptions(c *gin.Context) (dto.SendNotificationRequest, error) {
	var opts dto.SendNotificationRequest
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return opts, nil
	}
	if err := c.ShouldBindJSON(&opts); err != nil && !errors.Is(err, io.EOF) {
		return opts, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid notification payload")
	}
	return opts, nil
}
