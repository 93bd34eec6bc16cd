package dto

import "github.com/noah-isme/notebook-tracker-api/internal/models"

// PreviewNotificationRequest renders a template without sending anything.
// An empty template falls back to the configured default.
type PreviewNotificationRequest struct {
	Template string                    `json:"template"`
	Fields   models.NotificationFields `json:"fields"`
}

// PreviewNotificationResponse carries the rendered text.
type PreviewNotificationResponse struct {
	Template string `json:"template"`
	Message  string `json:"message"`
}

// SendNotificationRequest optionally overrides the template or follow-up date of a send.
type SendNotificationRequest struct {
	Template string `json:"template"`
	NextDate string `json:"nextDate"`
}

// BatchNotificationJob is the queued payload of an asynchronous class notification run.
type BatchNotificationJob struct {
	ClassID   string                  `json:"classId"`
	SubjectID string                  `json:"subjectId"`
	Options   SendNotificationRequest `json:"options"`
	ActorID   string                  `json:"actorId"`
	RequestID string                  `json:"requestId,omitempty"`
}

// BatchNotificationAccepted is returned when a batch run was queued.
type BatchNotificationAccepted struct {
	JobID     string `json:"jobId"`
	ClassID   string `json:"classId"`
	SubjectID string `json:"subjectId"`
	Status    string `json:"status"`
}
