package models

import "time"

// NotificationFields carries the values substituted into a message template.
// An empty field leaves its placeholder untouched.
type NotificationFields struct {
	ParentName  string `json:"parentName"`
	StudentName string `json:"studentName"`
	Subject     string `json:"subject"`
	NextDate    string `json:"nextDate"`
}

// NotificationOutcomeStatus describes what happened to one notification attempt.
type NotificationOutcomeStatus string

const (
	NotificationOutcomeSent           NotificationOutcomeStatus = "sent"
	NotificationOutcomeAlreadySent    NotificationOutcomeStatus = "already_sent"
	NotificationOutcomeNotEligible    NotificationOutcomeStatus = "not_eligible"
	NotificationOutcomeMissingContact NotificationOutcomeStatus = "missing_contact"
	NotificationOutcomeFailed         NotificationOutcomeStatus = "failed"
)

// NotificationOutcome is the per-student result of a send attempt.
type NotificationOutcome struct {
	StudentID    string                    `json:"student_id"`
	SubmissionID *string                   `json:"submission_id,omitempty"`
	Status       NotificationOutcomeStatus `json:"status"`
	Recipient    string                    `json:"recipient,omitempty"`
	Message      string                    `json:"message,omitempty"`
	Error        string                    `json:"error,omitempty"`
	SentAt       *time.Time                `json:"sent_at,omitempty"`
}

// NotificationBatchResult summarises a class-wide notification run.
type NotificationBatchResult struct {
	ClassID   string                `json:"class_id"`
	SubjectID string                `json:"subject_id"`
	CycleID   string                `json:"cycle_id"`
	Processed int                   `json:"processed"`
	Sent      int                   `json:"sent"`
	Skipped   int                   `json:"skipped"`
	Failed    int                   `json:"failed"`
	Items     []NotificationOutcome `json:"items"`
}
