package dto

import (
	"time"

	"github.com/noah-isme/notebook-tracker-api/internal/models"
)

// StartCycleRequest opens a new collection cycle for a class and subject.
type StartCycleRequest struct {
	ClassID   string     `json:"classId" validate:"required"`
	SubjectID string     `json:"subjectId" validate:"required"`
	DueAt     *time.Time `json:"dueAt"`
}

// StartCycleResponse reports the new cycle and how many submissions it created.
type StartCycleResponse struct {
	Cycle              models.CycleDetail `json:"cycle"`
	SubmissionsCreated int                `json:"submissionsCreated"`
}

// UpdateStatusRequest moves a student's submission one step forward.
type UpdateStatusRequest struct {
	Status         models.SubmissionStatus `json:"status" validate:"required,oneof=submitted returned"`
	ExpectedStatus models.SubmissionStatus `json:"expectedStatus" validate:"required,oneof=missing submitted"`
}

// StatusBoard lists the resolved status of every student in a class for the active cycle.
type StatusBoard struct {
	Cycle    models.CycleDetail     `json:"cycle"`
	Students []models.StudentStatus `json:"students"`
}
