package dto

import "github.com/noah-isme/notebook-tracker-api/internal/models"

// StudentHistoryResponse pairs a summary with the records it was built from.
type StudentHistoryResponse struct {
	StudentID string                    `json:"studentId"`
	SubjectID string                    `json:"subjectId,omitempty"`
	Summary   models.HistorySummary     `json:"summary"`
	Records   []models.SubmissionRecord `json:"records"`
}

// StudentRiskResponse is the risk assessment for a single student.
type StudentRiskResponse struct {
	StudentID     string                  `json:"studentId"`
	CurrentStatus models.SubmissionStatus `json:"currentStatus"`
	Threshold     int                     `json:"threshold"`
	Summary       models.HistorySummary   `json:"summary"`
	Risk          models.RiskResult       `json:"risk"`
}
