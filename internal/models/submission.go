package models

import (
	"errors"
	"fmt"
	"time"
)

// SubmissionStatus is the lifecycle state of a notebook submission.
type SubmissionStatus string

const (
	SubmissionStatusMissing   SubmissionStatus = "missing"
	SubmissionStatusSubmitted SubmissionStatus = "submitted"
	SubmissionStatusReturned  SubmissionStatus = "returned"
)

// Valid returns true when the status is a supported value.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case SubmissionStatusMissing, SubmissionStatusSubmitted, SubmissionStatusReturned:
		return true
	default:
		return false
	}
}

// Next returns the only status reachable from s. Returned is terminal.
func (s SubmissionStatus) Next() (SubmissionStatus, bool) {
	switch s {
	case SubmissionStatusMissing:
		return SubmissionStatusSubmitted, true
	case SubmissionStatusSubmitted:
		return SubmissionStatusReturned, true
	case SubmissionStatusReturned:
		return "", false
	default:
		return "", false
	}
}

// CanTransition reports whether moving from s to target is a permitted forward step.
func (s SubmissionStatus) CanTransition(target SubmissionStatus) bool {
	next, ok := s.Next()
	return ok && next == target
}

// Submission records one student's notebook for one collection cycle.
type Submission struct {
	ID                 string           `db:"id" json:"id"`
	StudentID          string           `db:"student_id" json:"student_id"`
	CycleID            string           `db:"cycle_id" json:"cycle_id"`
	Status             SubmissionStatus `db:"status" json:"status"`
	SubmittedAt        *time.Time       `db:"submitted_at" json:"submitted_at,omitempty"`
	ReturnedAt         *time.Time       `db:"returned_at" json:"returned_at,omitempty"`
	LateDays           int              `db:"late_days" json:"late_days"`
	NotificationSent   bool             `db:"notification_sent" json:"notification_sent"`
	NotificationSentAt *time.Time       `db:"notification_sent_at" json:"notification_sent_at,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

// Validation errors for Submission invariants.
var (
	ErrUnknownStatus        = errors.New("unknown submission status")
	ErrSubmittedAtMismatch  = errors.New("submitted_at must be set iff status is submitted or returned")
	ErrReturnedAtMismatch   = errors.New("returned_at must be set iff status is returned")
	ErrReturnedBeforeSubmit = errors.New("returned_at precedes submitted_at")
	ErrNegativeLateness     = errors.New("late_days must not be negative")
)

// Validate checks the timestamp invariants tied to the status.
func (s Submission) Validate() error {
	var wantSubmitted, wantReturned bool
	switch s.Status {
	case SubmissionStatusMissing:
	case SubmissionStatusSubmitted:
		wantSubmitted = true
	case SubmissionStatusReturned:
		wantSubmitted, wantReturned = true, true
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStatus, s.Status)
	}
	if (s.SubmittedAt != nil) != wantSubmitted {
		return ErrSubmittedAtMismatch
	}
	if (s.ReturnedAt != nil) != wantReturned {
		return ErrReturnedAtMismatch
	}
	if s.SubmittedAt != nil && s.ReturnedAt != nil && s.ReturnedAt.Before(*s.SubmittedAt) {
		return ErrReturnedBeforeSubmit
	}
	if s.LateDays < 0 {
		return ErrNegativeLateness
	}
	return nil
}

// SubmissionRecord is a submission joined with its cycle and subject, used as one
// entry of a student's ordered submission history.
type SubmissionRecord struct {
	Submission
	ClassID        string     `db:"class_id" json:"class_id"`
	SubjectID      string     `db:"subject_id" json:"subject_id"`
	SubjectName    string     `db:"subject_name" json:"subject_name"`
	CycleStartedAt time.Time  `db:"cycle_started_at" json:"cycle_started_at"`
	CycleDueAt     *time.Time `db:"cycle_due_at" json:"cycle_due_at,omitempty"`
}

// StatusResult is the resolved current status of a student for an active cycle.
type StatusResult struct {
	SubmissionID       *string          `json:"submission_id,omitempty"`
	Status             SubmissionStatus `json:"status"`
	SubmittedAt        *time.Time       `json:"submitted_at,omitempty"`
	ReturnedAt         *time.Time       `json:"returned_at,omitempty"`
	NotificationSent   bool             `json:"notification_sent"`
	NotificationSentAt *time.Time       `json:"notification_sent_at,omitempty"`
	// Materialized is false when no submission row exists yet.
	Materialized bool `json:"materialized"`
	// Duplicates counts the extra rows discarded by the tie-break.
	Duplicates int `json:"-"`
}

// StudentStatus pairs a student with their resolved status for a status board.
type StudentStatus struct {
	StudentID   string       `json:"student_id"`
	StudentName string       `json:"student_name"`
	RollNo      string       `json:"roll_no"`
	Status      StatusResult `json:"status"`
}
