package tracker

import (
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/notebook-tracker-api/internal/models"
)

// ErrInvalidTransition is returned when a status change is not a single forward step.
var ErrInvalidTransition = errors.New("invalid submission status transition")

// LateDays returns the whole days, rounded up, by which submittedAt overran dueAt.
// A cycle without a due time is never late.
func LateDays(submittedAt time.Time, dueAt *time.Time) int {
	if dueAt == nil || !submittedAt.After(*dueAt) {
		return 0
	}
	overrun := submittedAt.Sub(*dueAt)
	days := int(overrun / (24 * time.Hour))
	if overrun%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// ApplyTransition returns a copy of sub moved to target at the given instant.
//
// Only missing→submitted and submitted→returned are accepted. Marking submitted also
// records lateness against dueAt. The returned submission satisfies Validate.
func ApplyTransition(sub models.Submission, target models.SubmissionStatus, at time.Time, dueAt *time.Time) (models.Submission, error) {
	if !sub.Status.CanTransition(target) {
		return sub, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sub.Status, target)
	}

	next := sub
	stamp := at.UTC()
	switch target {
	case models.SubmissionStatusSubmitted:
		next.SubmittedAt = &stamp
		next.LateDays = LateDays(stamp, dueAt)
	case models.SubmissionStatusReturned:
		if sub.SubmittedAt != nil && stamp.Before(*sub.SubmittedAt) {
			stamp = *sub.SubmittedAt
		}
		next.ReturnedAt = &stamp
	case models.SubmissionStatusMissing:
		return sub, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sub.Status, target)
	default:
		return sub, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sub.Status, target)
	}
	next.Status = target
	next.UpdatedAt = stamp

	if err := next.Validate(); err != nil {
		return sub, err
	}
	return next, nil
}
