// Package tracker holds the submission lifecycle and defaulter risk rules.
//
// Every function here is a pure transformation over records the caller has already
// loaded. Nothing in this package performs I/O, reads the wall clock, or keeps state
// between calls, so callers may fan out across students freely.
package tracker

import "github.com/noah-isme/notebook-tracker-api/internal/models"

// ResolveStatus derives the current status of one student for an active cycle.
//
// An empty slice yields the lazy missing default. When several rows exist for the same
// student and cycle, the most recently created one wins (ties go to the later row) and
// the number of discarded rows is reported in Duplicates for the caller to log.
func ResolveStatus(submissions []models.Submission) models.StatusResult {
	if len(submissions) == 0 {
		return models.StatusResult{Status: models.SubmissionStatusMissing}
	}

	winner := 0
	for i := 1; i < len(submissions); i++ {
		if !submissions[i].CreatedAt.Before(submissions[winner].CreatedAt) {
			winner = i
		}
	}

	sub := submissions[winner]
	id := sub.ID
	return models.StatusResult{
		SubmissionID:       &id,
		Status:             sub.Status,
		SubmittedAt:        sub.SubmittedAt,
		ReturnedAt:         sub.ReturnedAt,
		NotificationSent:   sub.NotificationSent,
		NotificationSentAt: sub.NotificationSentAt,
		Materialized:       true,
		Duplicates:         len(submissions) - 1,
	}
}
