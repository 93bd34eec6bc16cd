package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubmissionStatusTransitions(t *testing.T) {
	assert.True(t, SubmissionStatusMissing.CanTransition(SubmissionStatusSubmitted))
	assert.True(t, SubmissionStatusSubmitted.CanTransition(SubmissionStatusReturned))

	assert.False(t, SubmissionStatusMissing.CanTransition(SubmissionStatusReturned))
	assert.False(t, SubmissionStatusSubmitted.CanTransition(SubmissionStatusMissing))
	assert.False(t, SubmissionStatusReturned.CanTransition(SubmissionStatusSubmitted))
	assert.False(t, SubmissionStatusReturned.CanTransition(SubmissionStatusMissing))
	assert.False(t, SubmissionStatus("lost").CanTransition(SubmissionStatusSubmitted))

	_, ok := SubmissionStatusReturned.Next()
	assert.False(t, ok)
	assert.False(t, SubmissionStatus("Returned").Valid())
}

func TestSubmissionValidate(t *testing.T) {
	t0 := time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	cases := []struct {
		name string
		sub  Submission
		err  error
	}{
		{"missing clean", Submission{Status: SubmissionStatusMissing}, nil},
		{"missing with submitted_at", Submission{Status: SubmissionStatusMissing, SubmittedAt: &t0}, ErrSubmittedAtMismatch},
		{"submitted", Submission{Status: SubmissionStatusSubmitted, SubmittedAt: &t0}, nil},
		{"submitted without timestamp", Submission{Status: SubmissionStatusSubmitted}, ErrSubmittedAtMismatch},
		{"submitted with returned_at", Submission{Status: SubmissionStatusSubmitted, SubmittedAt: &t0, ReturnedAt: &t1}, ErrReturnedAtMismatch},
		{"returned", Submission{Status: SubmissionStatusReturned, SubmittedAt: &t0, ReturnedAt: &t1}, nil},
		{"returned before submitted", Submission{Status: SubmissionStatusReturned, SubmittedAt: &t1, ReturnedAt: &t0}, ErrReturnedBeforeSubmit},
		{"negative lateness", Submission{Status: SubmissionStatusSubmitted, SubmittedAt: &t0, LateDays: -1}, ErrNegativeLateness},
		{"unknown status", Submission{Status: "archived"}, ErrUnknownStatus},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.sub.Validate()
			if tc.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.err)
		})
	}
}
