package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/notebook-tracker-api/internal/models"
)

func TestLateDays(t *testing.T) {
	due := historyEpoch

	assert.Zero(t, LateDays(due.Add(72*time.Hour), nil))
	assert.Zero(t, LateDays(due.Add(-time.Hour), &due))
	assert.Zero(t, LateDays(due, &due))
	assert.Equal(t, 1, LateDays(due.Add(time.Minute), &due))
	assert.Equal(t, 1, LateDays(due.Add(24*time.Hour), &due))
	assert.Equal(t, 2, LateDays(due.Add(48*time.Hour), &due))
	assert.Equal(t, 3, LateDays(due.Add(49*time.Hour), &due))
}

func TestApplyTransitionMissingToSubmitted(t *testing.T) {
	due := historyEpoch.Add(24 * time.Hour)
	at := due.Add(30 * time.Hour)
	sub := models.Submission{ID: "s1", Status: missing, CreatedAt: historyEpoch}

	next, err := ApplyTransition(sub, submitted, at, &due)
	require.NoError(t, err)
	assert.Equal(t, submitted, next.Status)
	require.NotNil(t, next.SubmittedAt)
	assert.True(t, next.SubmittedAt.Equal(at))
	assert.Nil(t, next.ReturnedAt)
	assert.Equal(t, 2, next.LateDays)
	assert.True(t, next.UpdatedAt.Equal(at))
	assert.NoError(t, next.Validate())

	assert.Equal(t, missing, sub.Status, "input must not be mutated")
}

func TestApplyTransitionSubmittedToReturned(t *testing.T) {
	submittedAt := historyEpoch.Add(time.Hour)
	sub := models.Submission{Status: submitted, SubmittedAt: &submittedAt, LateDays: 1}

	next, err := ApplyTransition(sub, returned, historyEpoch.Add(5*time.Hour), nil)
	require.NoError(t, err)
	assert.Equal(t, returned, next.Status)
	require.NotNil(t, next.ReturnedAt)
	assert.True(t, next.ReturnedAt.After(*next.SubmittedAt))
	assert.Equal(t, 1, next.LateDays)
	assert.NoError(t, next.Validate())
}

func TestApplyTransitionClampsReturnBeforeSubmit(t *testing.T) {
	submittedAt := historyEpoch.Add(10 * time.Hour)
	sub := models.Submission{Status: submitted, SubmittedAt: &submittedAt}

	next, err := ApplyTransition(sub, returned, historyEpoch, nil)
	require.NoError(t, err)
	require.NotNil(t, next.ReturnedAt)
	assert.True(t, next.ReturnedAt.Equal(submittedAt))
}

func TestApplyTransitionRejectsInvalidSteps(t *testing.T) {
	submittedAt := historyEpoch
	returnedAt := historyEpoch.Add(time.Hour)

	cases := []struct {
		name   string
		sub    models.Submission
		target models.SubmissionStatus
	}{
		{"skip to returned", models.Submission{Status: missing}, returned},
		{"backwards to missing", models.Submission{Status: submitted, SubmittedAt: &submittedAt}, missing},
		{"returned is terminal", models.Submission{Status: returned, SubmittedAt: &submittedAt, ReturnedAt: &returnedAt}, submitted},
		{"same status", models.Submission{Status: missing}, missing},
		{"unknown target", models.Submission{Status: missing}, "lost"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := ApplyTransition(tc.sub, tc.target, historyEpoch.Add(2*time.Hour), nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, tc.sub, next)
		})
	}
}
