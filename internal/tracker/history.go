package tracker

import (
	"math"

	"github.com/noah-isme/notebook-tracker-api/internal/models"
)

// LatestPerCycle reduces a student's rows to one per cycle, keeping the row ResolveStatus
// would pick (newest created, ties to the later row) at the position of the cycle's
// first row. Rows without a cycle id are kept as they are.
func LatestPerCycle(history []models.SubmissionRecord) []models.SubmissionRecord {
	out := make([]models.SubmissionRecord, 0, len(history))
	slots := make(map[string]int, len(history))
	for _, record := range history {
		if record.CycleID == "" {
			out = append(out, record)
			continue
		}
		i, seen := slots[record.CycleID]
		if !seen {
			slots[record.CycleID] = len(out)
			out = append(out, record)
			continue
		}
		if !record.CreatedAt.Before(out[i].CreatedAt) {
			out[i] = record
		}
	}
	return out
}

// AggregateHistory summarises a student's submission history.
//
// The slice must already be ordered by cycle start ascending; streaks are measured in
// the order given. Rows with an unrecognised status are counted as missing.
func AggregateHistory(history []models.SubmissionRecord) models.HistorySummary {
	summary := models.HistorySummary{
		Total:            len(history),
		SubjectBreakdown: []models.SubjectTally{},
	}

	subjectIndex := make(map[string]int)
	run := 0
	for _, entry := range history {
		idx, seen := subjectIndex[entry.SubjectName]
		if !seen {
			idx = len(summary.SubjectBreakdown)
			subjectIndex[entry.SubjectName] = idx
			summary.SubjectBreakdown = append(summary.SubjectBreakdown, models.SubjectTally{SubjectName: entry.SubjectName})
		}
		tally := &summary.SubjectBreakdown[idx]
		tally.Total++

		switch entry.Status {
		case models.SubmissionStatusReturned:
			summary.ReturnedCount++
			tally.Returned++
			run = 0
		case models.SubmissionStatusSubmitted:
			summary.SubmittedCount++
			tally.Submitted++
			run = 0
		case models.SubmissionStatusMissing:
			fallthrough
		default:
			summary.MissingCount++
			tally.Missing++
			run++
			if run > summary.MaxConsecutiveMissing {
				summary.MaxConsecutiveMissing = run
			}
		}

		if entry.LateDays > 0 {
			summary.LateSubmissionCount++
		}
	}

	summary.SubmissionRate = percent(summary.SubmittedCount+summary.ReturnedCount, summary.Total)
	for i := range summary.SubjectBreakdown {
		tally := &summary.SubjectBreakdown[i]
		tally.MissingPercent = percent(tally.Missing, tally.Total)
	}
	summary.ProblemSubject = problemSubject(summary.SubjectBreakdown)
	summary.PatternLabel = classifyPattern(summary)
	return summary
}

// problemSubject picks the subject with the highest missing share. Ties prefer the
// larger absolute missing count, then the earliest subject in the breakdown.
func problemSubject(tallies []models.SubjectTally) *models.SubjectTally {
	best := -1
	for i, tally := range tallies {
		if tally.Missing == 0 {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		current := tallies[best]
		// compare Missing/Total fractions without floating point
		lhs := tally.Missing * current.Total
		rhs := current.Missing * tally.Total
		if lhs > rhs || (lhs == rhs && tally.Missing > current.Missing) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	pick := tallies[best]
	return &pick
}

func classifyPattern(s models.HistorySummary) string {
	switch {
	case s.Total < 3:
		return models.PatternInsufficientData
	case s.MaxConsecutiveMissing >= 3:
		return models.PatternConsecutiveMissing
	case float64(s.LateSubmissionCount) > float64(s.Total)/3:
		return models.PatternFrequentlyLate
	case s.SubmissionRate < 50:
		return models.PatternLowSubmissionRate
	case s.SubmissionRate > 90:
		return models.PatternExcellentSubmission
	default:
		return models.PatternOccasionalMissing
	}
}

func percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}
