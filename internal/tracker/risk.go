package tracker

import (
	"fmt"
	"sort"

	"github.com/noah-isme/notebook-tracker-api/internal/models"
)

const (
	// DefaultMissingThreshold is the minimum missing count for a student to be scored.
	DefaultMissingThreshold = 2
	// HighRiskProbability is the cut-off applied by RiskFilterHighOnly.
	HighRiskProbability = 0.7

	maxStreakWeighted = 5
)

// Contributions are expressed in hundredths so the score and band boundaries stay exact.
const (
	pointsBase             = 10
	pointsPerStreakMissing = 10
	pointsCurrentMissing   = 20
	pointsLowRate          = 20
	pointsBelowAverageRate = 10
	pointsFrequentlyLate   = 10
	pointsProblemSubject   = 5

	bandHighPoints     = 80
	bandElevatedPoints = 60
	bandModeratePoints = 40
)

type riskRule struct {
	points int
	reason string
}

// NormalizeThreshold returns threshold, or the default when it is below one.
func NormalizeThreshold(threshold int) int {
	if threshold < 1 {
		return DefaultMissingThreshold
	}
	return threshold
}

// ScoreDefaulterRisk computes the default probability and reasoning for one student.
// The threshold only decides whether the student is scored at all.
func ScoreDefaulterRisk(status models.SubmissionStatus, history models.HistorySummary, threshold int) models.RiskResult {
	threshold = NormalizeThreshold(threshold)
	if history.MissingCount < threshold {
		return models.RiskResult{
			Included:     false,
			Band:         models.RiskBandLow,
			Reasoning:    []string{},
			PatternLabel: history.PatternLabel,
		}
	}

	rules := triggeredRules(status, history)
	points := pointsBase
	for _, rule := range rules {
		points += rule.points
	}
	if points > 100 {
		points = 100
	}

	// most severe first; equal weights keep rule declaration order
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].points > rules[j].points })
	reasoning := make([]string, len(rules))
	for i, rule := range rules {
		reasoning[i] = rule.reason
	}

	return models.RiskResult{
		Included:           true,
		DefaultProbability: float64(points) / 100,
		Band:               bandFor(points),
		Reasoning:          reasoning,
		PatternLabel:       history.PatternLabel,
	}
}

// RiskBandFor maps a probability onto its display band.
func RiskBandFor(probability float64) models.RiskBand {
	return bandFor(int(probability*100 + 0.5))
}

func bandFor(points int) models.RiskBand {
	switch {
	case points >= bandHighPoints:
		return models.RiskBandHigh
	case points >= bandElevatedPoints:
		return models.RiskBandElevated
	case points >= bandModeratePoints:
		return models.RiskBandModerate
	default:
		return models.RiskBandLow
	}
}

func triggeredRules(status models.SubmissionStatus, h models.HistorySummary) []riskRule {
	rules := make([]riskRule, 0, 5)

	if h.MaxConsecutiveMissing >= 1 {
		streak := h.MaxConsecutiveMissing
		if streak > maxStreakWeighted {
			streak = maxStreakWeighted
		}
		rules = append(rules, riskRule{
			points: streak * pointsPerStreakMissing,
			reason: fmt.Sprintf("%d consecutive missing %s", h.MaxConsecutiveMissing, plural(h.MaxConsecutiveMissing, "submission", "submissions")),
		})
	}

	switch status {
	case models.SubmissionStatusMissing:
		rules = append(rules, riskRule{points: pointsCurrentMissing, reason: "Current notebook not submitted"})
	case models.SubmissionStatusSubmitted, models.SubmissionStatusReturned:
	default:
		rules = append(rules, riskRule{points: pointsCurrentMissing, reason: "Current notebook status unknown"})
	}

	switch {
	case h.SubmissionRate < 50:
		rules = append(rules, riskRule{points: pointsLowRate, reason: fmt.Sprintf("Low submission rate (%d%%)", h.SubmissionRate)})
	case h.SubmissionRate < 75:
		rules = append(rules, riskRule{points: pointsBelowAverageRate, reason: fmt.Sprintf("Below-average submission rate (%d%%)", h.SubmissionRate)})
	}

	if h.Total > 0 && float64(h.LateSubmissionCount) > float64(h.Total)/3 {
		rules = append(rules, riskRule{
			points: pointsFrequentlyLate,
			reason: fmt.Sprintf("Frequently late (%d of %d submissions late)", h.LateSubmissionCount, h.Total),
		})
	}

	if p := h.ProblemSubject; p != nil && p.MissingPercent >= 50 {
		rules = append(rules, riskRule{
			points: pointsProblemSubject,
			reason: fmt.Sprintf("Most missed subject: %s (%d%% missing)", p.SubjectName, p.MissingPercent),
		})
	}

	return rules
}

// ScorePopulation scores every candidate meeting the threshold, then applies the filter.
// The result is ordered by probability descending; equal scores keep input order.
func ScorePopulation(candidates []models.RiskCandidate, threshold int, filter models.RiskFilter) []models.ScoredStudent {
	scored := make([]models.ScoredStudent, 0, len(candidates))
	for _, c := range candidates {
		risk := ScoreDefaulterRisk(c.CurrentStatus, c.History, threshold)
		if !risk.Included {
			continue
		}
		scored = append(scored, models.ScoredStudent{
			StudentID:   c.StudentID,
			StudentName: c.StudentName,
			Status:      c.CurrentStatus,
			History:     c.History,
			Risk:        risk,
		})
	}

	scored = ApplyRiskFilter(scored, filter)
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Risk.DefaultProbability > scored[j].Risk.DefaultProbability
	})
	return scored
}

// ApplyRiskFilter keeps the students selected by filter without touching their scores.
// Unknown filters behave like RiskFilterAll.
func ApplyRiskFilter(scored []models.ScoredStudent, filter models.RiskFilter) []models.ScoredStudent {
	switch filter {
	case models.RiskFilterHighOnly:
		out := make([]models.ScoredStudent, 0, len(scored))
		for _, s := range scored {
			if s.Risk.DefaultProbability >= HighRiskProbability {
				out = append(out, s)
			}
		}
		return out
	case models.RiskFilterAll:
		return scored
	default:
		return scored
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
